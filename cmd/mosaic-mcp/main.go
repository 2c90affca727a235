package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ironsheep/image-mosaic-mcp/internal/config"
	"github.com/ironsheep/image-mosaic-mcp/internal/server"
	"github.com/ironsheep/image-mosaic-mcp/internal/tileservice"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("image-mosaic-mcp - MCP server for building image mosaics")
	fmt.Println()
	fmt.Println("Usage: image-mosaic-mcp [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  (none)           Serve MCP over stdin/stdout")
	fmt.Println("  serve-tiles      Serve solid color tiles at GET /color/RRGGBB over HTTP")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  MOSAIC_LOG_LEVEL=debug           Enable debug logging")
	fmt.Println("  MOSAIC_TILE_WIDTH, MOSAIC_TILE_HEIGHT")
	fmt.Println("                                   Default tile size in pixels (16)")
	fmt.Println("  MOSAIC_TILE_SERVICE_URL          Tile service base URL (empty: render locally)")
	fmt.Println("  MOSAIC_CONCURRENCY               Parallel tile fetches (8)")
	fmt.Println("  MOSAIC_FETCH_TIMEOUT             Per-tile fetch timeout (10s)")
	fmt.Println("  MOSAIC_LISTEN_ADDR               serve-tiles listen address (:8765)")
	fmt.Println("  MOSAIC_S3_ENDPOINT, MOSAIC_S3_REGION, MOSAIC_S3_ACCESS_KEY, MOSAIC_S3_SECRET_KEY")
	fmt.Println("                                   Object storage for output_uri")
	fmt.Println()
	fmt.Println("Configure the MCP server in your MCP client (e.g., Claude Desktop).")
}

func main() {
	command := ""
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("image-mosaic-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		case "serve-tiles":
			command = os.Args[1]
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
			usage()
			os.Exit(2)
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if cfg.Debug {
		log.Printf("Image Mosaic MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if command == "serve-tiles" {
		if err := serveTiles(ctx, cfg); err != nil {
			log.Fatalf("Tile server error: %v", err)
		}
		return
	}

	srv := server.New(cfg)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Server error: %v", err)
	}
}

func serveTiles(ctx context.Context, cfg config.Config) error {
	handler, err := tileservice.Handler(cfg.TileWidth, cfg.TileHeight)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Serving %dx%d tiles on %s", cfg.TileWidth, cfg.TileHeight, cfg.ListenAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}
