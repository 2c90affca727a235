// Package config reads the server configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvLogLevel       = "MOSAIC_LOG_LEVEL"
	EnvTileWidth      = "MOSAIC_TILE_WIDTH"
	EnvTileHeight     = "MOSAIC_TILE_HEIGHT"
	EnvTileServiceURL = "MOSAIC_TILE_SERVICE_URL"
	EnvConcurrency    = "MOSAIC_CONCURRENCY"
	EnvFetchTimeout   = "MOSAIC_FETCH_TIMEOUT"
	EnvListenAddr     = "MOSAIC_LISTEN_ADDR"
	EnvS3Endpoint     = "MOSAIC_S3_ENDPOINT"
	EnvS3Region       = "MOSAIC_S3_REGION"
	EnvS3AccessKey    = "MOSAIC_S3_ACCESS_KEY"
	EnvS3SecretKey    = "MOSAIC_S3_SECRET_KEY"
)

// Config holds server defaults. Tool arguments override the mosaic fields
// per call.
type Config struct {
	Debug bool

	TileWidth      int
	TileHeight     int
	TileServiceURL string // empty: render tiles locally
	Concurrency    int
	FetchTimeout   time.Duration

	ListenAddr string // serve-tiles mode

	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
}

// Default returns the configuration used when no variables are set.
func Default() Config {
	return Config{
		TileWidth:    16,
		TileHeight:   16,
		Concurrency:  8,
		FetchTimeout: 10 * time.Second,
		ListenAddr:   ":8765",
		S3Region:     "us-east-1",
	}
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup reads the configuration through lookup, which has the
// signature of os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvLogLevel); ok {
		cfg.Debug = strings.EqualFold(v, "debug")
	}

	ints := []struct {
		key string
		dst *int
	}{
		{EnvTileWidth, &cfg.TileWidth},
		{EnvTileHeight, &cfg.TileHeight},
		{EnvConcurrency, &cfg.Concurrency},
	}
	for _, it := range ints {
		v, ok := get(it.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("%s must be a positive integer, got %q", it.key, v)
		}
		*it.dst = n
	}

	if v, ok := get(EnvFetchTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%s must be a positive duration, got %q", EnvFetchTimeout, v)
		}
		cfg.FetchTimeout = d
	}

	if v, ok := get(EnvTileServiceURL); ok {
		cfg.TileServiceURL = strings.TrimRight(v, "/")
	}
	if v, ok := get(EnvListenAddr); ok {
		cfg.ListenAddr = v
	}
	if v, ok := get(EnvS3Endpoint); ok {
		cfg.S3Endpoint = v
	}
	if v, ok := get(EnvS3Region); ok {
		cfg.S3Region = v
	}
	if v, ok := get(EnvS3AccessKey); ok {
		cfg.S3AccessKey = v
	}
	if v, ok := get(EnvS3SecretKey); ok {
		cfg.S3SecretKey = v
	}

	return cfg, nil
}
