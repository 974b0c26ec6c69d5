package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ilclone/internal/il/ilasm"
)

// Config holds the settings shared by every command.
type Config struct {
	// SearchPath lists the directories modules are resolved from.
	SearchPath []string
	// CacheSize bounds the number of loaded modules.
	CacheSize int
}

func defaultConfig() Config {
	return Config{SearchPath: []string{"."}, CacheSize: ilasm.DefaultCacheSize}
}

// loadConfig applies ILCLONE_PATH and ILCLONE_CACHE_SIZE on top of the
// defaults. A .env file in the working directory is read by main beforehand.
func loadConfig(getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	if v := getenv("ILCLONE_PATH"); v != "" {
		cfg.SearchPath = filepath.SplitList(v)
	}

	if v := strings.TrimSpace(getenv("ILCLONE_CACHE_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("ILCLONE_CACHE_SIZE must be a positive integer, got %q", v)
		}

		cfg.CacheSize = n
	}

	return cfg, nil
}

func (c Config) resolver(extra ...string) (*ilasm.Resolver, error) {
	return ilasm.NewResolver(append(extra, c.SearchPath...), c.CacheSize)
}

func environ(key string) string { return os.Getenv(key) }
