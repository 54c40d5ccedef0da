package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings, read from the environment (and an
// optional .env file).
type Config struct {
	App     AppConfig
	Storage StorageConfig
	Grid    GridConfig
}

type AppConfig struct {
	Environment string
	LogFilePath string
}

type StorageConfig struct {
	DataDir string
	DBPath  string
}

type GridConfig struct {
	PageSize            int
	SearchThrottle      time.Duration
	PageCacheTTL        time.Duration
	FetchLimit          int // max rows read from an external source per refresh
	PaginationThreshold int // tables with more rows than this open paginated
}

// IsProduction reports whether logs should be JSON only.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Load reads the .env file (if present) and the process environment.
// The returned bool is false when no .env file was found.
func Load() (*Config, bool) {
	found := godotenv.Load() == nil

	homeDir, _ := os.UserHomeDir()
	dataDir := getEnv("GRID_DATA_DIR", filepath.Join(homeDir, ".local", "share", "gridkit"))

	return &Config{
		App: AppConfig{
			Environment: getEnv("GRID_ENV", "development"),
			LogFilePath: getEnv("GRID_LOG_FILE", filepath.Join(dataDir, "gridkit.log")),
		},
		Storage: StorageConfig{
			DataDir: dataDir,
			DBPath:  getEnv("GRID_DB_PATH", filepath.Join(dataDir, "gridkit.db")),
		},
		Grid: GridConfig{
			PageSize:            getEnvAsInt("GRID_PAGE_SIZE", 100),
			SearchThrottle:      getEnvAsDuration("GRID_SEARCH_THROTTLE_MS", 300*time.Millisecond),
			PageCacheTTL:        getEnvAsDuration("GRID_PAGE_CACHE_TTL", 30*time.Second),
			FetchLimit:          getEnvAsInt("GRID_FETCH_LIMIT", 50000),
			PaginationThreshold: getEnvAsInt("GRID_PAGINATION_THRESHOLD", 2500),
		},
	}, found
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("2s") or, for keys ending
// in _MS, a bare number of milliseconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if n, err := strconv.Atoi(valueStr); err == nil {
		if strings.HasSuffix(key, "_MS") {
			return time.Duration(n) * time.Millisecond
		}
		return time.Duration(n) * time.Second
	}
	return fallback
}
