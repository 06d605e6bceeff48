package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Matching  MatchingConfig
	Extractor ExtractorConfig
	Store     StoreConfig
	Database  DatabaseConfig
	MariaDB   MariaDBConfig
	Server    ServerConfig
	Queue     QueueConfig
	Defaults  Defaults
}

type MatchingConfig struct {
	// Tolerance is the calibrated Euclidean distance threshold. 0.6 is the
	// dlib model's published default; recalibrate with `faceid calibrate`.
	Tolerance float64
}

type ExtractorConfig struct {
	ModelsDir string // directory holding the dlib model files
}

type StoreConfig struct {
	EncodingsPath string // JSON document path for the file-backed store
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; empty disables the backend
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string // MariaDB DSN (needs parseTime=true); empty disables the backend
}

type ServerConfig struct {
	ListenAddr     string
	AllowedOrigins string // comma-separated CORS origin whitelist; empty allows none
}

type QueueConfig struct {
	Workers    int           // concurrent recognition jobs
	SubmitWait time.Duration // how long a request waits for a worker before running locally
}

// Defaults holds the static engine parameters shipped in the binary. They
// are deployment constants, not per-environment knobs.
type Defaults struct {
	Quality struct {
		MinFacePx              int     `yaml:"min_face_px"`
		EnrollBlurThreshold    float64 `yaml:"enroll_blur_threshold"`
		RecognizeBlurThreshold float64 `yaml:"recognize_blur_threshold"`
	} `yaml:"quality"`
	Image struct {
		MaxBytes     int `yaml:"max_bytes"`
		MaxDimension int `yaml:"max_dimension"`
	} `yaml:"image"`
	Calibration struct {
		Start float64 `yaml:"start"`
		End   float64 `yaml:"end"`
		Step  float64 `yaml:"step"`
	} `yaml:"calibration"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var defaults Defaults
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// This is an embedded file so this error should never happen in practice.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Matching: MatchingConfig{
			Tolerance: envFloat("FACE_TOLERANCE", 0.6),
		},
		Extractor: ExtractorConfig{
			ModelsDir: envString("FACE_MODELS_DIR", "models"),
		},
		Store: StoreConfig{
			EncodingsPath: envString("ENCODINGS_PATH", "data/encodings.json"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Server: ServerConfig{
			ListenAddr:     envString("LISTEN_ADDR", ":8080"),
			AllowedOrigins: os.Getenv("CORS_ALLOWED_ORIGINS"),
		},
		Queue: QueueConfig{
			Workers:    envInt("RECOGNITION_QUEUE_WORKERS", 4),
			SubmitWait: time.Duration(envInt("RECOGNITION_QUEUE_WAIT_MS", 500)) * time.Millisecond,
		},
		Defaults: defaults,
	}
}
