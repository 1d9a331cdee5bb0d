package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileEnvKey names the environment variable pointing at an optional YAML
// overlay. Keys in the file are the lower-cased environment names, e.g.
// inference_url or breaker_enabled.
const FileEnvKey = "NEUROVISION_CONFIG"

type Config struct {
	APIPort   string
	LogLevel  string
	LogFormat string

	InferenceURL            string
	InferenceTimeoutSeconds int
	SubmitDelayMS           int
	HighConfidenceThreshold float64

	PreviewStore string
	PreviewDir   string

	NATSURL     string
	NATSSubject string

	BreakerEnabled            bool
	BreakerMinRequests        int
	BreakerFailureRatio       float64
	BreakerOpenTimeoutSeconds int

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int
	UploadMaxBytes    int64
}

// Load reads configuration from the environment layered over the optional
// YAML file named by NEUROVISION_CONFIG.
func Load() (Config, error) {
	file, err := readFile(os.Getenv(FileEnvKey))
	if err != nil {
		return Config{}, err
	}
	src := source{file: file}

	return Config{
		APIPort:   src.str("API_PORT", "8080"),
		LogLevel:  src.str("LOG_LEVEL", "info"),
		LogFormat: src.str("LOG_FORMAT", "json"),

		InferenceURL:            src.str("INFERENCE_URL", "http://localhost:8000/api/predict"),
		InferenceTimeoutSeconds: src.integer("INFERENCE_TIMEOUT_SECONDS", 30),
		SubmitDelayMS:           src.integer("SUBMIT_DELAY_MS", 0),
		HighConfidenceThreshold: src.decimal("HIGH_CONFIDENCE_THRESHOLD", 0.8),

		PreviewStore: strings.ToLower(src.str("PREVIEW_STORE", "memory")),
		PreviewDir:   src.str("PREVIEW_DIR", "./data/previews"),

		NATSURL:     src.str("NATS_URL", ""),
		NATSSubject: src.str("NATS_SUBJECT", "diagnostics.outcome"),

		BreakerEnabled:            src.flag("BREAKER_ENABLED", false),
		BreakerMinRequests:        src.integer("BREAKER_MIN_REQUESTS", 5),
		BreakerFailureRatio:       src.decimal("BREAKER_FAILURE_RATIO", 0.6),
		BreakerOpenTimeoutSeconds: src.integer("BREAKER_OPEN_TIMEOUT_SECONDS", 30),

		APIRateLimitRPS:   src.decimal("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: src.integer("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    src.integer("API_MAX_IN_FLIGHT", 64),
		UploadMaxBytes:    int64(src.integer("UPLOAD_MAX_BYTES", 20*1024*1024)),
	}, nil
}

func readFile(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	values := make(map[string]string, len(doc))
	for key, value := range doc {
		if value == nil {
			continue
		}
		values[strings.ToLower(strings.TrimSpace(key))] = fmt.Sprint(value)
	}
	return values, nil
}

type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[strings.ToLower(key)]
}

func (s source) str(key, fallback string) string {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	return v
}

func (s source) integer(key string, fallback int) int {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) decimal(key string, fallback float64) float64 {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) flag(key string, fallback bool) bool {
	v := s.lookup(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
