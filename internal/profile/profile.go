package profile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory holding the JSON catalog and session files
	Data string
	// Version is the current version of server
	Version string

	// LLM configuration
	LLMAPIKey      string        // MARKETSENSE_LLM_API_KEY
	LLMBaseURL     string        // MARKETSENSE_LLM_BASE_URL (default: https://api.deepseek.com)
	LLMModel       string        // MARKETSENSE_LLM_MODEL (default: deepseek-chat)
	LLMMaxRetries  int           // MARKETSENSE_LLM_MAX_RETRIES (default: 3)
	LLMTimeout     time.Duration // MARKETSENSE_LLM_TIMEOUT (default: 60s)

	// MaxConcurrentOrchestrations bounds simultaneous agent pipelines.
	MaxConcurrentOrchestrations int // MARKETSENSE_MAX_CONCURRENT (default: 8)
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from MARKETSENSE_* environment variables.
// Values already set on the profile are only replaced by non-empty env values.
func (p *Profile) FromEnv() {
	if v := os.Getenv("MARKETSENSE_MODE"); v != "" {
		p.Mode = v
	}
	if v := os.Getenv("MARKETSENSE_ADDR"); v != "" {
		p.Addr = v
	}
	if v := os.Getenv("MARKETSENSE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			p.Port = port
		}
	}
	if v := os.Getenv("MARKETSENSE_DATA"); v != "" {
		p.Data = v
	}

	p.LLMAPIKey = getEnvOrDefault("MARKETSENSE_LLM_API_KEY", p.LLMAPIKey)
	p.LLMBaseURL = getEnvOrDefault("MARKETSENSE_LLM_BASE_URL", p.LLMBaseURL)
	p.LLMModel = getEnvOrDefault("MARKETSENSE_LLM_MODEL", p.LLMModel)
	if v := os.Getenv("MARKETSENSE_LLM_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.LLMMaxRetries = n
		}
	}
	if v := os.Getenv("MARKETSENSE_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			p.LLMTimeout = d
		}
	}
	if v := os.Getenv("MARKETSENSE_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.MaxConcurrentOrchestrations = n
		}
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		absDir, err := filepath.Abs(dataDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		if !os.IsNotExist(err) {
			return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
		}
		if err := os.MkdirAll(dataDir, 0o770); err != nil {
			return "", errors.Wrapf(err, "unable to create data folder %s", dataDir)
		}
	}
	return dataDir, nil
}

// Validate normalizes and checks the profile, filling defaults for unset values.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Addr == "" {
		p.Addr = "0.0.0.0"
	}
	if p.Port == 0 {
		p.Port = 8000
	}
	if p.Data == "" {
		p.Data = "data"
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return err
	}
	p.Data = dataDir

	if p.LLMBaseURL == "" {
		p.LLMBaseURL = "https://api.deepseek.com"
	}
	if p.LLMModel == "" {
		p.LLMModel = "deepseek-chat"
	}
	if p.LLMMaxRetries <= 0 {
		p.LLMMaxRetries = 3
	}
	if p.LLMTimeout <= 0 {
		p.LLMTimeout = 60 * time.Second
	}
	if p.MaxConcurrentOrchestrations <= 0 {
		p.MaxConcurrentOrchestrations = 8
	}
	return nil
}
