package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Client *ClientConfig
	Sim    *SimConfig
}

type ClientConfig struct {
	ServerUrl      string        `envconfig:"DEALER_API_URL" default:"http://localhost:8080/api"`
	RequestTimeout time.Duration `envconfig:"DEALER_REQUEST_TIMEOUT" default:"30s"`
	PollInterval   time.Duration `envconfig:"DEALER_POLL_INTERVAL" default:"2s"`
	PollJitter     time.Duration `envconfig:"DEALER_POLL_JITTER" default:"0s"`
	LogLevel       string        `envconfig:"DEALER_LOG_LEVEL" default:"warn"`
}

type SimConfig struct {
	Address        string        `envconfig:"DEALER_SIM_ADDRESS" default:":8080"`
	BasePath       string        `envconfig:"DEALER_SIM_BASE_PATH" default:"/api"`
	ProcessDelay   time.Duration `envconfig:"DEALER_SIM_PROCESS_DELAY" default:"3s"`
	SessionTTL     time.Duration `envconfig:"DEALER_SIM_SESSION_TTL" default:"1h"`
	MaxUploadBytes int64         `envconfig:"DEALER_SIM_MAX_UPLOAD_BYTES" default:"10485760"`
	LogLevel       string        `envconfig:"DEALER_SIM_LOG_LEVEL" default:"info"`
}

// New returns the process-wide configuration, reading the environment once.
func New() (*Config, error) {
	if singleConfig == nil {
		cfg, err := Load()
		if err != nil {
			return nil, err
		}
		singleConfig = cfg
	}
	return singleConfig, nil
}

// Load reads the environment without caching the result.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
