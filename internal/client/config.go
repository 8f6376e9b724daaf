package client

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/client-go/util/homedir"
	"sigs.k8s.io/yaml"
)

const (
	// TestRootDirEnvKey is the environment variable key used to set the file system root when testing.
	TestRootDirEnvKey = "DEALER_TEST_ROOT_DIR"
)

// Config holds the information needed to connect to the dealer API.
type Config struct {
	Service Service `json:"service"`

	// baseDir is used to resolve relative paths
	// If baseDir is empty, the current working directory is used.
	baseDir string `json:"-"`
	// testRootDir is the root directory for test files.
	testRootDir string `json:"-"`
}

// Service contains information how to reach the dealer API.
type Service struct {
	// Server is the URL of the dealer API (the part before /cars/...).
	Server string `json:"server"`
}

func (c *Config) SetBaseDir(baseDir string) {
	c.baseDir = baseDir
}

func NewDefault() *Config {
	c := &Config{}

	if value := os.Getenv(TestRootDirEnvKey); value != "" {
		c.testRootDir = filepath.Clean(value)
	}

	return c
}

// NewFromConfig returns a new ImportClient from the given config.
func NewFromConfig(config *Config, timeout time.Duration) *ImportClient {
	return NewImportClient(config.Service.Server, timeout)
}

// NewHTTPClient returns the HTTP client used to talk to the dealer API.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// DefaultConfigPath returns the default path to the dealerctl client config file.
func DefaultConfigPath() string {
	return filepath.Join(homedir.HomeDir(), ".dealer", "client.yaml")
}

func ParseConfigFile(filename string) (*Config, error) {
	contents, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	config := NewDefault()
	if err := yaml.Unmarshal(contents, config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	config.SetBaseDir(filepath.Dir(filename))
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// NewFromConfigFile returns a new ImportClient using the config read from the given file.
func NewFromConfigFile(filename string, timeout time.Duration) (*ImportClient, error) {
	config, err := ParseConfigFile(filename)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(config, timeout), nil
}

// WriteConfig writes a client config file using the given parameters.
func WriteConfig(filename string, server string) error {
	config := NewDefault()
	config.Service = Service{
		Server: server,
	}
	if err := config.Validate(); err != nil {
		return err
	}

	return config.Persist(filename)
}

func (c *Config) Persist(filename string) error {
	contents, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if c.testRootDir != "" {
		filename = filepath.Join(c.testRootDir, filename)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0700); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.WriteFile(filename, contents, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	validationErrors := make([]error, 0)
	validationErrors = append(validationErrors, validateService(c.Service)...)
	if len(validationErrors) > 0 {
		return fmt.Errorf("invalid configuration: %v", utilerrors.NewAggregate(validationErrors).Error())
	}
	return nil
}

func validateService(service Service) []error {
	validationErrors := make([]error, 0)
	if len(service.Server) == 0 {
		validationErrors = append(validationErrors, fmt.Errorf("no server found"))
		return validationErrors
	}
	u, err := url.Parse(service.Server)
	if err != nil {
		validationErrors = append(validationErrors, fmt.Errorf("invalid server format %q: %w", service.Server, err))
		return validationErrors
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		validationErrors = append(validationErrors, fmt.Errorf("invalid server format %q: scheme must be http or https", service.Server))
	}
	if len(u.Hostname()) == 0 {
		validationErrors = append(validationErrors, fmt.Errorf("invalid server format %q: no hostname", service.Server))
	}
	return validationErrors
}
