package s3

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds the endpoint and credentials for one S3-compatible
// service. It is immutable after construction: the signing engine
// borrows it for the duration of a single signing operation and never
// stores or logs the secret key.
type Config struct {
	Protocol  string `json:"protocol"`
	Host      string `json:"host"`
	Port      int    `json:"port,omitempty"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region,omitempty"`
}

// NewConfig builds a Config from in-memory values and validates it.
func NewConfig(protocol, host string, port int, accessKey, secretKey string) (*Config, error) {
	conf := &Config{
		Protocol:  protocol,
		Host:      host,
		Port:      port,
		AccessKey: accessKey,
		SecretKey: secretKey,
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// LoadConfig reads a Config from a JSON file of the form
//
//	{"protocol": "http", "host": "localhost", "port": 8000,
//	 "access_key": "...", "secret_key": "..."}
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	conf := &Config{}
	if err := json.Unmarshal(data, conf); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrConfiguration, path, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate fails fast on any missing required field.
func (c *Config) Validate() error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil config", ErrConfiguration)
	case c.Protocol != "http" && c.Protocol != "https":
		return fmt.Errorf("%w: protocol must be http or https, got %q", ErrConfiguration, c.Protocol)
	case c.Host == "":
		return fmt.Errorf("%w: host is required", ErrConfiguration)
	case c.Port < 0:
		return fmt.Errorf("%w: negative port %d", ErrConfiguration, c.Port)
	case c.AccessKey == "":
		return fmt.Errorf("%w: access_key is required", ErrConfiguration)
	case c.SecretKey == "":
		return fmt.Errorf("%w: secret_key is required", ErrConfiguration)
	}
	return nil
}

// HostHeader returns the Host header value: the port is appended only
// when explicitly configured.
func (c *Config) HostHeader() string {
	if c.Port > 0 {
		return fmt.Sprintf("%s:%d", c.Host, c.Port)
	}
	return c.Host
}

// Endpoint returns the base URL, e.g. "http://localhost:8000".
func (c *Config) Endpoint() string {
	return c.Protocol + "://" + c.HostHeader()
}
