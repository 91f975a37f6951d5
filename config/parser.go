package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	tlsprobe "github.com/mel2oo/tlsprobe"
	"github.com/mel2oo/tlsprobe/hello"
	"github.com/mel2oo/tlsprobe/optionals"
	"github.com/mel2oo/tlsprobe/proxy"
)

const (
	// Seconds. Config files target slow corporate paths, so the default is
	// longer than a bare probe's.
	DefaultTimeout = 30

	DefaultTargetPort = 443
)

var ErrInvalid = errors.New("invalid configuration")

// ReadConfig reads the configuration from the path
func ReadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c, err := ParseConfig(b)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	c.path = path
	return c, nil
}

// ParseConfig returns config from JSON bytes.
func ParseConfig(b []byte) (*Config, error) {
	var c Config

	if err := json.Unmarshal(b, &c); err != nil {
		return nil, errors.Wrap(err, "parsing json")
	}

	c.Default()

	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating")
	}
	return &c, nil
}

type Metadata struct {
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at"`
	Description string `json:"description"`
}

// Config describes a target and, optionally, the proxy to reach it through.
type Config struct {
	TargetHost    string        `json:"target_host"`
	TargetPort    int           `json:"target_port"`
	ProxyHost     string        `json:"proxy_host,omitempty"`
	ProxyPort     int           `json:"proxy_port,omitempty"`
	ProxyUsername string        `json:"proxy_username,omitempty"`
	ProxyPassword string        `json:"proxy_password,omitempty"`
	Timeout       float64       `json:"timeout"`
	Profile       hello.Profile `json:"profile"`
	SNI           *bool         `json:"sni,omitempty"`

	Metadata *Metadata `json:"_metadata,omitempty"`

	mutex sync.Mutex
	path  string
}

// Path is where the config was read from or last written to.
func (c *Config) Path() string {
	return c.path
}

// Default fills in unset optional fields.
func (c *Config) Default() {
	if c.TargetPort == 0 {
		c.TargetPort = DefaultTargetPort
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Validate the config file
func (c *Config) Validate() error {
	if c.TargetHost == "" {
		return errors.Wrap(ErrInvalid, "missing target_host")
	}
	if c.TargetPort < 1 || c.TargetPort > 65535 {
		return errors.Wrapf(ErrInvalid, "target_port %d out of range", c.TargetPort)
	}
	if c.Timeout < 0 {
		return errors.Wrapf(ErrInvalid, "negative timeout %v", c.Timeout)
	}
	if p, ok := c.Proxy().Get(); ok {
		if err := p.Validate(); err != nil {
			return errors.Wrap(ErrInvalid, err.Error())
		}
	} else if c.ProxyPort != 0 || c.ProxyUsername != "" || c.ProxyPassword != "" {
		return errors.Wrap(ErrInvalid, "proxy settings without proxy_host")
	}
	return nil
}

func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout * float64(time.Second))
}

// Proxy is None when the config describes a direct connection.
func (c *Config) Proxy() optionals.Optional[proxy.Config] {
	if c.ProxyHost == "" {
		return optionals.None[proxy.Config]()
	}
	return optionals.Some(proxy.Config{
		Host:     c.ProxyHost,
		Port:     c.ProxyPort,
		Username: c.ProxyUsername,
		Password: c.ProxyPassword,
	})
}

// Options turns the config into probe options.
func (c *Config) Options() []tlsprobe.Option {
	opts := []tlsprobe.Option{
		tlsprobe.WithTimeout(c.TimeoutDuration()),
		tlsprobe.WithProfile(c.Profile),
	}
	if c.SNI != nil {
		opts = append(opts, tlsprobe.WithSNI(*c.SNI))
	}
	if p, ok := c.Proxy().Get(); ok {
		opts = append(opts, tlsprobe.WithProxy(p))
	}
	return opts
}

// Stamp records who created the config and when.
func (c *Config) Stamp(createdBy string, now time.Time) {
	desc := fmt.Sprintf("configuration for %s:%d", c.TargetHost, c.TargetPort)
	if c.ProxyHost != "" {
		desc += fmt.Sprintf(" via %s:%d", c.ProxyHost, c.ProxyPort)
	}
	c.Metadata = &Metadata{
		CreatedBy:   createdBy,
		CreatedAt:   now.Format("2006-01-02 15:04:05"),
		Description: desc,
	}
}

// Write the config file in json to the path. An empty path writes back to
// where the config was read from. The file may hold proxy credentials, so it
// is only readable by its owner.
func (c *Config) Write(path string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if path == "" {
		path = c.path
	}
	if path == "" {
		return errors.New("config file path is empty")
	}

	configJSON, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding config JSON")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}
	if err := os.WriteFile(path, append(configJSON, '\n'), 0o600); err != nil {
		return errors.Wrap(err, "writing config JSON")
	}
	c.path = path
	return nil
}
