package proxy

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
)

var ErrConfigurationInvalid = errors.New("invalid proxy configuration")

// Config describes an HTTP proxy that accepts CONNECT. Password is never
// serialized or logged.
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"-"`
}

// Credentials for Basic proxy authentication.
type Credentials struct {
	Username string
	Password string
}

func (c Config) Validate() error {
	if c.Host == "" {
		return errors.Wrap(ErrConfigurationInvalid, "missing proxy host")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Wrapf(ErrConfigurationInvalid, "proxy port %d out of range", c.Port)
	}
	if (c.Username == "") != (c.Password == "") {
		return errors.Wrap(ErrConfigurationInvalid, "proxy username and password must be set together")
	}
	return nil
}

func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Credentials returns nil when the proxy needs no authentication.
func (c Config) Credentials() *Credentials {
	if c.Username == "" || c.Password == "" {
		return nil
	}
	return &Credentials{Username: c.Username, Password: c.Password}
}

// Redacted renders the proxy for logs with the password masked.
func (c Config) Redacted() string {
	if c.Username == "" {
		return c.Address()
	}
	return c.Username + ":" + redactedValue + "@" + c.Address()
}
