package config

import (
	"errors"
	"fmt"
	"time"
)

type Config struct {
	Bind          string
	Port          int
	OpenAIKey     string
	OpenAIBaseURL string
	Model         string
	SessionTTL    time.Duration
	Verbose       bool
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.SessionTTL <= 0 {
		return errors.New("session-ttl must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}
