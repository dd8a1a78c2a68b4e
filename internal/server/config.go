package server

import "time"

// Config holds the handful of settings that are load-bearing for the
// core (§6): where to listen, and how patient to be with an idle
// connection. Everything else the teacher's Config carried
// (persistence, replication, clustering) is out of scope here.
type Config struct {
	Host           string
	Port           int
	MaxConnections int
	ReadBufferSize int
	ReadTimeout    time.Duration
	LogLevel       string
}

// DefaultConfig mirrors the teacher's DefaultConfig defaults for the
// fields that still apply.
func DefaultConfig() *Config {
	return &Config{
		Host:           "0.0.0.0",
		Port:           6379,
		MaxConnections: 10000,
		ReadBufferSize: 4096,
		ReadTimeout:    30 * time.Second,
		LogLevel:       "info",
	}
}
