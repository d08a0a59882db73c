package internal

import (
	"io"

	"github.com/starford/skylabel/internal/labeling"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	notifier  labeling.Notifier
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the JSON log stream. The MCP command sends logs
// to stderr because stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

func withNotifier(n labeling.Notifier) Option {
	return func(a *application) {
		a.notifier = n
	}
}
