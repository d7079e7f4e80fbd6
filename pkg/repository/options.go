package repository

import (
	"go.uber.org/zap"

	"github.com/kscrap/kscrap/pkg/config"
	"github.com/kscrap/kscrap/pkg/transmitter"
)

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger. The global logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// WithTransmitter forwards every stored item to t.
func WithTransmitter(t transmitter.Transmitter) Option {
	return func(r *Repository) {
		r.transmitter = t
	}
}

// WithPathValidator replaces the check that the output directory exists.
func WithPathValidator(v config.PathValidator) Option {
	return func(r *Repository) {
		r.validator = v
	}
}

// WithRowHook is called by every save after each row is flushed.
func WithRowHook(fn func(rows int)) Option {
	return func(r *Repository) {
		r.rowHook = fn
	}
}

// WithName names the repository in logs and metrics. The base name of the
// output file is used otherwise.
func WithName(name string) Option {
	return func(r *Repository) {
		r.name = name
	}
}
