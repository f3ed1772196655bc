package compiler

import (
	"log/slog"

	"github.com/roach88/reteflow/internal/topology"
)

// DefaultParallelism is the instance count of every node whose grouping
// does not force a single instance.
const DefaultParallelism = 4

// Options configures a compilation.
type Options struct {
	Parallelism      int
	StrictJoins      bool
	StaticPredicates map[string]bool
	Logger           *slog.Logger
	IDs              topology.IDGenerator
}

// Option allows configuration of compiler parameters.
type Option func(*Options)

// WithParallelism sets the default node parallelism.
// Values below 1 are ignored.
func WithParallelism(n int) Option {
	return func(o *Options) {
		if n >= 1 {
			o.Parallelism = n
		}
	}
}

// WithStrictJoins rejects queries whose groups need a cartesian join
// instead of warning about them.
func WithStrictJoins() Option {
	return func(o *Options) {
		o.StrictJoins = true
	}
}

// WithStaticPredicates marks predicate IRIs whose facts come from side-loaded
// reference data. Filters on them are fed by the reference store, not the
// spout.
func WithStaticPredicates(iris ...string) Option {
	return func(o *Options) {
		for _, iri := range iris {
			o.StaticPredicates[iri] = true
		}
	}
}

// WithLogger sets the logger used for plan diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithIDGenerator sets the generator for descriptor IDs.
// Default: topology.UUIDv7Generator.
func WithIDGenerator(g topology.IDGenerator) Option {
	return func(o *Options) {
		o.IDs = g
	}
}

func newOptions(opts []Option) *Options {
	o := &Options{
		Parallelism:      DefaultParallelism,
		StaticPredicates: make(map[string]bool),
		Logger:           slog.Default(),
		IDs:              topology.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
