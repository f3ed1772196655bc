package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/reteflow/internal/queryir"
	"github.com/roach88/reteflow/internal/sparql"
)

// Config is the topology section of a CUE configuration:
//
//	topology: {
//		parallelism:       4
//		strict_joins:      false
//		static_predicates: ["http://example.org/label"]
//	}
type Config struct {
	Parallelism      int      `json:"parallelism"`
	StrictJoins      bool     `json:"strict_joins"`
	StaticPredicates []string `json:"static_predicates,omitempty"`
}

// Options converts the configuration into compiler options.
func (c Config) Options() []Option {
	var opts []Option
	if c.Parallelism > 0 {
		opts = append(opts, WithParallelism(c.Parallelism))
	}
	if c.StrictJoins {
		opts = append(opts, WithStrictJoins())
	}
	if len(c.StaticPredicates) > 0 {
		opts = append(opts, WithStaticPredicates(c.StaticPredicates...))
	}
	return opts
}

// QuerySpec is one named query of a CUE configuration:
//
//	query: "by-author": { sparql: "SELECT ..." }
type QuerySpec struct {
	Name  string
	Text  string
	Query *queryir.Query
	Pos   token.Pos
}

// CompileConfig parses the topology struct. A value that does not exist
// yields the zero Config, which keeps every default.
func CompileConfig(v cue.Value) (Config, error) {
	var cfg Config
	if !v.Exists() {
		return cfg, nil
	}
	if err := v.Err(); err != nil {
		return cfg, formatCUEError(err)
	}

	if pv := v.LookupPath(cue.ParsePath("parallelism")); pv.Exists() {
		n, err := pv.Int64()
		if err != nil {
			return cfg, formatCUEError(err)
		}
		if n < 1 {
			return cfg, &CompileError{
				Code:    ErrConfig,
				Field:   "topology.parallelism",
				Message: fmt.Sprintf("parallelism must be >= 1, got %d", n),
				Pos:     pv.Pos(),
			}
		}
		cfg.Parallelism = int(n)
	}

	if sv := v.LookupPath(cue.ParsePath("strict_joins")); sv.Exists() {
		strict, err := sv.Bool()
		if err != nil {
			return cfg, formatCUEError(err)
		}
		cfg.StrictJoins = strict
	}

	if lv := v.LookupPath(cue.ParsePath("static_predicates")); lv.Exists() {
		iter, err := lv.List()
		if err != nil {
			return cfg, formatCUEError(err)
		}
		for iter.Next() {
			iri, err := iter.Value().String()
			if err != nil {
				return cfg, formatCUEError(err)
			}
			cfg.StaticPredicates = append(cfg.StaticPredicates, iri)
		}
	}

	return cfg, nil
}

// CompileQuery parses one entry of the query struct. The query name is
// taken from the struct label.
func CompileQuery(v cue.Value) (*QuerySpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &QuerySpec{Pos: v.Pos()}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].Unquoted()
	}

	textVal := v.LookupPath(cue.ParsePath("sparql"))
	if !textVal.Exists() {
		return nil, &CompileError{
			Code:    ErrConfig,
			Field:   "query." + spec.Name,
			Message: "sparql is required",
			Pos:     v.Pos(),
		}
	}
	text, err := textVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Text = text

	q, err := sparql.Parse(text)
	if err != nil {
		return nil, &CompileError{
			Code:    ErrQuerySyntax,
			Field:   "query." + spec.Name + ".sparql",
			Message: err.Error(),
			Pos:     textVal.Pos(),
			Err:     err,
		}
	}
	spec.Query = q
	return spec, nil
}

// formatCUEError converts a CUE error to a config CompileError, keeping the
// first error's position when it has one.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	ce := &CompileError{
		Code:    ErrConfig,
		Field:   "cue",
		Message: err.Error(),
		Err:     err,
	}
	if errs := errors.Errors(err); len(errs) > 0 {
		first := errs[0]
		ce.Message = first.Error()
		if positions := errors.Positions(first); len(positions) > 0 {
			ce.Pos = positions[0]
		}
	}
	return ce
}
