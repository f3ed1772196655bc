package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/reteflow/internal/ir"
)

// Scenario defines a conformance test scenario: one query, the facts
// streamed through its topology, and what the compiled topology and its
// results must look like.
type Scenario struct {
	// Name uniquely identifies this scenario. It also prefixes the
	// descriptor IDs and names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Query is the SPARQL text to compile.
	Query string `yaml:"query"`

	// Facts are the streamed triples, in Turtle-like syntax.
	Facts string `yaml:"facts,omitempty"`

	// Reference holds the side-loaded facts read by static filters.
	Reference string `yaml:"reference,omitempty"`

	// Static lists predicate IRIs compiled to static filters.
	Static []string `yaml:"static,omitempty"`

	// Parallelism is the default node parallelism. Zero keeps the
	// compiler default.
	Parallelism int `yaml:"parallelism,omitempty"`

	// StrictJoins rejects cartesian joins.
	StrictJoins bool `yaml:"strict_joins,omitempty"`

	// MaxRows caps rows emitted during the run. Zero keeps the engine
	// default.
	MaxRows int64 `yaml:"max_rows,omitempty"`

	// Expect holds the checks evaluated after the run.
	Expect Expect `yaml:"expect"`
}

// Expect lists the checks of a scenario. Unset fields are not checked.
type Expect struct {
	// Filters is the number of triple-pattern filter nodes.
	Filters *int `yaml:"filters,omitempty"`

	// Predicates is the number of FILTER expression nodes.
	Predicates *int `yaml:"predicates,omitempty"`

	// Joins is the number of join nodes.
	Joins *int `yaml:"joins,omitempty"`

	// Terminals is the number of terminal nodes, subqueries included.
	Terminals *int `yaml:"terminals,omitempty"`

	// TerminalGrouping is the grouping kind of every edge into the output
	// terminal: shuffle, fields or global.
	TerminalGrouping string `yaml:"terminal_grouping,omitempty"`

	// TerminalParallelism is the parallelism of the output terminal.
	TerminalParallelism int `yaml:"terminal_parallelism,omitempty"`

	// Warnings lists the descriptor warning codes, in order.
	Warnings []string `yaml:"warnings,omitempty"`

	// Rows is the expected result multiset, compared order-insensitively.
	// IRIs are written <iri>, literals by lexical form, unbound as UNDEF.
	Rows [][]string `yaml:"rows,omitempty"`

	// RowCount is the expected number of result rows.
	RowCount *int `yaml:"row_count,omitempty"`

	// Error is the code the scenario must fail with, compile-time
	// (E2xx) or runtime (ROW_BUDGET_EXCEEDED, ...).
	Error string `yaml:"error,omitempty"`
}

func (e Expect) empty() bool {
	return e.Filters == nil && e.Predicates == nil && e.Joins == nil &&
		e.Terminals == nil && e.TerminalGrouping == "" && e.TerminalParallelism == 0 &&
		e.Warnings == nil && e.Rows == nil && e.RowCount == nil && e.Error == ""
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir, sorted. A
// non-empty filter is a glob matched against the file name without its
// extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	sort.Strings(files)
	return files, err
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if strings.TrimSpace(s.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if s.Parallelism < 0 {
		return fmt.Errorf("parallelism must be non-negative, got %d", s.Parallelism)
	}
	if s.MaxRows < 0 {
		return fmt.Errorf("max_rows must be non-negative, got %d", s.MaxRows)
	}
	return validateExpect(&s.Expect)
}

func validateExpect(e *Expect) error {
	if e.empty() {
		return fmt.Errorf("expect must contain at least one check")
	}

	for name, n := range map[string]*int{
		"filters":    e.Filters,
		"predicates": e.Predicates,
		"joins":      e.Joins,
		"terminals":  e.Terminals,
		"row_count":  e.RowCount,
	} {
		if n != nil && *n < 0 {
			return fmt.Errorf("expect.%s must be non-negative", name)
		}
	}

	switch ir.GroupingKind(e.TerminalGrouping) {
	case "", ir.GroupingShuffle, ir.GroupingFields, ir.GroupingGlobal:
	default:
		return fmt.Errorf("expect.terminal_grouping: unknown grouping %q", e.TerminalGrouping)
	}

	if e.TerminalParallelism < 0 {
		return fmt.Errorf("expect.terminal_parallelism must be non-negative")
	}

	if e.Error != "" && (e.Rows != nil || e.RowCount != nil) {
		return fmt.Errorf("expect.error cannot be combined with rows or row_count")
	}
	if e.Rows != nil && e.RowCount != nil && len(e.Rows) != *e.RowCount {
		return fmt.Errorf("expect.row_count is %d but rows lists %d", *e.RowCount, len(e.Rows))
	}
	return nil
}
