package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/reteflow/internal/compiler"
	"github.com/roach88/reteflow/internal/sparql"
)

// LoadMode controls how errors are handled during query loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// queryExtensions are the file extensions read as bare SPARQL text.
var queryExtensions = map[string]bool{".rq": true, ".sparql": true}

// LoadResult contains the queries and topology settings found at a path.
type LoadResult struct {
	Config    compiler.Config
	Queries   []*compiler.QuerySpec
	FileCount int // Number of source files read
}

// LoadError represents an error that occurred during loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadQueries reads queries from path, which is one of:
//   - a .rq or .sparql file holding one SPARQL query
//   - a .cue file
//   - a directory of .cue files forming one CUE package
//
// CUE sources declare queries under query.<name>.sparql and optional
// compiler settings under topology (see compiler.CompileConfig).
func LoadQueries(path string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("path not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing path: %v", err)}}
	}

	if !info.IsDir() {
		ext := filepath.Ext(path)
		switch {
		case queryExtensions[ext]:
			return loadQueryFile(path)
		case ext == ".cue":
			return loadCUE(filepath.Dir(path), []string{filepath.Base(path)}, 1, mode)
		default:
			return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("unsupported file type %q: want .cue, .rq or .sparql", ext)}}
		}
	}

	cueFiles, err := FindCUEFiles(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}}
	}
	return loadCUE(path, []string{"."}, len(cueFiles), mode)
}

// loadQueryFile reads one bare SPARQL query named after its file.
func loadQueryFile(path string) (*LoadResult, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading query: %v", err)}}
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	spec := &compiler.QuerySpec{Name: name, Text: string(data)}

	result := &LoadResult{FileCount: 1}
	q, err := sparql.Parse(spec.Text)
	if err != nil {
		return result, []error{&LoadError{
			Code:    compiler.ErrQuerySyntax,
			Message: fmt.Sprintf("%s: %v", filepath.Base(path), err),
		}}
	}
	spec.Query = q
	result.Queries = []*compiler.QuerySpec{spec}
	return result, nil
}

// loadCUE builds the CUE instance rooted at dir and extracts its topology
// config and queries.
func loadCUE(dir string, args []string, fileCount int, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{FileCount: fileCount}

	cfg, err := compiler.CompileConfig(value.LookupPath(cue.ParsePath("topology")))
	if err != nil {
		errs = append(errs, convertCompileError(err, "topology"))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}
	result.Config = cfg

	queriesVal := value.LookupPath(cue.ParsePath("query"))
	if queriesVal.Exists() {
		iter, iterErr := queriesVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating queries: %v", iterErr)})
			return result, errs
		}
		for iter.Next() {
			spec, compileErr := compiler.CompileQuery(iter.Value())
			if compileErr != nil {
				errs = append(errs, convertCompileError(compileErr, "query."+iter.Selector().Unquoted()))
				if mode == LoadModeFailFast {
					return result, errs
				}
				continue
			}
			result.Queries = append(result.Queries, spec)
		}
	}

	if len(result.Queries) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoQueries, Message: "no queries found"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    compileErr.Code,
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants for failures outside the compiler. Compile errors
// keep the compiler's own E2xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No usable source files
	ErrCodeLoadFailed  = "E004" // CUE load or file read failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeNoQueries   = "E008" // Sources declare no query
	ErrCodeFacts       = "E009" // Facts file unreadable or malformed
	ErrCodeStore       = "E010" // Catalog open/read/write failed
	ErrCodeNotInStore  = "E011" // Topology ID not in the catalog
)

// errorMessage returns err's text without the position prefix a LoadError
// carries, for output that prints the position on its own line.
func errorMessage(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Message
	}
	return err.Error()
}

// errorCode returns the code carried by err: a LoadError's or
// CompileError's code, or ErrCodeGeneric.
func errorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	if code := compiler.ErrorCode(err); code != "" {
		return code
	}
	return ErrCodeGeneric
}
