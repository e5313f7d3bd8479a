package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/roach88/policygraph/internal/compiler"
	"github.com/roach88/policygraph/internal/editor"
	"github.com/roach88/policygraph/internal/ir"
	"github.com/roach88/policygraph/internal/nodes"
)

// Error code constants shared by all CLI commands. Structural problems in a
// definition use the compiler's E1xx codes.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // Definition could not be parsed or decoded
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // Graph could not be built
	ErrCodeStore       = "E007" // Database error
	ErrCodeUnknownNode = "E008" // --node names no node
)

// LoadError represents an error that occurred while loading a graph.
type LoadError struct {
	Code    string
	Message string
	Pos     compiler.Position
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadResult is a loaded graph definition and, once built, its graph.
type LoadResult struct {
	Spec      compiler.GraphSpec
	Graph     *ir.Graph
	Source    string // "cue", "hcl" or "demo"
	FileCount int    // CUE files read; 1 for an .hcl file
}

// LoadDefinition reads a graph definition without building it.
func LoadDefinition(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("graph definition not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing %s: %v", path, err)}
	}

	result := &LoadResult{Source: "cue", FileCount: 1}
	switch {
	case info.IsDir():
		files, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		result.FileCount = len(files)
	case filepath.Ext(path) == ".hcl":
		result.Source = "hcl"
	}

	spec, err := compiler.LoadPath(path)
	if err != nil {
		return nil, convertCompileError(ErrCodeLoadFailed, err)
	}
	result.Spec = spec
	return result, nil
}

// LoadGraph reads and builds the graph definition at path.
func LoadGraph(path string, registry *nodes.Registry) (*LoadResult, error) {
	result, err := LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	g, err := compiler.Build(result.Spec, registry)
	if err != nil {
		return nil, convertCompileError(ErrCodeBuildFailed, err)
	}
	result.Graph = g
	return result, nil
}

// DemoGraph wraps the built-in demo graph as a load result.
func DemoGraph(registry *nodes.Registry) *LoadResult {
	g := editor.DemoGraph(registry)
	return &LoadResult{Graph: g, Source: "demo"}
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError keeps the position of a compiler error.
func convertCompileError(code string, err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    code,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: code, Message: err.Error()}
}

// loadErrorParts splits any error into a code, message and position.
func loadErrorParts(err error) (string, string, compiler.Position) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message, loadErr.Pos
	}
	return ErrCodeGeneric, err.Error(), compiler.Position{}
}
