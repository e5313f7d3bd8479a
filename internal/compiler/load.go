package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// LoadPath reads a graph definition from disk. path is an .hcl file, a
// .cue file, or a directory of CUE files whose unified value has a
// top-level graph field.
func LoadPath(path string) (GraphSpec, error) {
	info, err := os.Stat(path)
	if err != nil {
		return GraphSpec{}, fmt.Errorf("graph definition: %w", err)
	}
	if !info.IsDir() && filepath.Ext(path) == ".hcl" {
		return LoadHCLFile(path)
	}
	return LoadCUE(path)
}

// LoadHCLFile reads and decodes one HCL graph file.
func LoadHCLFile(path string) (GraphSpec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return GraphSpec{}, fmt.Errorf("read %s: %w", path, err)
	}
	return DecodeHCLGraph(src, path)
}

// LoadCUE builds the CUE instance at path (a directory or a single file)
// and compiles its graph field.
func LoadCUE(path string) (GraphSpec, error) {
	v, err := BuildCUE(path)
	if err != nil {
		return GraphSpec{}, err
	}
	return CompileGraph(v.LookupPath(cue.ParsePath("graph")))
}

// BuildCUE loads the CUE files at path into a single value. Graph
// directories hold package-less files, which load as one anonymous package.
func BuildCUE(path string) (cue.Value, error) {
	info, err := os.Stat(path)
	if err != nil {
		return cue.Value{}, fmt.Errorf("graph definition: %w", err)
	}

	cfg := &load.Config{Dir: path, Package: "_"}
	args := []string{"."}
	if !info.IsDir() {
		cfg = &load.Config{Dir: filepath.Dir(path)}
		args = []string{filepath.Base(path)}
	}

	instances := load.Instances(args, cfg)
	if len(instances) == 0 {
		return cue.Value{}, fmt.Errorf("no CUE instances loaded from %s", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return cue.Value{}, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return cue.Value{}, formatCUEError(err)
	}
	return value, nil
}
