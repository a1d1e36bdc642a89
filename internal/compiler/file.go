package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/predicate/internal/ir"
)

// CompileFiles compiles the predicates declared in each file, in file
// order then declaration order. Every file is built on its own, so files
// from different directories or packages can be combined; set-level
// checks (duplicate names, solve targets) are left to ValidateSet.
func CompileFiles(paths ...string) ([]*ir.PredicateSpec, error) {
	ctx := cuecontext.New()

	var specs []*ir.PredicateSpec
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		v := ctx.CompileBytes(src, cue.Filename(path))
		fileSpecs, err := CompileAll(v)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", path, err)
		}
		specs = append(specs, fileSpecs...)
	}
	return specs, nil
}
