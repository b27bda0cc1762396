package harness

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

//go:embed scenario.cue
var scenarioSchemaSource string

var (
	schemaOnce sync.Once
	schemaCtx  *cue.Context
	schemaDef  cue.Value
	schemaErr  error
)

func scenarioSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		v := schemaCtx.CompileString(scenarioSchemaSource, cue.Filename("scenario.cue"))
		if err := v.Err(); err != nil {
			schemaErr = fmt.Errorf("failed to compile scenario schema: %w", err)
			return
		}
		schemaDef = v.LookupPath(cue.ParsePath("#Scenario"))
		schemaErr = schemaDef.Err()
	})
	return schemaCtx, schemaDef, schemaErr
}

// validateSchema checks a scenario document against the embedded schema.
func validateSchema(path string, data []byte) error {
	ctx, def, err := scenarioSchema()
	if err != nil {
		return err
	}

	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return formatCUEError(path, err)
	}

	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return formatCUEError(path, err)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(path, err)
	}
	return nil
}

// formatCUEError reduces a CUE error list to its first error, keeping the
// line in the scenario file when CUE reports one.
func formatCUEError(path string, err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ScenarioError{Path: path, Message: err.Error()}
	}

	first := errs[0]
	format, args := first.Msg()
	msg := fmt.Sprintf(format, args...)
	if p := first.Path(); len(p) > 0 {
		msg = fmt.Sprintf("%s: %s", strings.Join(p, "."), msg)
	}

	for _, pos := range errors.Positions(first) {
		if pos.IsValid() && pos.Filename() == path {
			return &ScenarioError{Path: path, Line: pos.Line(), Message: msg}
		}
	}
	return &ScenarioError{Path: path, Message: msg}
}
