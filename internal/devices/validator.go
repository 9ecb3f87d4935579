package devices

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "embed"

	"github.com/KevinKickass/PowerInsight/internal/types"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const boardSchemaURL = "board-v1.json"

//go:embed schema/board-v1.json
var boardSchema string

// Validator checks board files against the embedded board schema before they
// are decoded.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(boardSchemaURL, strings.NewReader(boardSchema)); err != nil {
		return nil, fmt.Errorf("load board schema: %w", err)
	}
	schema, err := c.Compile(boardSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile board schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks a YAML board file. Every failure wraps types.ErrConfig and
// names the offending locations.
func (v *Validator) Validate(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: invalid YAML: %v", types.ErrConfig, err)
	}

	// The schema validator only understands JSON values
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: board is not representable as JSON: %v", types.ErrConfig, err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrConfig, err)
	}

	err = v.schema.Validate(inst)
	var verr *jsonschema.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &verr):
		return fmt.Errorf("%w: %s", types.ErrConfig, describe(verr))
	default:
		return fmt.Errorf("%w: %v", types.ErrConfig, err)
	}
}

// describe flattens a validation error tree into its leaf failures.
func describe(verr *jsonschema.ValidationError) string {
	var leaves []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			leaves = append(leaves, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return strings.Join(leaves, "; ")
}
