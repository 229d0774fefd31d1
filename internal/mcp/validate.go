package mcp

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ArgumentError lists every schema violation in a tool call.
type ArgumentError struct {
	Tool     string
	Problems []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

func compileSchema(schema map[string]interface{}) (*gojsonschema.Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	return compiled, nil
}

func (s *Server) validateArgs(tool string, args map[string]interface{}) error {
	schema, ok := s.validators[tool]
	if !ok {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	argErr := &ArgumentError{Tool: tool}
	for _, e := range result.Errors() {
		argErr.Problems = append(argErr.Problems, e.String())
	}
	return argErr
}
