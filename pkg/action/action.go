// Copyright 2026 © The Agentloop Authors
// SPDX-License-Identifier: Apache-2.0

// Package action defines the named, schema-described callables an agent can
// select, and the registry that resolves them by name.
package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/jsonschema-go/jsonschema"
)

// Func is the implementation behind an action. Arguments arrive as named
// values already checked against the action's Schema.
type Func func(ctx context.Context, args Args) (any, error)

// Action is a named callable with a parameter schema. Terminal actions end
// the run once executed.
type Action struct {
	Name        string
	Description string
	Parameters  Schema
	Terminal    bool
	Function    Func
}

// Schema is a JSON-Schema style object description of an action's
// parameters. Registration compiles it once; Check validates against the
// compiled form.
type Schema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required,omitempty"`

	resolved *jsonschema.Resolved
}

// StringParam describes a string parameter.
func StringParam(description string) map[string]any {
	p := map[string]any{"type": "string"}
	if description != "" {
		p["description"] = description
	}
	return p
}

// IntegerParam describes an integer parameter.
func IntegerParam(description string) map[string]any {
	p := map[string]any{"type": "integer"}
	if description != "" {
		p["description"] = description
	}
	return p
}

func (s Schema) normalized() Schema {
	if s.Type == "" {
		s.Type = "object"
	}
	props := make(map[string]any, len(s.Properties))
	for k, v := range s.Properties {
		props[k] = v
	}
	s.Properties = props
	s.Required = append([]string(nil), s.Required...)
	return s
}

func (s Schema) validate() error {
	if s.Type != "object" {
		return fmt.Errorf("parameters type must be \"object\", got %q", s.Type)
	}
	for _, key := range s.Required {
		if _, ok := s.Properties[key]; !ok {
			return fmt.Errorf("required parameter %q is not declared in properties", key)
		}
	}
	return nil
}

// compile resolves the schema for validation. Arguments not declared in
// properties are rejected, as they could not be passed by name.
func (s Schema) compile() (*jsonschema.Resolved, error) {
	data, err := json.Marshal(s.normalized())
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}
	var js jsonschema.Schema
	if err := json.Unmarshal(data, &js); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if js.AdditionalProperties == nil {
		js.AdditionalProperties = &jsonschema.Schema{Not: &jsonschema.Schema{}}
	}
	resolved, err := js.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve parameters: %w", err)
	}
	return resolved, nil
}

// Check validates args against the schema: required keys, undeclared keys,
// and every keyword of the property schemas (types, nested items, enum).
// Schemas that did not go through a Registry are compiled on each call.
func (s Schema) Check(args Args) error {
	resolved := s.resolved
	if resolved == nil {
		var err error
		if resolved, err = s.compile(); err != nil {
			return err
		}
	}
	if args == nil {
		args = Args{}
	}
	if err := resolved.Validate(map[string]any(args)); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	}
	return 0, false
}

// Args holds the named arguments of an action invocation.
type Args map[string]any

// ErrMissingArgument is returned by the Args accessors for absent keys.
var ErrMissingArgument = errors.New("missing argument")

// String returns a required string argument.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrMissingArgument, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q must be a string, got %T", key, v)
	}
	return s, nil
}

// OptionalString returns a string argument or def when absent or not a
// string.
func (a Args) OptionalString(key, def string) string {
	if s, ok := a[key].(string); ok {
		return s
	}
	return def
}

// Int returns a required integer argument. JSON numbers are accepted when
// they hold a whole value.
func (a Args) Int(key string) (int, error) {
	v, ok := a[key]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrMissingArgument, key)
	}
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, fmt.Errorf("argument %q must be an integer, got %v", key, v)
	}
	return int(f), nil
}
