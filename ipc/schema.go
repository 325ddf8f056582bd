package ipc

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Validator checks inbound payloads against the embedded JSON schemas.
// Message types without a schema pass unchecked.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[string]*jsonschema.Schema)}
	for _, msgType := range []string{TypeHello, TypeGameState, TypeGameEnd} {
		name := "schemas/" + msgType + ".schema.json"
		raw, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", msgType, err)
		}
		s, err := jsonschema.CompileString(name, string(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", msgType, err)
		}
		v.schemas[msgType] = s
	}
	return v, nil
}

func (v *Validator) Validate(env Envelope) error {
	s, ok := v.schemas[env.Type]
	if !ok {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%s: decode: %w", env.Type, err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%s: %w", env.Type, err)
	}
	return nil
}
