package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var (
	schemaOnce sync.Once
	schemaErr  error
	schemas    map[string]*jsonschema.Schema
)

var schemaFiles = map[string]string{
	TypeCmd:   "schemas/cmd.schema.json",
	TypeCycle: "schemas/cycle.schema.json",
}

func loadSchemas() {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	out := make(map[string]*jsonschema.Schema, len(schemaFiles))
	for typ, name := range schemaFiles {
		b, err := schemaFS.ReadFile(name)
		if err != nil {
			schemaErr = err
			return
		}
		url := "mem://" + name
		if err := c.AddResource(url, bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("%s: %w", name, err)
			return
		}
		s, err := c.Compile(url)
		if err != nil {
			schemaErr = fmt.Errorf("%s: %w", name, err)
			return
		}
		out[typ] = s
	}
	schemas = out
}

// Validate checks a raw message against the schema registered for its type.
// Types without a schema pass.
func Validate(msgType string, raw []byte) error {
	schemaOnce.Do(loadSchemas)
	if schemaErr != nil {
		return schemaErr
	}
	s := schemas[msgType]
	if s == nil {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
