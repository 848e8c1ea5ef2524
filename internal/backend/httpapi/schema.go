package httpapi

import (
	"bytes"
	"embed"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

const schemaBase = "https://tada.local/schema/"

// schemas holds the compiled response schemas, keyed by file name.
type schemas struct {
	todo, todos, label, labels *jsonschema.Schema
}

func compileSchemas() (*schemas, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	names := []string{"label.json", "labels.json", "todo.json", "todos.json"}
	for _, name := range names {
		b, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := compiler.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	out := &schemas{}
	for name, dst := range map[string]**jsonschema.Schema{
		"todo.json":   &out.todo,
		"todos.json":  &out.todos,
		"label.json":  &out.label,
		"labels.json": &out.labels,
	} {
		s, err := compiler.Compile(schemaBase + name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		*dst = s
	}
	return out, nil
}

// firstCause digs out the innermost schema violation for a readable message.
func firstCause(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
