package contract

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// compileSchema compiles an operation's argument schema. An empty schema
// accepts any argument blob.
func compileSchema(op string, schema string) (*jsonschema.Schema, error) {
	if schema == "" {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal([]byte(schema), &doc); err != nil {
		return nil, fmt.Errorf("%s: schema: %w", op, err)
	}
	url := "mem://" + op + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("%s: schema: %w", op, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("%s: schema: %w", op, err)
	}
	return sch, nil
}

// validateArgs checks args against sch. Missing args are treated as {}.
func validateArgs(op string, sch *jsonschema.Schema, args []byte) error {
	if sch == nil {
		return nil
	}
	if len(bytes.TrimSpace(args)) == 0 {
		args = []byte("{}")
	}
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return &ValidationError{Op: op, Err: err}
	}
	if err := sch.Validate(v); err != nil {
		return &ValidationError{Op: op, Err: err}
	}
	return nil
}
