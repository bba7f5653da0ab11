package tracker

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"
)

// Event is the tool-execution payload delivered by the hook dispatcher
// on stdin. ToolName and ExitCode are required; the rest defaults to
// empty. Payloads that don't match the schema are rejected rather than
// duck-typed.
type Event struct {
	ToolName  string         `json:"tool_name"`
	ExitCode  int            `json:"exit_code"`
	Stderr    string         `json:"stderr"`
	Stdout    string         `json:"stdout"`
	ToolInput map[string]any `json:"tool_input"`
}

// IsFailure reports whether the event should be recorded: a nonzero
// exit code or any stderr output.
func (e *Event) IsFailure() bool {
	return e.ExitCode != 0 || e.Stderr != ""
}

// Command returns the command string from the tool input, if present.
func (e *Event) Command() (string, bool) {
	v, ok := e.ToolInput["command"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

const eventSchemaJSON = `{
	"type": "object",
	"required": ["tool_name", "exit_code"],
	"properties": {
		"tool_name": {"type": "string", "minLength": 1},
		"exit_code": {"type": "integer"},
		"stderr": {"type": "string"},
		"stdout": {"type": "string"},
		"tool_input": {"type": "object"}
	}
}`

var eventSchema = mustCompileEventSchema()

func mustCompileEventSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(eventSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("compiling event schema: %v", err))
	}
	return schema
}

// ParseEvent validates data against the event schema and decodes it.
func ParseEvent(data []byte) (*Event, error) {
	result := eventSchema.ValidateJSON(data)
	if !result.IsValid() {
		return nil, fmt.Errorf("event schema validation failed: %v", result.Errors)
	}

	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return &e, nil
}
