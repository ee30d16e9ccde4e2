package toolbox

import (
	"bytes"
	"context"
	"encoding/json"
)

var emptyObject = json.RawMessage(`{"type":"object"}`)

// Handler runs a function call. input is the raw JSON arguments object; the
// returned text is sent back to the model as the function return.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool is a function an agent may call.
type Tool struct {
	Name        string
	Description string
	// InputSchema is a JSON Schema object; nil means no arguments.
	InputSchema json.RawMessage
	Handler     Handler
}

// Schema returns InputSchema, or an empty object schema when unset.
func (t Tool) Schema() json.RawMessage {
	if len(t.InputSchema) == 0 {
		return emptyObject
	}
	return t.InputSchema
}

// Param is one property of a function's arguments object.
type Param struct {
	Name        string
	Type        string // string, integer, boolean, array
	Description string
	// Items is the element type of an array.
	Items    string
	Required bool
}

// Object builds an object schema from params. Properties keep their order
// so prompts rendered from the schema are stable.
func Object(params ...Param) json.RawMessage {
	var b bytes.Buffer
	b.WriteString(`{"type":"object","properties":{`)

	required := []string{}
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		name, _ := json.Marshal(p.Name)
		b.Write(name)
		b.WriteByte(':')

		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Items != "" {
			prop["items"] = map[string]string{"type": p.Items}
		}
		body, _ := json.Marshal(prop)
		b.Write(body)

		if p.Required {
			required = append(required, p.Name)
		}
	}

	b.WriteString(`}`)
	if len(required) > 0 {
		req, _ := json.Marshal(required)
		b.WriteString(`,"required":`)
		b.Write(req)
	}
	b.WriteString(`}`)

	return b.Bytes()
}
