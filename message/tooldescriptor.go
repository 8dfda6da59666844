package message

import "fmt"

// Parameter describes one entry in a ToolDescriptor's ordered schema.
// It emits a JSON Schema fragment via Schema().
type Parameter struct {
	Name        string
	Type        string // "string", "number", "integer", "boolean", "array", "object"
	Description string
	Required    bool

	Enum []string // only meaningful for Type == "string"

	Items      *Parameter  // required when Type == "array"
	Properties []Parameter // only meaningful for Type == "object"

	MinItems         *int
	MaxItems         *int
	UniqueItems      bool
	AdditionalProperties *bool
}

// Schema renders this parameter as a JSON Schema fragment. It returns an
// error if an array parameter omits Items — per §6 that is a programming
// error surfaced at schema-construction time, not a runtime validation
// failure.
func (p Parameter) Schema() (map[string]any, error) {
	out := map[string]any{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}

	switch p.Type {
	case "array":
		if p.Items == nil {
			return nil, fmt.Errorf("tool parameter %q: array type requires Items", p.Name)
		}
		items, err := p.Items.Schema()
		if err != nil {
			return nil, fmt.Errorf("tool parameter %q: %w", p.Name, err)
		}
		out["items"] = items
		if p.MinItems != nil {
			out["minItems"] = *p.MinItems
		}
		if p.MaxItems != nil {
			out["maxItems"] = *p.MaxItems
		}
		if p.UniqueItems {
			out["uniqueItems"] = true
		}
	case "object":
		if len(p.Properties) > 0 {
			props := make(map[string]any, len(p.Properties))
			required := make([]string, 0, len(p.Properties))
			for _, child := range p.Properties {
				childSchema, err := child.Schema()
				if err != nil {
					return nil, fmt.Errorf("tool parameter %q: %w", p.Name, err)
				}
				props[child.Name] = childSchema
				if child.Required {
					required = append(required, child.Name)
				}
			}
			out["properties"] = props
			if len(required) > 0 {
				out["required"] = required
			}
		}
		if p.AdditionalProperties != nil {
			out["additionalProperties"] = *p.AdditionalProperties
		}
	}

	return out, nil
}

// ToolDescriptor is the callback contract consumed by the chat pipeline's
// tool-execution loop and provided by callers.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  []Parameter

	// Execute runs the tool with a decoded argument map and an opaque
	// caller-supplied context value. It may return any value; non-string
	// results are JSON-stringified by the pipeline before being recorded
	// in a tool-role message.
	Execute func(args map[string]any, extra any) (any, error)
}

// Schema renders the full JSON Schema object for this tool's parameters,
// in the "function calling" shape: {type: object, properties, required}.
func (t ToolDescriptor) Schema() (map[string]any, error) {
	properties := make(map[string]any, len(t.Parameters))
	required := make([]string, 0, len(t.Parameters))
	for _, p := range t.Parameters {
		schema, err := p.Schema()
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", t.Name, err)
		}
		properties[p.Name] = schema
		if p.Required {
			required = append(required, p.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out, nil
}
