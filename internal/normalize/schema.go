package normalize

import (
	"encoding/json"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

// fieldSchema lists the recoverable fields and the types each may carry.
// Anything else in a parsed object is ignored.
const fieldSchema = `{
  "type": "object",
  "properties": {
    "title":      {"type": ["string", "null"]},
    "director":   {"type": ["string", "null"]},
    "actors":     {"type": ["array", "string", "null"], "items": {"type": ["string", "null"]}},
    "year":       {"type": ["number", "string", "null"]},
    "query":      {"type": ["string", "null"]},
    "confidence": {"type": ["string", "null"]}
  }
}`

// guessSchema is what a complete answer looks like: every field well typed
// and a non-empty title. Objects that fail it are topped up from the text.
const guessSchema = `{
  "allOf": [
    ` + fieldSchema + `,
    {
      "type": "object",
      "required": ["title"],
      "properties": {"title": {"type": "string", "minLength": 1}}
    }
  ]
}`

var allowedFields = []string{"title", "director", "actors", "year", "query", "confidence"}

var (
	schemaOnce     sync.Once
	compiledFields *jsonschema.Schema
	compiledGuess  *jsonschema.Schema
)

func loadSchemas() (fields, guess *jsonschema.Schema) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if schema, err := compiler.Compile([]byte(fieldSchema)); err == nil {
			compiledFields = schema
		}
		if schema, err := compiler.Compile([]byte(guessSchema)); err == nil {
			compiledGuess = schema
		}
	})
	return compiledFields, compiledGuess
}

// objectComplete reports whether a parsed object is a complete answer.
func objectComplete(obj map[string]any) bool {
	_, schema := loadSchemas()
	if schema == nil {
		return true
	}
	return valid(schema, obj)
}

// allowList keeps only allow-listed fields whose values satisfy the schema.
// A field with the wrong type is dropped on its own so one bad value does
// not discard the rest of the object. Actor lists keep their valid names.
func allowList(obj map[string]any) map[string]any {
	kept := make(map[string]any, len(allowedFields))
	schema, _ := loadSchemas()
	for _, field := range allowedFields {
		value, ok := obj[field]
		if !ok {
			continue
		}
		if schema != nil && !valid(schema, map[string]any{field: value}) {
			items, isList := value.([]any)
			if field != "actors" || !isList {
				continue
			}
			value = validActors(schema, items)
		}
		kept[field] = value
	}
	return kept
}

func validActors(schema *jsonschema.Schema, items []any) []any {
	actors := make([]any, 0, len(items))
	for _, item := range items {
		if valid(schema, map[string]any{"actors": []any{item}}) {
			actors = append(actors, item)
		}
	}
	return actors
}

func valid(schema *jsonschema.Schema, value map[string]any) bool {
	encoded, err := json.Marshal(value)
	if err != nil {
		return false
	}
	return schema.ValidateJSON(encoded).IsValid()
}
