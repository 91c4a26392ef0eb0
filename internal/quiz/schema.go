package quiz

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// Entry shapes accepted from the generator. They check presence and types
// only; the key-existence rule for "correct" is applied afterwards.
const (
	preMCQSchema = `{
  "type": "object",
  "required": ["mcq", "options", "correct"],
  "properties": {
    "mcq": {"type": "string"},
    "options": {"type": "object", "additionalProperties": {"type": "string"}},
    "correct": {"type": "string"}
  }
}`

	postMCQSchema = `{
  "type": "object",
  "required": ["type", "question", "options", "correct"],
  "properties": {
    "type": {"const": "mcq"},
    "question": {"type": "string"},
    "options": {"type": "object", "additionalProperties": {"type": "string"}},
    "correct": {"type": "string"}
  }
}`

	postTrueFalseSchema = `{
  "type": "object",
  "required": ["type", "question", "correct"],
  "properties": {
    "type": {"const": "true_false"},
    "question": {"type": "string"},
    "correct": {"type": "boolean"}
  }
}`
)

type schemaSet struct {
	preMCQ        *gojsonschema.Schema
	postMCQ       *gojsonschema.Schema
	postTrueFalse *gojsonschema.Schema
}

var schemas = sync.OnceValue(func() schemaSet {
	return schemaSet{
		preMCQ:        mustSchema(preMCQSchema),
		postMCQ:       mustSchema(postMCQSchema),
		postTrueFalse: mustSchema(postTrueFalseSchema),
	}
})

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compiling quiz schema: %v", err))
	}
	return s
}

// validate returns "" when raw satisfies schema, otherwise a short reason.
func validate(schema *gojsonschema.Schema, raw []byte) string {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Sprintf("unreadable entry: %v", err)
	}
	if result.Valid() {
		return ""
	}
	reasons := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		reasons = append(reasons, e.String())
	}
	return strings.Join(reasons, "; ")
}
