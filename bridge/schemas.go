package bridge

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// emptyParams accepts an absent, null, or empty-object params field.
const emptyParams = `{
	"type": "object",
	"additionalProperties": false
}`

// commandSchemas maps each method to the JSON schema its params must
// satisfy. Methods absent from this table are unknown.
var commandSchemas = map[string]string{
	"startStudySession": `{
		"type": "object",
		"required": ["mode"],
		"properties": {
			"mode": {"type": "string", "enum": ["standard", "voice", "quiz"]}
		},
		"additionalProperties": false
	}`,
	"submitCardResponse": `{
		"type": "object",
		"required": ["confidence"],
		"properties": {
			"confidence": {"type": "integer", "minimum": 1, "maximum": 5},
			"voiceTranscript": {"type": "string"},
			"voiceConfidence": {"type": "number", "minimum": 0, "maximum": 1}
		},
		"additionalProperties": false
	}`,
	"endStudySession":       emptyParams,
	"getSessionState":       emptyParams,
	"startVoiceRecognition": emptyParams,
	"stopVoiceRecognition":  emptyParams,
	"getRecognitionState":   emptyParams,
	"isVoiceAvailable":      emptyParams,
	"setRecognitionLanguage": `{
		"type": "object",
		"required": ["language"],
		"properties": {
			"language": {"type": "string", "minLength": 2, "maxLength": 35}
		},
		"additionalProperties": false
	}`,
	"setRecognitionTimeout": `{
		"type": "object",
		"required": ["timeoutMs"],
		"properties": {
			"timeoutMs": {"type": "integer", "minimum": 1000, "maximum": 120000}
		},
		"additionalProperties": false
	}`,
	"listStatistics": `{
		"type": "object",
		"properties": {
			"mode": {"type": "string", "enum": ["standard", "voice", "quiz"]},
			"offset": {"type": "integer", "minimum": 0},
			"limit": {"type": "integer", "minimum": 0}
		},
		"additionalProperties": false
	}`,
	"getStatistics": `{
		"type": "object",
		"required": ["sessionId"],
		"properties": {
			"sessionId": {"type": "string", "minLength": 1}
		},
		"additionalProperties": false
	}`,
}

// schemaSet compiles command schemas on first use and caches them.
type schemaSet struct {
	mu       sync.Mutex
	compiled map[string]*gojsonschema.Schema
}

func newSchemaSet() *schemaSet {
	return &schemaSet{compiled: make(map[string]*gojsonschema.Schema)}
}

// validate checks params against the schema for method. Unknown methods
// and schema violations surface as validation-class errors.
func (s *schemaSet) validate(method string, params []byte) error {
	src, ok := commandSchemas[method]
	if !ok {
		return fmt.Errorf("%w: %s", errUnknownMethod, method)
	}

	schema, err := s.get(method, src)
	if err != nil {
		return fmt.Errorf("compiling schema for %s: %w", method, err)
	}

	if len(params) == 0 || string(params) == "null" {
		params = []byte("{}")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(params))
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformedParams, err)
	}
	if !result.Valid() {
		details := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			details[i] = desc.String()
		}
		return fmt.Errorf("%w: %s: %v", errInvalidParams, method, details)
	}
	return nil
}

func (s *schemaSet) get(method, src string) (*gojsonschema.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if schema, ok := s.compiled[method]; ok {
		return schema, nil
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		return nil, err
	}
	s.compiled[method] = schema
	return schema, nil
}
