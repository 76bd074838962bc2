// Package normalize turns raw model output into either a validated file map
// or a conversational payload.
//
// Model output is unreliable by construction: different providers wrap JSON
// in markdown fences, echo reasoning tags, pad the payload with prose, nest
// file contents one level deep, or emit literal control characters inside
// string values. The normalizer applies a fixed pipeline of independent
// repair passes and only reports failure when the caller explicitly required
// a file map and none could be recovered.
package normalize

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/atelierhq/atelier/internal/conv"
	"github.com/atelierhq/atelier/internal/logging"
)

//go:embed schema.json
var fileMapSchemaJSON string

// snippetLen bounds the diagnostic excerpt carried by validation errors.
const snippetLen = 240

// Conversation is a prose model response: ordinary chat, or a plan proposal.
type Conversation struct {
	Message string
	IsPlan  bool
}

// Result is the outcome of normalization: exactly one of Files or
// Conversation is set.
type Result struct {
	Files        *FileMap
	Conversation *Conversation
}

// ValidationError reports that raw model output could not be shaped into a
// file map when one was required. It carries a bounded snippet of the
// offending text for diagnostics, never the full payload.
type ValidationError struct {
	Reason  string
	Snippet string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model output validation failed: %s (snippet: %q)", e.Reason, e.Snippet)
}

// Normalize processes raw model output. Prose that is not JSON is a valid
// conversational result, not an error; this function never fails.
func Normalize(raw string) Result {
	if fm, ok := tryFileMap(raw); ok {
		return Result{Files: fm}
	}
	return Result{Conversation: &Conversation{
		Message: raw,
		IsPlan:  conv.LooksLikePlan(raw),
	}}
}

// RequireFileMap processes raw model output for a turn whose mode demanded
// generated files. Unlike Normalize it fails when no valid file map can be
// recovered after all repair passes.
func RequireFileMap(raw string) (*FileMap, error) {
	if fm, ok := tryFileMap(raw); ok {
		return fm, nil
	}
	return nil, &ValidationError{
		Reason:  "no valid file map after repair",
		Snippet: logging.Snippet(raw, snippetLen),
	}
}

// tryFileMap runs the repair pipeline. Each step only runs when the previous
// one did not already yield parseable, schema-valid JSON.
func tryFileMap(raw string) (*FileMap, bool) {
	candidate := stripFences(stripReasoning(raw))

	if fm, ok := parseCandidate(candidate); ok {
		return fm, true
	}

	repaired, err := repairStructural(candidate)
	if err != nil {
		return nil, false
	}
	return parseCandidate(repaired)
}

func parseCandidate(candidate string) (*FileMap, bool) {
	if !json.Valid([]byte(candidate)) {
		return nil, false
	}
	if err := validateFileMapShape(candidate); err != nil {
		log.Debug().Err(err).Msg("parsed JSON is not a file map")
		return nil, false
	}
	fm, err := parseFileMap([]byte(candidate))
	if err != nil {
		log.Debug().Err(err).Msg("file map rejected")
		return nil, false
	}
	return fm, true
}

// validateFileMapShape checks the parsed JSON against the embedded file-map
// schema: an object whose values are strings or {content: string} wrappers.
func validateFileMapShape(candidate string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(fileMapSchemaJSON),
		gojsonschema.NewStringLoader(candidate),
	)
	if err != nil {
		return fmt.Errorf("validate file map schema: %w", err)
	}
	if result.Valid() {
		return nil
	}
	errs := result.Errors()
	if len(errs) == 0 {
		return fmt.Errorf("file map schema validation failed")
	}
	return fmt.Errorf("file map schema validation failed: %s", errs[0].String())
}
