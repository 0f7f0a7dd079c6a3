// Package normalize produces the canonical form and content digest of an
// automation workflow definition. Every component that compares two workflow
// versions must go through this package; hash equality is the sole truth
// signal for "unchanged".
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"driftline/internal/errs"
)

// VolatileFields are keys stripped recursively before hashing: identifiers,
// timestamps, version markers and UI-only metadata that change without
// semantic effect.
var VolatileFields = []string{
	"id",
	"versionId",
	"webhookId",
	"instanceId",
	"createdAt",
	"updatedAt",
	"meta",
	"position",
	"staticData",
	"pinData",
	"triggerCount",
	"tags",
	"active",
	"isArchived",
}

var volatileSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(VolatileFields))
	for _, key := range VolatileFields {
		set[key] = struct{}{}
	}
	return set
}()

var ErrEmptyDefinition = errors.New("workflow definition is empty")

// Workflow produces the canonical form of a decoded workflow definition.
// Volatile keys are removed at every depth, null values are dropped so
// structurally-equivalent documents normalize identically, and the result is
// safe to normalize again (the function is idempotent).
func Workflow(definition map[string]any) map[string]any {
	if definition == nil {
		return map[string]any{}
	}

	out, _ := normalizeValue(definition).(map[string]any)
	if out == nil {
		return map[string]any{}
	}
	return out
}

// Hash digests the canonical form. encoding/json marshals map keys in sorted
// order, which gives the deterministic serialization the digest relies on.
func Hash(canonical map[string]any) (string, error) {
	payload, err := json.Marshal(canonical)
	if err != nil {
		return "", errs.Wrap(err, "marshal canonical form")
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// HashDefinition normalizes and hashes in one step.
func HashDefinition(definition map[string]any) (string, error) {
	return Hash(Workflow(definition))
}

// HashRaw decodes raw JSON bytes and returns the content hash.
func HashRaw(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmptyDefinition
	}

	var definition map[string]any
	if err := json.Unmarshal(raw, &definition); err != nil {
		return "", errs.Wrap(err, "decode workflow definition")
	}
	return HashDefinition(definition)
}

// Equal reports whether two definitions have identical canonical content.
func Equal(a, b map[string]any) (bool, error) {
	ha, err := HashDefinition(a)
	if err != nil {
		return false, err
	}
	hb, err := HashDefinition(b)
	if err != nil {
		return false, err
	}
	return ha == hb, nil
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, nested := range typed {
			if _, volatile := volatileSet[key]; volatile {
				continue
			}
			if nested == nil {
				continue
			}
			cleaned := normalizeValue(nested)
			if cleaned == nil {
				continue
			}
			out[key] = cleaned
		}
		return out
	case []any:
		// Only null-valued keys are dropped; array elements keep their slots
		// so node ordering stays significant.
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, normalizeValue(item))
		}
		return out
	default:
		return value
	}
}
