package normalize

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"driftline/internal/errs"
)

//go:embed workflow_schema.json
var workflowSchemaJSON []byte

var (
	workflowSchema     *jsonschema.Schema
	workflowSchemaErr  error
	workflowSchemaOnce sync.Once
)

func compiledSchema() (*jsonschema.Schema, error) {
	workflowSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(workflowSchemaJSON))
		if err != nil {
			workflowSchemaErr = errs.Wrap(err, "decode embedded workflow schema")
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("workflow.schema.json", doc); err != nil {
			workflowSchemaErr = errs.Wrap(err, "register workflow schema")
			return
		}

		workflowSchema, workflowSchemaErr = compiler.Compile("workflow.schema.json")
	})
	return workflowSchema, workflowSchemaErr
}

// ValidateRaw checks raw JSON bytes against the workflow definition schema.
// A validation failure means the file cannot be ingested, not that the sync
// run as a whole should abort.
func ValidateRaw(raw []byte) error {
	if len(raw) == 0 {
		return ErrEmptyDefinition
	}

	schema, err := compiledSchema()
	if err != nil {
		return err
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return errs.Wrap(err, "decode workflow definition")
	}

	if err := schema.Validate(value); err != nil {
		return errs.Wrap(err, "validate workflow definition")
	}
	return nil
}
