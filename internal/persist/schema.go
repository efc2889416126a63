package persist

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed snapshot.schema.json
var snapshotSchemaJSON []byte

const snapshotSchemaURL = "timeblock://snapshot.schema.json"

var (
	schemaOnce     sync.Once
	snapshotSchema *jsonschema.Schema
	schemaErr      error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7
		if err := compiler.AddResource(snapshotSchemaURL, bytes.NewReader(snapshotSchemaJSON)); err != nil {
			schemaErr = fmt.Errorf("load snapshot schema: %w", err)
			return
		}
		snapshotSchema, schemaErr = compiler.Compile(snapshotSchemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile snapshot schema: %w", schemaErr)
		}
	})
	return snapshotSchema, schemaErr
}

// SchemaError is one schema violation in a snapshot document.
type SchemaError struct {
	Path    string // e.g. "tasks[2].start"
	Message string
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// checkSchema validates raw snapshot JSON against the embedded schema.
func checkSchema(data []byte) error {
	schema, err := compiledSchema()
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		var errs []error
		collectSchemaErrors(&errs, ve)
		return errors.Join(errs...)
	}
	return nil
}

func collectSchemaErrors(errs *[]error, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		*errs = append(*errs, &SchemaError{
			Path:    pointerToPath(err.InstanceLocation),
			Message: err.Message,
		})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(errs, cause)
	}
}

// pointerToPath turns "/tasks/2/start" into "tasks[2].start".
func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return ""
	}
	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(strings.ReplaceAll(part, "~1", "/"), "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%d]", idx)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
