package user

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Supported patch operations
const (
	OpAdd     = "add"
	OpReplace = "replace"
	OpRemove  = "remove"
	OpTest    = "test"
)

// PatchOperation is one entry of a JSON-Patch shaped document
type PatchOperation struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// PatchDocument is an ordered list of field edits. A nil document means the
// client sent no document at all.
type PatchDocument []PatchOperation

// patchFields maps a patch path onto the field it edits
var patchFields = map[string]struct {
	name string
	ptr  func(*UpdateUserRequest) *string
}{
	"login":     {"login", func(r *UpdateUserRequest) *string { return &r.Login }},
	"firstname": {"firstName", func(r *UpdateUserRequest) *string { return &r.FirstName }},
	"lastname":  {"lastName", func(r *UpdateUserRequest) *string { return &r.LastName }},
}

// ApplyTo runs the operations in order against req. Operations that cannot
// be applied are reported as field errors; the remaining ones still run.
func (d PatchDocument) ApplyTo(req *UpdateUserRequest) *ValidationError {
	verr := NewValidationError()

	for _, op := range d {
		key := strings.ToLower(strings.Trim(op.Path, "/"))
		field, ok := patchFields[key]
		if !ok {
			verr.Add(op.Path, fmt.Sprintf("the target location specified by path %q was not found", op.Path))
			continue
		}
		target := field.ptr(req)

		switch strings.ToLower(op.Op) {
		case OpAdd, OpReplace:
			value, err := op.stringValue()
			if err != nil {
				verr.Add(field.name, err.Error())
				continue
			}
			*target = value
		case OpRemove:
			*target = ""
		case OpTest:
			value, err := op.stringValue()
			if err != nil {
				verr.Add(field.name, err.Error())
				continue
			}
			if *target != value {
				verr.Add(field.name, fmt.Sprintf("the current value %q is not equal to the test value %q", *target, value))
			}
		default:
			verr.Add(field.name, fmt.Sprintf("unsupported patch operation %q", op.Op))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// stringValue decodes the operation value; JSON null decodes to "".
func (op PatchOperation) stringValue() (string, error) {
	if len(op.Value) == 0 {
		return "", nil
	}
	var s *string
	if err := json.Unmarshal(op.Value, &s); err != nil {
		return "", fmt.Errorf("value for %s must be a string", op.Path)
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}
