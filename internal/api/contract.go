package api

import (
	"context"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/felixgeelhaar/calsync/internal/errors"
)

//go:embed openapi.yaml
var contractDoc []byte

// Contract is the backend's published API description. Requests are checked
// against it before they leave the process, so malformed input fails as a
// ValidationFailure without a round trip.
type Contract struct {
	doc *openapi3.T
}

// LoadContract parses the embedded backend description.
func LoadContract(ctx context.Context) (*Contract, error) {
	return ParseContract(ctx, contractDoc)
}

// ParseContract parses an OpenAPI document.
func ParseContract(ctx context.Context, data []byte) (*Contract, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load API contract: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid API contract: %w", err)
	}
	return &Contract{doc: doc}, nil
}

// Template returns the path template that matches a concrete path, e.g.
// /events/42 -> /events/{id}.
func (c *Contract) Template(path string) (string, bool) {
	if c.doc.Paths.Value(path) != nil {
		return path, true
	}

	segments := splitPath(path)
	for tmpl := range c.doc.Paths.Map() {
		if matchTemplate(splitPath(tmpl), segments) {
			return tmpl, true
		}
	}
	return "", false
}

// Operation finds the operation for method on a path or path template.
func (c *Contract) Operation(method, path string) (*openapi3.Operation, bool) {
	tmpl, ok := c.Template(path)
	if !ok {
		return nil, false
	}
	item := c.doc.Paths.Value(tmpl)
	if item == nil {
		return nil, false
	}
	op := item.GetOperation(strings.ToUpper(method))
	return op, op != nil
}

// RequiresAuth reports whether the operation declares a security requirement.
func (c *Contract) RequiresAuth(method, path string) bool {
	op, ok := c.Operation(method, path)
	if !ok || op.Security == nil {
		return false
	}
	return len(*op.Security) > 0
}

// ValidateRequest checks that method and path exist in the contract and that
// query values and the JSON body satisfy their schemas.
func (c *Contract) ValidateRequest(_ context.Context, method, path string, query map[string]string, body []byte) error {
	op, ok := c.Operation(method, path)
	if !ok {
		return errors.NewValidationFailure("", fmt.Sprintf("%s %s is not part of the backend API", method, path))
	}

	for _, ref := range op.Parameters {
		p := ref.Value
		if p == nil || p.In != openapi3.ParameterInQuery {
			continue
		}
		v, present := query[p.Name]
		if !present || v == "" {
			if p.Required {
				return errors.NewValidationFailure(p.Name, fmt.Sprintf("%s is required", p.Name))
			}
			continue
		}
		if p.Schema != nil && p.Schema.Value != nil {
			if err := p.Schema.Value.VisitJSON(v); err != nil {
				return schemaFailure(p.Name, err)
			}
		}
	}

	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	rb := op.RequestBody.Value

	if len(body) == 0 {
		if rb.Required {
			return errors.NewValidationFailure("body", "request body is required")
		}
		return nil
	}

	mt := rb.Content.Get("application/json")
	if mt == nil || mt.Schema == nil || mt.Schema.Value == nil {
		return nil
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return errors.NewValidationFailure("body", fmt.Sprintf("request body is not valid JSON: %v", err))
	}
	if err := mt.Schema.Value.VisitJSON(value); err != nil {
		return schemaFailure("", err)
	}
	return nil
}

func schemaFailure(field string, err error) error {
	var se *openapi3.SchemaError
	if stderrors.As(err, &se) {
		if ptr := se.JSONPointer(); len(ptr) > 0 {
			field = strings.Join(ptr, ".")
		}
		msg := se.Reason
		if field != "" {
			msg = field + ": " + msg
		}
		return errors.NewValidationFailure(field, msg)
	}
	return errors.NewValidationFailure(field, err.Error())
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchTemplate(tmpl, segments []string) bool {
	if len(tmpl) != len(segments) {
		return false
	}
	for i, seg := range tmpl {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if seg != segments[i] {
			return false
		}
	}
	return true
}
