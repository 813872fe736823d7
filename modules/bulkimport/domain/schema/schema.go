// Package schema validates mapped payloads against the target definition
// before business-rule simulation runs.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
	"github.com/fieldline/importhub/pkg/serrors"
)

var ErrSchemaValidation = serrors.NewError("SCHEMA_VALIDATION_FAILED", "record does not match target schema", "")

var validate = validator.New(validator.WithRequiredStructEnabled())

// TargetSchema describes the target record type of one import run.
// Rules values are validator tag strings ("required", "email", "max=64", ...)
// keyed by field name; nested objects nest the rule maps.
type TargetSchema struct {
	IdentifierField string
	Rules           map[string]any
	// SchemaFree disables validation and mapping: the raw row is the record.
	SchemaFree bool
}

func (s *TargetSchema) Identifier() string {
	if s == nil || s.IdentifierField == "" {
		return "id"
	}
	return s.IdentifierField
}

// Validate checks the payload against the rules. The returned error carries
// the SCHEMA_VALIDATION_FAILED code and names every failing field.
func (s *TargetSchema) Validate(p record.Payload) error {
	if s == nil || s.SchemaFree || len(s.Rules) == 0 {
		return nil
	}

	failures := validate.ValidateMap(map[string]any(p), s.Rules)
	if len(failures) == 0 {
		return nil
	}

	fields := make([]string, 0, len(failures))
	for field, failure := range failures {
		fields = append(fields, describeFailure(field, failure))
	}
	sort.Strings(fields)
	return ErrSchemaValidation.WithMessage("invalid fields: %s", strings.Join(fields, "; "))
}

func describeFailure(field string, failure any) string {
	switch f := failure.(type) {
	case validator.ValidationErrors:
		tags := make([]string, 0, len(f))
		for _, fe := range f {
			tags = append(tags, fe.Tag())
		}
		return fmt.Sprintf("%s (%s)", field, strings.Join(tags, ","))
	case map[string]any:
		// nested rule map failures
		nested := make([]string, 0, len(f))
		for key, inner := range f {
			nested = append(nested, describeFailure(field+"."+key, inner))
		}
		sort.Strings(nested)
		return strings.Join(nested, "; ")
	default:
		return field
	}
}
