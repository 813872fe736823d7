package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
)

func TestTargetSchema_Validate(t *testing.T) {
	s := &TargetSchema{
		IdentifierField: "id",
		Rules: map[string]any{
			"id":    "required",
			"email": "omitempty,email",
		},
	}

	require.NoError(t, s.Validate(record.Payload{"id": "A1", "email": "a@b.co"}))
	require.NoError(t, s.Validate(record.Payload{"id": "A1"}))

	err := s.Validate(record.Payload{"email": "not-an-email"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSchemaValidation))
	require.Contains(t, err.Error(), "id")
	require.Contains(t, err.Error(), "email")
}

func TestTargetSchema_SchemaFreeSkipsValidation(t *testing.T) {
	s := &TargetSchema{SchemaFree: true, Rules: map[string]any{"id": "required"}}
	require.NoError(t, s.Validate(record.Payload{}))
}

func TestTargetSchema_NilIsPermissive(t *testing.T) {
	var s *TargetSchema
	require.NoError(t, s.Validate(record.Payload{"anything": 1}))
	require.Equal(t, "id", s.Identifier())
}

func TestTargetSchema_IdentifierDefault(t *testing.T) {
	require.Equal(t, "id", (&TargetSchema{}).Identifier())
	require.Equal(t, "sku", (&TargetSchema{IdentifierField: "sku"}).Identifier())
}
