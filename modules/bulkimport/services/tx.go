package services

import (
	"context"

	"github.com/fieldline/importhub/pkg/composables"
)

// inTx wraps fn in a database transaction when a pool is attached to the
// context. Without one the repositories are assumed to manage their own
// consistency and fn runs directly.
func inTx(ctx context.Context, fn func(context.Context) error) error {
	if _, err := composables.UsePool(ctx); err != nil {
		return fn(ctx)
	}
	return composables.InTx(ctx, fn)
}
