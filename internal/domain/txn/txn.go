// Package txn defines the unit-of-work abstraction shared by domain services.
package txn

import "context"

// Runner executes fn inside a single atomic transaction. All repository
// operations performed with the context passed to fn join that transaction;
// returning an error rolls everything back.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Nop runs fn without any transaction. Useful in tests.
type Nop struct{}

func (Nop) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
