/*
validation.go - Pluggable validation strategy for the two-pass flow

PURPOSE:
  Some transaction types require an out-of-process rules-validation round
  trip between materializing candidate changes and applying them. The
  strategy is an explicit parameter of the processor - never a hidden
  environment check - so tests and batch tooling pass PassThrough while
  the service wires a real client.

CONTRACT:
  Validate sees the transaction and the materialized mutations. Returning
  an error aborts the transaction before anything is persisted; wrap or
  return enrollment.ErrValidationRejected so callers can classify it.
  Retries of the round trip are the caller's concern (message
  redelivery), not the processor's.
*/
package account

import (
	"context"

	"github.com/zeus-health/account-processor/enrollment"
)

// ValidationStrategy decides whether materialized candidate changes may
// be applied.
type ValidationStrategy interface {
	Validate(ctx context.Context, txn *enrollment.Transaction, muts *enrollment.Mutations) error
}

// PassThrough accepts every transaction. Default for tests and for
// deployments without an external rules service.
type PassThrough struct{}

func (PassThrough) Validate(context.Context, *enrollment.Transaction, *enrollment.Mutations) error {
	return nil
}

// ValidationFunc adapts a function to the strategy interface.
type ValidationFunc func(ctx context.Context, txn *enrollment.Transaction, muts *enrollment.Mutations) error

func (f ValidationFunc) Validate(ctx context.Context, txn *enrollment.Transaction, muts *enrollment.Mutations) error {
	return f(ctx, txn, muts)
}
