package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway statuses returned by the payment provider.
const (
	StatusDone              = "DONE"
	StatusWaitingForDeposit = "WAITING_FOR_DEPOSIT"
	StatusCanceled          = "CANCELED"
	StatusPartialCanceled   = "PARTIAL_CANCELED"
)

// MethodVirtualAccount is the gateway's method name for bank-transfer
// payments that settle asynchronously.
const MethodVirtualAccount = "VIRTUAL_ACCOUNT"

// ConfirmResult is the gateway's answer to a payment confirmation call.
type ConfirmResult struct {
	Status         string
	Method         string
	VirtualAccount *VirtualAccount
}

// Gateway is the external payment provider. Calls are synchronous; timeout
// and retry policy belong to the implementation.
type Gateway interface {
	// Confirm approves the payment identified by paymentKey for the given
	// order and amount.
	Confirm(ctx context.Context, paymentKey, orderID string, amount decimal.Decimal) (*ConfirmResult, error)
	// Cancel voids the payment at the provider. It must succeed before any
	// local cancellation state is written.
	Cancel(ctx context.Context, paymentKey, reason string) error
}
