// Package credit turns refunds into store credit vouchers.
package credit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/core"
)

// Issuer issues vouchers through the booking backend. It never looks at card
// state and never undoes a refund.
type Issuer struct {
	vouchers backend.Vouchers
	logger   *logrus.Entry
}

func NewIssuer(vouchers backend.Vouchers, logger *logrus.Logger) *Issuer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Issuer{
		vouchers: vouchers,
		logger:   logger.WithField("component", "credit.issuer"),
	}
}

// Issue creates a voucher worth amount for the reservation the credit came
// from.
func (i *Issuer) Issue(ctx context.Context, amount decimal.Decimal, originReservationID string) (backend.Voucher, error) {
	if !amount.IsPositive() {
		return backend.Voucher{}, core.Invalid("amount", "voucher amount must be greater than zero")
	}
	if originReservationID == "" {
		return backend.Voucher{}, core.Invalid("reservation_id", "required")
	}

	v, err := i.vouchers.GenerateVoucher(ctx, backend.VoucherRequest{
		Amount:              amount,
		OriginReservationID: originReservationID,
	})
	if err != nil {
		return backend.Voucher{}, fmt.Errorf("issue store credit: %w", err)
	}

	i.logger.WithFields(logrus.Fields{
		"reservation_id": originReservationID,
		"amount":         amount.StringFixed(2),
	}).Info("store credit issued")

	return v, nil
}

// =============================================================================
// LEDGER REFUNDER
// =============================================================================

// LedgerRefunder is the refund executor for store credit refunds. No money
// goes back to a card, so every draw succeeds immediately with a synthetic
// id; the allocator still records the draw against its charge, which keeps
// refundable amounts honest.
type LedgerRefunder struct{}

func (LedgerRefunder) RequestRefund(_ context.Context, req backend.RefundRequest) (backend.RefundResponse, error) {
	if !req.Amount.IsPositive() {
		return backend.RefundResponse{}, core.Invalid("amount", "refund amount must be greater than zero")
	}
	return backend.RefundResponse{Success: true, ID: "sc_" + uuid.NewString()}, nil
}
