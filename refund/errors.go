package refund

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/tour-pricing/core"
)

// ErrNoRefundableTransactions is returned when no draw succeeded.
var ErrNoRefundableTransactions = fmt.Errorf("no refundable transactions: %w", core.ErrNotFound)

// PartialRefundError reports an allocation that ran out of charges before
// covering the requested amount.
type PartialRefundError struct {
	Requested decimal.Decimal
	Refunded  decimal.Decimal
	Remaining decimal.Decimal
	Succeeded int
	Failed    int
	Skipped   int
}

func (e *PartialRefundError) Error() string {
	return fmt.Sprintf("partial refund: refunded %s of %s, %s remaining (%d succeeded, %d failed, %d skipped)",
		e.Refunded.StringFixed(2), e.Requested.StringFixed(2), e.Remaining.StringFixed(2),
		e.Succeeded, e.Failed, e.Skipped)
}

func (e *PartialRefundError) Unwrap() error { return core.ErrPartialFailure }
