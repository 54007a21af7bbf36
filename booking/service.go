package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/credit"
	"github.com/warp/tour-pricing/ledger"
	"github.com/warp/tour-pricing/refund"
)

// =============================================================================
// SERVICE
// =============================================================================

// Service runs quotes, saves, manual refunds and statements against one
// booking backend.
type Service struct {
	backend   backend.Backend
	allocator *refund.Allocator
	issuer    *credit.Issuer
	logger    *logrus.Entry

	// BalanceDue is passed to every allocation run.
	BalanceDue refund.BalanceDuePolicy

	// Recorder, when set, is told about every saved edit. Standalone
	// backends set it; the remote booking system records its own edits.
	Recorder backend.ReservationRecorder

	// Now stamps transactions the service creates.
	Now func() time.Time
}

func NewService(b backend.Backend, balanceDue refund.BalanceDuePolicy, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if balanceDue == "" {
		balanceDue = refund.BalanceDuePerDraw
	}
	return &Service{
		backend:    b,
		allocator:  refund.NewAllocator(b, b, b, logger),
		issuer:     credit.NewIssuer(b, logger),
		logger:     logger.WithField("component", "booking.service"),
		BalanceDue: balanceDue,
		Now:        time.Now,
	}
}

// Context gathers the pricing context of a reservation.
func (s *Service) Context(ctx context.Context, reservationID string) (*PricingContext, error) {
	return Gather(ctx, s.backend, reservationID)
}

// Quote prices an edit without writing anything.
func (s *Service) Quote(ctx context.Context, reservationID string, edit Edit) (Quote, error) {
	pc, err := s.Context(ctx, reservationID)
	if err != nil {
		return Quote{}, err
	}
	session, err := edit.Apply(pc)
	if err != nil {
		return Quote{}, err
	}
	return Evaluate(pc, session.Input())
}

// RefundOutcome is one allocation run plus the voucher it produced.
type RefundOutcome struct {
	Result  refund.Result    `json:"result"`
	Voucher *backend.Voucher `json:"voucher,omitempty"`

	// VoucherError is set when the draws completed but the voucher could
	// not be issued.
	VoucherError string `json:"voucher_error,omitempty"`
}

// runRefund allocates amount over charges. Store credit draws go through
// credit.LedgerRefunder so no card is touched, and the refunded total is
// then issued as a voucher. A voucher failure is logged, never undone.
func (s *Service) runRefund(ctx context.Context, amount decimal.Decimal, charges []ledger.Entry, opts refund.Options) (RefundOutcome, error) {
	var refunder refund.Refunder = s.backend
	if opts.Method == refund.MethodStoreCredit {
		refunder = credit.LedgerRefunder{}
	}
	alloc := s.allocator.WithRefunder(refunder)
	alloc.Now = s.Now

	result, err := alloc.Allocate(ctx, amount, charges, opts)
	out := RefundOutcome{Result: result}

	if opts.Method == refund.MethodStoreCredit && result.Refunded.IsPositive() {
		v, verr := s.issuer.Issue(ctx, result.Refunded, opts.ReservationID)
		if verr != nil {
			out.VoucherError = verr.Error()
			s.logger.WithError(verr).WithFields(logrus.Fields{
				"reservation_id": opts.ReservationID,
				"amount":         result.Refunded.StringFixed(2),
			}).Warn("refund completed but store credit voucher was not issued")
		} else {
			out.Voucher = &v
		}
	}
	return out, err
}
