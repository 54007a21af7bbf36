package refund

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/ledger"
)

// IntentLookup resolves a payment intent to its charges.
type IntentLookup interface {
	GetPaymentIntent(ctx context.Context, id string) (*backend.PaymentIntent, error)
}

// refundTarget is what the processor is asked to refund. Exactly one field
// is set.
type refundTarget struct {
	ChargeID        string
	PaymentIntentID string
}

type intentResult struct {
	chargeID string
	err      error
}

// chargeResolver finds the processor charge id of a ledger charge. Intent
// lookups are cached for the lifetime of the resolver, which is one
// allocation run.
type chargeResolver struct {
	intents IntentLookup
	cache   map[string]intentResult
	logger  *logrus.Entry
}

func newChargeResolver(intents IntentLookup, logger *logrus.Entry) *chargeResolver {
	return &chargeResolver{
		intents: intents,
		cache:   make(map[string]intentResult),
		logger:  logger,
	}
}

// resolve tries, in order: the charge id field, the charge id in metadata,
// the first charge of the payment intent. When the intent lookup fails but
// an intent id is known, the refund goes by intent id. ok is false when
// nothing usable exists.
func (r *chargeResolver) resolve(ctx context.Context, e ledger.Entry) (target refundTarget, ok bool) {
	if e.ChargeID != "" {
		return refundTarget{ChargeID: e.ChargeID}, true
	}
	if id := e.Meta(ledger.MetaChargeID); id != "" {
		return refundTarget{ChargeID: id}, true
	}

	intentID := e.PaymentIntentID
	if intentID == "" {
		intentID = e.Meta(ledger.MetaPaymentIntentID)
	}
	if intentID == "" {
		return refundTarget{}, false
	}

	if r.intents != nil {
		if res := r.lookup(ctx, intentID); res.err == nil && res.chargeID != "" {
			return refundTarget{ChargeID: res.chargeID}, true
		}
	}
	return refundTarget{PaymentIntentID: intentID}, true
}

func (r *chargeResolver) lookup(ctx context.Context, intentID string) intentResult {
	if res, ok := r.cache[intentID]; ok {
		return res
	}

	var res intentResult
	intent, err := r.intents.GetPaymentIntent(ctx, intentID)
	switch {
	case err != nil:
		res.err = err
		r.logger.WithError(err).WithField("payment_intent_id", intentID).Debug("payment intent lookup failed")
	case intent != nil && len(intent.Charges) > 0:
		res.chargeID = intent.Charges[0].ID
	}

	r.cache[intentID] = res
	return res
}
