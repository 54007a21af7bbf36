package booking

import (
	"github.com/warp/tour-pricing/core"
)

// ResolveTenant names the tenant that owns transactions created for the
// reservation. The reservation's own tenant wins, then the first tenant
// found on its existing transactions, then the tour's tenant.
func ResolveTenant(pc *PricingContext) (string, error) {
	if pc.Reservation.TenantID != "" {
		return pc.Reservation.TenantID, nil
	}
	for _, tx := range pc.Transactions {
		if tx.TenantID != "" {
			return tx.TenantID, nil
		}
	}
	if pc.Tour.TenantID != "" {
		return pc.Tour.TenantID, nil
	}
	return "", &core.TenantResolutionError{ReservationID: pc.Reservation.ID}
}
