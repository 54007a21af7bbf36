package booking

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/warp/tour-pricing/backend"
	"github.com/warp/tour-pricing/cache"
)

// GuideDirectory answers "who is guiding this reservation" through a cache.
// Cache failures degrade to a backend read; they are never returned.
type GuideDirectory struct {
	source backend.Guides
	cache  cache.Cache[[]backend.Guide]
	logger *logrus.Entry
}

func NewGuideDirectory(source backend.Guides, c cache.Cache[[]backend.Guide], logger *logrus.Logger) *GuideDirectory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GuideDirectory{
		source: source,
		cache:  c,
		logger: logger.WithField("component", "booking.guides"),
	}
}

// Guides returns the guides assigned to a reservation.
func (d *GuideDirectory) Guides(ctx context.Context, reservationID string) ([]backend.Guide, error) {
	log := d.logger.WithField("reservation_id", reservationID)

	guides, ok, err := d.cache.Get(ctx, reservationID)
	if err != nil {
		log.WithError(err).Warn("guide cache read failed")
	}
	if ok {
		return guides, nil
	}

	guides, err = d.source.ListReservationGuides(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if guides == nil {
		guides = []backend.Guide{}
	}
	if err := d.cache.Set(ctx, reservationID, guides); err != nil {
		log.WithError(err).Warn("guide cache write failed")
	}
	return guides, nil
}

// Invalidate drops the cached guides of a reservation.
func (d *GuideDirectory) Invalidate(ctx context.Context, reservationID string) {
	if err := d.cache.Remove(ctx, reservationID); err != nil {
		d.logger.WithError(err).WithField("reservation_id", reservationID).Warn("guide cache remove failed")
	}
}
