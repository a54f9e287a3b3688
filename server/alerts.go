package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"safechat.app/push"
	"safechat.app/store"
)

// Dispatcher turns proximity transitions into persisted alert records
// and live notifications.
type Dispatcher struct {
	store    store.Store
	registry *Registry
	push     *push.Manager // nil when web push is not configured
	cooldown time.Duration

	mtx      sync.Mutex
	limiters map[string]*rate.Limiter
	log      *slog.Logger
}

// NewDispatcher creates a dispatcher. A cooldown of zero disables
// per-pair rate limiting.
func NewDispatcher(st store.Store, registry *Registry, pm *push.Manager, cooldown time.Duration) *Dispatcher {
	return &Dispatcher{
		store:    st,
		registry: registry,
		push:     pm,
		cooldown: cooldown,
		limiters: make(map[string]*rate.Limiter),
		log:      slog.With("component", "alerts"),
	}
}

// allow checks the per-(owner, contact) notification rate limit.
func (d *Dispatcher) allow(owner, phone string) bool {
	if d.cooldown <= 0 {
		return true
	}
	key := pairKey(owner, phone)

	d.mtx.Lock()
	limiter, ok := d.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(d.cooldown), 1)
		d.limiters[key] = limiter
	}
	d.mtx.Unlock()

	return limiter.Allow()
}

// Dispatch persists one alert record per transition and pushes it to the
// owner's session when online. The record is always written; the
// cooldown only throttles notifications, so an EXITING right after an
// ENTERING still lands in history. Offline owners get a web push if
// they have a subscription; there is no queued socket redelivery. A
// persist failure is returned to the caller, but the evaluator state is
// not rolled back: the transition stays visible live and is simply lost
// for history.
func (d *Dispatcher) Dispatch(ctx context.Context, owner string, userLoc store.LocationSample, transitions []Transition) error {
	for _, t := range transitions {
		record := &store.AlertRecord{
			ID:              uuid.New().String(),
			Owner:           owner,
			ContactName:     t.Contact.Name,
			ContactPhone:    t.Contact.PhoneNumber,
			DistanceKm:      t.DistanceKm,
			UserLocation:    userLoc,
			ContactLocation: t.ContactLocation,
			Classification:  t.Classification,
			CreatedAt:       time.Now(),
		}

		if err := d.store.InsertAlert(ctx, record); err != nil {
			return fmt.Errorf("persist alert: %w", err)
		}
		metricAlertsDispatched.WithLabelValues(t.Classification).Inc()

		if !d.allow(owner, t.Contact.PhoneNumber) {
			metricAlertsSuppressed.Inc()
			continue
		}

		message := formatAlertMessage(t.Contact.Name, t.DistanceKm)
		ev := NewEvent(EventProximityAlert, proximityAlertPayload{
			AlertRecord: *record,
			Message:     message,
		})

		if !d.registry.Push(owner, ev) && d.push != nil {
			go func(userID, body string) {
				if err := d.push.Notify(userID, "Proximity alert", body); err != nil {
					d.log.Warn("web push failed", "user", userID, "error", err)
				}
			}(owner, message)
		}
	}
	return nil
}

// Dismiss marks an alert dismissed. Dismissing an already-dismissed
// alert succeeds without touching dismissedAt.
func (d *Dispatcher) Dismiss(ctx context.Context, owner, alertID string) error {
	record, err := d.store.GetAlert(ctx, owner, alertID)
	if err != nil {
		return err
	}
	if record.Dismissed {
		return nil
	}
	return d.store.DismissAlert(ctx, owner, alertID, time.Now())
}

// History returns one page of the owner's alert log, newest first.
func (d *Dispatcher) History(ctx context.Context, owner string, limit, skip int, dismissed bool) (*store.AlertPage, error) {
	if limit <= 0 {
		limit = 50
	}
	if skip < 0 {
		skip = 0
	}
	return d.store.ListAlerts(ctx, owner, limit, skip, dismissed)
}

func formatAlertMessage(name string, distanceKm float64) string {
	if distanceKm < 0.5 {
		return fmt.Sprintf("⚠️ Alert: %s is nearby (Very close)", name)
	}
	return fmt.Sprintf("⚠️ Alert: %s is nearby (%.2f km)", name, distanceKm)
}
