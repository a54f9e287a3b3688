package server

import (
	"context"
	"log/slog"

	"safechat.app/spatial"
	"safechat.app/store"
)

// RegistryResolver resolves contact phone numbers against registered
// users who have location sharing enabled. The live spatial index wins
// over the persisted last-known location.
type RegistryResolver struct {
	store store.Store
	index *spatial.Index
	log   *slog.Logger
}

// NewRegistryResolver creates a resolver backed by the user store and
// the live location index.
func NewRegistryResolver(st store.Store, index *spatial.Index) *RegistryResolver {
	return &RegistryResolver{
		store: st,
		index: index,
		log:   slog.With("component", "resolver"),
	}
}

func (r *RegistryResolver) LocationOf(ctx context.Context, phoneNumber string) (store.LocationSample, bool) {
	user, err := r.store.GetUserByPhone(ctx, phoneNumber)
	if err != nil {
		if err != store.ErrNotFound {
			r.log.Warn("phone lookup failed", "error", err)
		}
		return store.LocationSample{}, false
	}
	if !user.LocationSharing {
		return store.LocationSample{}, false
	}

	if pos, ok := r.index.Get(user.ID); ok {
		return store.LocationSample{
			Latitude:   pos.Lat,
			Longitude:  pos.Lon,
			CapturedAt: pos.UpdatedAt,
		}, true
	}
	if user.Location != nil {
		return *user.Location, true
	}
	return store.LocationSample{}, false
}
