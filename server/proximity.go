package server

import (
	"context"
	"sync"

	"safechat.app/geo"
	"safechat.app/store"
)

// Classification labels for a (user, contact) proximity transition.
const (
	ClassEntering = "ENTERING"
	ClassExiting  = "EXITING"
	ClassInRange  = "IN_RANGE"
)

// DefaultThresholdKm is the distance below which a contact counts as
// nearby.
const DefaultThresholdKm = 1.0

// ContactResolver resolves a contact's phone number to a last-known
// location. Phone-to-identity resolution is not part of the core; how a
// phone number maps to a live user is the resolver's business.
type ContactResolver interface {
	LocationOf(ctx context.Context, phoneNumber string) (store.LocationSample, bool)
}

// AbsentResolver never resolves anything. It is the default: contacts
// are stored and managed, but proximity checks stay inert until a real
// resolver is configured.
type AbsentResolver struct{}

func (AbsentResolver) LocationOf(context.Context, string) (store.LocationSample, bool) {
	return store.LocationSample{}, false
}

// Transition is a computed proximity event for one contact.
type Transition struct {
	Contact         store.Contact
	DistanceKm      float64
	Classification  string
	ContactLocation store.LocationSample
}

type pairState struct {
	distanceKm float64
	within     bool
}

// Evaluator computes proximity transitions for location updates.
// It owns the per-pair debounce state; everything else is passed in per
// call.
type Evaluator struct {
	mtx         sync.Mutex
	thresholdKm float64
	resolver    ContactResolver
	state       map[string]pairState // userID + "\x00" + phone
}

// NewEvaluator creates an evaluator. A threshold <= 0 falls back to the
// default.
func NewEvaluator(thresholdKm float64, resolver ContactResolver) *Evaluator {
	if thresholdKm <= 0 {
		thresholdKm = DefaultThresholdKm
	}
	if resolver == nil {
		resolver = AbsentResolver{}
	}
	return &Evaluator{
		thresholdKm: thresholdKm,
		resolver:    resolver,
		state:       make(map[string]pairState),
	}
}

func pairKey(userID, phone string) string {
	return userID + "\x00" + phone
}

// Evaluate computes distances from the user's new location to each
// resolvable contact and classifies the transitions. It returns the
// history-worthy transitions (ENTERING/EXITING) and the ambient in-range
// readings separately; only the former become alert records. Results
// keep the input contact order. The debounce state is updated
// unconditionally so steady readings stay quiet.
func (e *Evaluator) Evaluate(ctx context.Context, userID string, loc store.LocationSample, contacts []store.Contact) (transitions, ambient []Transition) {
	if !geo.IsValidCoordinate(loc.Latitude, loc.Longitude) {
		return nil, nil
	}

	e.mtx.Lock()
	defer e.mtx.Unlock()

	for _, contact := range contacts {
		contactLoc, ok := e.resolver.LocationOf(ctx, contact.PhoneNumber)
		if !ok || !geo.IsValidCoordinate(contactLoc.Latitude, contactLoc.Longitude) {
			continue
		}

		distance := geo.DistanceKm(loc.Latitude, loc.Longitude,
			contactLoc.Latitude, contactLoc.Longitude)
		within := distance <= e.thresholdKm

		key := pairKey(userID, contact.PhoneNumber)
		prev, known := e.state[key]
		e.state[key] = pairState{distanceKm: distance, within: within}

		t := Transition{
			Contact:         contact,
			DistanceKm:      distance,
			ContactLocation: contactLoc,
		}

		switch {
		case within && (!known || !prev.within):
			t.Classification = ClassEntering
			transitions = append(transitions, t)
		case !within && known && prev.within:
			t.Classification = ClassExiting
			transitions = append(transitions, t)
		case within:
			// steady-state inside: live signal only, no record
			t.Classification = ClassInRange
			ambient = append(ambient, t)
		}
		// steady-state outside produces nothing
	}

	return transitions, ambient
}

// Forget drops all debounce state for a user, e.g. after they disable
// location sharing. The next reading within threshold counts as ENTERING
// again.
func (e *Evaluator) Forget(userID string) {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	prefix := userID + "\x00"
	for key := range e.state {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(e.state, key)
		}
	}
}
