// Package server implements the SafeChat presence and proximity engine:
// session lifecycle over websockets, an in-memory presence registry,
// proximity evaluation against registered relatives, alert dispatch and
// direct message relay.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"safechat.app/auth"
	"safechat.app/config"
	"safechat.app/crypt"
	"safechat.app/geo"
	"safechat.app/push"
	"safechat.app/spatial"
	"safechat.app/store"
)

// Server owns the shared state of the engine. The presence registry and
// the evaluator's pair state are the only mutable shared structures;
// both are internally synchronized.
type Server struct {
	cfg        *config.Config
	store      store.Store
	registry   *Registry
	evaluator  *Evaluator
	dispatcher *Dispatcher
	relay      *Relay
	index      *spatial.Index
	tokens     *auth.Tokens
	cipher     *crypt.Cipher
	push       *push.Manager
	log        *slog.Logger
}

// New wires up a server from its collaborators.
func New(cfg *config.Config, st store.Store, index *spatial.Index, pm *push.Manager) *Server {
	registry := NewRegistry()

	var resolver ContactResolver = AbsentResolver{}
	if cfg.ResolverMode == config.ResolverRegistry {
		resolver = NewRegistryResolver(st, index)
	}

	return &Server{
		cfg:        cfg,
		store:      st,
		registry:   registry,
		evaluator:  NewEvaluator(cfg.ThresholdKm, resolver),
		dispatcher: NewDispatcher(st, registry, pm, cfg.AlertCooldown),
		relay:      NewRelay(registry),
		index:      index,
		tokens:     auth.NewTokens(cfg.JWTSecret),
		cipher:     crypt.New(cfg.EncryptionKey),
		push:       pm,
		log:        slog.With("component", "server"),
	}
}

// Registry exposes the presence registry, mainly for tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

// openSession transitions a session to OPEN and starts delivering
// broadcasts to it.
func (s *Server) openSession(sess *Session) {
	sess.Open()
	s.registry.Add(sess)
	s.log.Debug("session open", "handle", sess.ID)
}

// closeSession transitions a session to CLOSED, unbinding its user if it
// is still the current binding.
func (s *Server) closeSession(sess *Session) {
	if userID, ok := s.registry.MarkOffline(sess.ID); ok {
		s.log.Debug("user offline", "user", userID, "handle", sess.ID)
	}
	s.registry.Drop(sess.ID)
	sess.Close()
}

// handleEvent processes one inbound frame. Events for a session are
// handled synchronously in its read loop, which gives per-user arrival
// order for location updates.
func (s *Server) handleEvent(ctx context.Context, sess *Session, raw []byte) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		s.log.Debug("unparseable frame", "handle", sess.ID, "error", err)
		return
	}

	switch ev.Type {
	case EventUserOnline:
		var p userOnlinePayload
		if json.Unmarshal(ev.Data, &p) != nil || p.UserID == "" {
			return
		}
		s.registry.MarkOnline(p.UserID, sess.ID)

	case EventUpdateLocation:
		var p updateLocationPayload
		if json.Unmarshal(ev.Data, &p) != nil || p.UserID == "" {
			sess.send(NewEvent(EventLocationError, locationErrorPayload{Message: "Invalid location payload"}))
			return
		}
		s.handleLocationUpdate(ctx, sess, p)

	case EventSendMessage:
		var p sendMessagePayload
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		content := p.Content
		if content == "" && p.EncryptedContent != "" {
			plain, err := s.cipher.Decrypt(p.EncryptedContent)
			if err != nil {
				plain = "[Encrypted message]"
			}
			content = plain
		}
		s.relay.Relay(p.SenderID, p.RecipientID, content)

	case EventTyping, EventStopTyping:
		var p typingPayload
		if json.Unmarshal(ev.Data, &p) != nil {
			return
		}
		s.relay.NotifyTyping(p.SenderID, p.RecipientID, ev.Type == EventTyping)

	case EventInitiateCall:
		var p initiateCallPayload
		if json.Unmarshal(ev.Data, &p) != nil || p.RecipientID == "" {
			return
		}
		s.relay.SignalCall(p.CallerID, p.RecipientID, sess.ID)

	case EventAcceptCall:
		var p acceptCallPayload
		if json.Unmarshal(ev.Data, &p) != nil || p.CallerID == "" {
			return
		}
		s.relay.AcceptCall(p.CallerID, sess.ID)

	case EventStopLocationSharing:
		var p stopSharingPayload
		if json.Unmarshal(ev.Data, &p) != nil || p.UserID == "" {
			return
		}
		s.handleStopSharing(ctx, sess, p.UserID)

	default:
		s.log.Debug("unknown event", "type", ev.Type)
	}
}

func (s *Server) handleLocationUpdate(ctx context.Context, sess *Session, p updateLocationPayload) {
	if !geo.IsValidCoordinate(p.Latitude, p.Longitude) || p.Accuracy < 0 {
		metricLocationRejected.Inc()
		sess.send(NewEvent(EventLocationError, locationErrorPayload{Message: "Invalid coordinates"}))
		return
	}

	sample := store.LocationSample{
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Accuracy:   p.Accuracy,
		CapturedAt: time.Now(),
	}

	user, err := s.store.GetUser(ctx, p.UserID)
	if err == store.ErrNotFound {
		sess.send(NewEvent(EventLocationError, locationErrorPayload{Message: "User not found"}))
		return
	}
	if err == nil {
		err = s.store.UpdateLocation(ctx, p.UserID, sample)
	}
	if err != nil {
		s.log.Warn("location update failed", "user", p.UserID, "error", err)
		sess.send(NewEvent(EventLocationError, locationErrorPayload{Message: "Failed to update location"}))
		return
	}
	metricLocationUpdates.Inc()

	if user.LocationSharing {
		s.index.Insert(p.UserID, p.Latitude, p.Longitude)
	}

	s.registry.Broadcast(NewEvent(EventLocationUpdated, locationUpdatedPayload{
		UserID:    p.UserID,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Accuracy:  p.Accuracy,
		Cell:      geo.Cell(p.Latitude, p.Longitude),
		Timestamp: sample.CapturedAt,
	}))

	contacts, err := s.store.ListContacts(ctx, p.UserID)
	if err != nil {
		s.log.Warn("contact list failed", "user", p.UserID, "error", err)
		contacts = nil
	}

	if len(contacts) > 0 {
		transitions, ambient := s.evaluator.Evaluate(ctx, p.UserID, sample, contacts)

		if err := s.dispatcher.Dispatch(ctx, p.UserID, sample, transitions); err != nil {
			// accepted inconsistency: the transition was observed live
			// but is lost for history
			s.log.Warn("alert dispatch failed", "user", p.UserID, "error", err)
		}

		for _, a := range ambient {
			bearing := geo.BearingDegrees(p.Latitude, p.Longitude,
				a.ContactLocation.Latitude, a.ContactLocation.Longitude)
			sess.send(NewEvent(EventRelativeNearby, relativeNearbyPayload{
				PhoneNumber: a.Contact.PhoneNumber,
				Name:        a.Contact.Name,
				DistanceKm:  a.DistanceKm,
				Direction:   geo.BearingToCompass(bearing),
			}))
		}
	}

	sess.send(NewEvent(EventLocationTracked, locationTrackedPayload{
		Success:   true,
		Message:   "Location updated",
		Timestamp: sample.CapturedAt,
	}))
}

func (s *Server) handleStopSharing(ctx context.Context, sess *Session, userID string) {
	if err := s.store.SetLocationSharing(ctx, userID, false); err != nil {
		sess.send(NewEvent(EventLocationError, locationErrorPayload{Message: "Failed to stop sharing"}))
		return
	}
	s.index.Remove(userID)
	s.evaluator.Forget(userID)

	s.registry.Broadcast(NewEvent(EventLocationSharingDisabled, userOnlinePayload{UserID: userID}))
	sess.send(NewEvent(EventLocationSharingToggled, map[string]bool{"enabled": false}))
}
