package server

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"safechat.app/auth"
	"safechat.app/geo"
	"safechat.app/push"
	"safechat.app/store"
)

var (
	phoneRegex = regexp.MustCompile(`^[+]?[(]?[0-9]{3}[)]?[-\s.]?[0-9]{3}[-\s.]?[0-9]{4,6}$`)
	emailRegex = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)
)

// Router builds the HTTP surface: auth, relatives CRUD, alert history,
// messaging, location endpoints and the websocket upgrade.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"message": "Server is running"})
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/events", s.ServeEvents)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/auth/login", s.handleLogin).Methods("POST")

	priv := api.NewRoute().Subrouter()
	priv.Use(s.tokens.Middleware)

	priv.HandleFunc("/relatives/add", s.handleAddRelative).Methods("POST")
	priv.HandleFunc("/relatives", s.handleListRelatives).Methods("GET")
	priv.HandleFunc("/relatives/alerts", s.handleAlertHistory).Methods("GET")
	priv.HandleFunc("/relatives/alerts/{alertId}/dismiss", s.handleDismissAlert).Methods("PUT")
	priv.HandleFunc("/relatives/location", s.handleManualLocation).Methods("POST")
	priv.HandleFunc("/relatives/toggle-sharing", s.handleToggleSharing).Methods("POST")
	priv.HandleFunc("/relatives/{phoneNumber}", s.handleUpdateRelative).Methods("PUT")
	priv.HandleFunc("/relatives/{phoneNumber}", s.handleDeleteRelative).Methods("DELETE")

	priv.HandleFunc("/messages/conversations", s.handleConversations).Methods("GET")
	priv.HandleFunc("/messages/send", s.handleSendMessage).Methods("POST")
	priv.HandleFunc("/messages/{messageId}/read", s.handleMarkMessageRead).Methods("PUT")
	priv.HandleFunc("/messages/{messageId}", s.handleDeleteMessage).Methods("DELETE")
	priv.HandleFunc("/messages/{userId}", s.handleMessages).Methods("GET")

	priv.HandleFunc("/nearby", s.handleNearby).Methods("GET")

	priv.HandleFunc("/push/key", s.handlePushKey).Methods("GET")
	priv.HandleFunc("/push/subscribe", s.handlePushSubscribe).Methods("POST")
	priv.HandleFunc("/push/subscribe", s.handlePushUnsubscribe).Methods("DELETE")

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

//
// Auth
//

type registerRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "Invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if len(req.Username) < 3 || len(req.Username) > 50 {
		writeError(w, 400, "Username must be between 3 and 50 characters")
		return
	}
	if !emailRegex.MatchString(req.Email) {
		writeError(w, 400, "Please provide a valid email")
		return
	}
	if req.PhoneNumber != "" && !phoneRegex.MatchString(req.PhoneNumber) {
		writeError(w, 400, "Invalid phone number format")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err == auth.ErrWeakPassword {
		writeError(w, 400, "Password must be at least 6 characters")
		return
	}
	if err != nil {
		writeError(w, 500, "Server error")
		return
	}

	now := time.Now()
	user := &store.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(r.Context(), user); err != nil {
		if err == store.ErrDuplicate {
			writeError(w, 409, "Username or email already registered")
			return
		}
		writeError(w, 500, "Server error")
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		writeError(w, 500, "Server error")
		return
	}

	writeJSON(w, 201, map[string]any{"token": token, "user": user})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "Invalid request body")
		return
	}

	user, err := s.store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeError(w, 401, "Invalid email or password")
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, 401, "Invalid email or password")
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		writeError(w, 500, "Server error")
		return
	}

	writeJSON(w, 200, map[string]any{"token": token, "user": user})
}

//
// Relatives
//

type relativeRequest struct {
	PhoneNumber string  `json:"phoneNumber"`
	Name        string  `json:"name"`
	Notes       *string `json:"notes"`
}

func (s *Server) handleAddRelative(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.UserID(r.Context())

	var req relativeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if !phoneRegex.MatchString(req.PhoneNumber) {
		writeError(w, 400, "Invalid phone number format")
		return
	}
	if len(req.Name) < 2 || len(req.Name) > 50 {
		writeError(w, 400, "Name must be between 2 and 50 characters")
		return
	}
	var notes string
	if req.Notes != nil {
		notes = strings.TrimSpace(*req.Notes)
		if len(notes) > 200 {
			writeError(w, 400, "Notes must not exceed 200 characters")
			return
		}
	}

	contact := store.Contact{
		PhoneNumber: req.PhoneNumber,
		Name:        req.Name,
		Notes:       notes,
		AddedAt:     time.Now(),
	}

	if err := s.store.AddContact(r.Context(), owner, contact); err != nil {
		if err == store.ErrDuplicate {
			writeError(w, 409, "Already monitoring this phone number")
			return
		}
		writeError(w, 500, "Server error")
		return
	}

	writeJSON(w, 201, map[string]any{
		"message":  "Relative added successfully",
		"relative": contact,
	})
}

func (s *Server) handleListRelatives(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.UserID(r.Context())

	contacts, err := s.store.ListContacts(r.Context(), owner)
	if err != nil {
		writeError(w, 500, "Server error")
		return
	}
	if contacts == nil {
		contacts = []store.Contact{}
	}

	writeJSON(w, 200, map[string]any{
		"relatives": contacts,
		"count":     len(contacts),
	})
}

func (s *Server) handleUpdateRelative(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.UserID(r.Context())
	phone := mux.Vars(r)["phoneNumber"]

	var req struct {
		Name  *string `json:"name"`
		Notes *string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "Invalid request body")
		return
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len(name) < 2 || len(name) > 50 {
			writeError(w, 400, "Name must be between 2 and 50 characters")
			return
		}
		req.Name = &name
	}
	if req.Notes != nil && len(*req.Notes) > 200 {
		writeError(w, 400, "Notes must not exceed 200 characters")
		return
	}

	contact, err := s.store.UpdateContact(r.Context(), owner, phone, req.Name, req.Notes)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, 404, "Relative not found")
			return
		}
		writeError(w, 500, "Server error")
		return
	}

	writeJSON(w, 200, map[string]any{
		"message":  "Relative updated successfully",
		"relative": contact,
	})
}

func (s *Server) handleDeleteRelative(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.UserID(r.Context())
	phone := mux.Vars(r)["phoneNumber"]

	if err := s.store.DeleteContact(r.Context(), owner, phone); err != nil {
		if err == store.ErrNotFound {
			writeError(w, 404, "Relative not found")
			return
		}
		writeError(w, 500, "Server error")
		return
	}

	writeJSON(w, 200, map[string]string{"message": "Relative removed successfully"})
}

//
// Alerts
//

func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.UserID(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	dismissed := r.URL.Query().Get("dismissed") == "true"
	if limit <= 0 {
		limit = 50
	}

	page, err := s.dispatcher.History(r.Context(), owner, limit, skip, dismissed)
	if err != nil {
		writeError(w, 500, "Server error")
		return
	}
	if page.Alerts == nil {
		page.Alerts = []*store.AlertRecord{}
	}

	writeJSON(w, 200, map[string]any{
		"alerts": page.Alerts,
		"pagination": map[string]any{
			"total":   page.Total,
			"limit":   limit,
			"skip":    skip,
			"hasMore": page.HasMore,
		},
	})
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request) {
	owner, _ := auth.UserID(r.Context())
	alertID := mux.Vars(r)["alertId"]

	if err := s.dispatcher.Dismiss(r.Context(), owner, alertID); err != nil {
		if err == store.ErrNotFound {
			writeError(w, 404, "Alert not found")
			return
		}
		writeError(w, 500, "Server error")
		return
	}

	writeJSON(w, 200, map[string]string{"message": "Alert dismissed"})
}

//
// Location
//

type manualLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

func (s *Server) handleManualLocation(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req manualLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "Invalid request body")
		return
	}
	if !geo.IsValidCoordinate(req.Latitude, req.Longitude) || req.Accuracy < 0 {
		writeError(w, 400, "Invalid coordinates")
		return
	}

	sample := store.LocationSample{
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Accuracy:   req.Accuracy,
		CapturedAt: time.Now(),
	}

	if err := s.store.UpdateLocation(r.Context(), userID, sample); err != nil {
		if err == store.ErrNotFound {
			writeError(w, 404, "User not found")
			return
		}
		writeError(w, 500, "Server error")
		return
	}

	if user, err := s.store.GetUser(r.Context(), userID); err == nil && user.LocationSharing {
		s.index.Insert(userID, req.Latitude, req.Longitude)
	}

	writeJSON(w, 200, map[string]any{
		"message":  "Location updated successfully",
		"location": sample,
	})
}

func (s *Server) handleToggleSharing(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		writeError(w, 400, "Enabled must be boolean")
		return
	}

	if err := s.store.SetLocationSharing(r.Context(), userID, *req.Enabled); err != nil {
		if err == store.ErrNotFound {
			writeError(w, 404, "User not found")
			return
		}
		writeError(w, 500, "Server error")
		return
	}

	if *req.Enabled {
		if user, err := s.store.GetUser(r.Context(), userID); err == nil && user.Location != nil {
			s.index.Insert(userID, user.Location.Latitude, user.Location.Longitude)
		}
	} else {
		s.index.Remove(userID)
		s.evaluator.Forget(userID)
		s.registry.Broadcast(NewEvent(EventLocationSharingDisabled, userOnlinePayload{UserID: userID}))
	}

	status := "disabled"
	if *req.Enabled {
		status = "enabled"
	}
	writeJSON(w, 200, map[string]any{
		"message":                "Location sharing " + status,
		"locationSharingEnabled": *req.Enabled,
	})
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	pos, ok := s.index.Get(userID)
	if !ok {
		writeError(w, 400, "Location sharing is not enabled")
		return
	}

	radius, _ := strconv.ParseFloat(r.URL.Query().Get("radius"), 64)
	if radius <= 0 {
		radius = 1000
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 25
	}

	type nearbyUser struct {
		UserID     string  `json:"userId"`
		DistanceKm float64 `json:"distance"`
		Direction  string  `json:"direction"`
	}

	results := []nearbyUser{}
	for _, p := range s.index.Nearby(pos.Lat, pos.Lon, radius, limit+1) {
		if p.ID == userID {
			continue
		}
		bearing := geo.BearingDegrees(pos.Lat, pos.Lon, p.Lat, p.Lon)
		results = append(results, nearbyUser{
			UserID:     p.ID,
			DistanceKm: geo.DistanceKm(pos.Lat, pos.Lon, p.Lat, p.Lon),
			Direction:  geo.BearingToCompass(bearing),
		})
		if len(results) >= limit {
			break
		}
	}

	writeJSON(w, 200, map[string]any{"nearby": results, "count": len(results)})
}

//
// Messages
//

type sendMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sender, _ := auth.UserID(r.Context())

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "Invalid request body")
		return
	}
	if req.RecipientID == "" || req.Content == "" {
		writeError(w, 400, "Recipient and content are required")
		return
	}

	if _, err := s.store.GetUser(r.Context(), req.RecipientID); err != nil {
		writeError(w, 404, "User not found")
		return
	}

	encrypted, err := s.cipher.Encrypt(req.Content)
	if err != nil {
		writeError(w, 500, "Server error")
		return
	}

	msg := &store.Message{
		ID:               uuid.New().String(),
		Sender:           sender,
		Recipient:        req.RecipientID,
		EncryptedContent: encrypted,
		CreatedAt:        time.Now(),
	}

	if err := s.store.InsertMessage(r.Context(), msg); err != nil {
		writeError(w, 500, "Server error")
		return
	}

	// relay after the message is safely persisted
	s.relay.Relay(sender, req.RecipientID, req.Content)

	writeJSON(w, 201, map[string]any{
		"message": "Message sent successfully",
		"data": map[string]any{
			"id":        msg.ID,
			"sender":    msg.Sender,
			"recipient": msg.Recipient,
			"content":   req.Content,
			"createdAt": msg.CreatedAt,
		},
	})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserID(r.Context())
	peer := mux.Vars(r)["userId"]

	messages, err := s.store.MessagesBetween(r.Context(), me, peer)
	if err != nil {
		writeError(w, 500, "Server error")
		return
	}

	type messageView struct {
		store.Message
		Content string `json:"content"`
	}

	views := []messageView{}
	for _, m := range messages {
		content, err := s.cipher.Decrypt(m.EncryptedContent)
		if err != nil {
			content = "[Encrypted message]"
		}
		views = append(views, messageView{Message: *m, Content: content})
	}

	if err := s.store.MarkRead(r.Context(), me, peer); err != nil {
		s.log.Warn("mark read failed", "error", err)
	}

	writeJSON(w, 200, views)
}

func (s *Server) handleMarkMessageRead(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserID(r.Context())
	messageID := mux.Vars(r)["messageId"]

	switch err := s.store.MarkMessageRead(r.Context(), me, messageID); err {
	case nil:
		writeJSON(w, 200, map[string]string{"message": "Message marked as read"})
	case store.ErrNotFound:
		writeError(w, 404, "Message not found")
	case store.ErrForbidden:
		writeError(w, 403, "Unauthorized")
	default:
		writeError(w, 500, "Server error")
	}
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserID(r.Context())
	messageID := mux.Vars(r)["messageId"]

	switch err := s.store.DeleteMessage(r.Context(), me, messageID); err {
	case nil:
		writeJSON(w, 200, map[string]string{"message": "Message deleted successfully"})
	case store.ErrNotFound:
		writeError(w, 404, "Message not found")
	case store.ErrForbidden:
		writeError(w, 403, "Unauthorized")
	default:
		writeError(w, 500, "Server error")
	}
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	me, _ := auth.UserID(r.Context())

	convos, err := s.store.Conversations(r.Context(), me)
	if err != nil {
		writeError(w, 500, "Server error")
		return
	}
	if convos == nil {
		convos = []store.Conversation{}
	}

	type convoView struct {
		store.Conversation
		LastContent string `json:"lastContent"`
	}

	views := []convoView{}
	for _, c := range convos {
		content := ""
		if c.LastMessage != nil {
			content, err = s.cipher.Decrypt(c.LastMessage.EncryptedContent)
			if err != nil {
				content = "[Encrypted message]"
			}
		}
		views = append(views, convoView{Conversation: c, LastContent: content})
	}

	writeJSON(w, 200, views)
}

//
// Web push
//

func (s *Server) handlePushKey(w http.ResponseWriter, r *http.Request) {
	if s.push == nil || !s.push.Enabled() {
		writeError(w, 404, "Push not configured")
		return
	}
	writeJSON(w, 200, map[string]string{"key": s.push.PublicKey()})
}

func (s *Server) handlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())

	if s.push == nil || !s.push.Enabled() {
		writeError(w, 404, "Push not configured")
		return
	}

	var sub push.Subscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil || sub.Endpoint == "" {
		writeError(w, 400, "Invalid subscription")
		return
	}

	s.push.Subscribe(userID, &sub)
	writeJSON(w, 201, map[string]string{"message": "Subscribed"})
}

func (s *Server) handlePushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if s.push != nil {
		s.push.Unsubscribe(userID)
	}
	writeJSON(w, 200, map[string]string{"message": "Unsubscribed"})
}
