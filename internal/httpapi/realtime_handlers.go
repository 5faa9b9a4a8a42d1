package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"waypost.app/internal/auth"
	"waypost.app/internal/messaging"
	"waypost.app/internal/realtime"
)

// handleChatStream is the chat namespace connect: authenticate the
// handshake, register the connection, then stream events until the client
// goes away. Authentication failure terminates the connect with no
// further processing.
func (a *API) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	token := handshakeToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn, err := a.gateway.Connect(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrRevoked),
			errors.Is(err, realtime.ErrNoSubject):
			writeError(w, http.StatusUnauthorized, "invalid token")
		default:
			writeError(w, http.StatusInternalServerError, "authentication error")
		}
		return
	}
	defer a.gateway.Disconnect(conn)

	a.streamEvents(w, conn)
}

// handleNotificationStream joins the notification room. Registration
// needs either a bearer credential or, when dev fallback is enabled, a
// raw user_id parameter.
func (a *API) handleNotificationStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn, err := a.gateway.ConnectNotifications(ctx, handshakeToken(r), r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	defer a.gateway.Disconnect(conn)

	a.streamEvents(w, conn)
}

// streamEvents writes the connection's events as Server-Sent Events.
func (a *API) streamEvents(w http.ResponseWriter, conn *realtime.Conn) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Initial comment establishes the stream before the first event.
	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	for evt := range conn.Events {
		payload, err := json.Marshal(evt.Data)
		if err != nil {
			a.log.Warn("event marshal failed", zap.String("event", evt.Event), zap.Error(err))
			continue
		}
		_, _ = w.Write([]byte("event: " + evt.Event + "\ndata: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

func (a *API) handleChatSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var p realtime.SendMessagePayload
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := a.gateway.SendMessage(r.Context(), claims.PrimarySubject(), p)
	if err != nil {
		a.writeRealtimeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

type typingRequest struct {
	ReceiverID string `json:"receiverId"`
	Active     bool   `json:"active"`
}

func (a *API) handleChatTyping(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req typingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.gateway.Typing(claims.PrimarySubject(), req.ReceiverID, req.Active); err != nil {
		a.writeRealtimeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type readRequest struct {
	SenderID  string `json:"senderId"`
	MessageID string `json:"messageId"`
}

func (a *API) handleChatRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req readRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.gateway.Read(claims.PrimarySubject(), req.SenderID, req.MessageID); err != nil {
		a.writeRealtimeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeRealtimeError maps gateway errors onto application-level error
// payloads. Validation and domain failures are the client's to recover
// from; only unexpected store errors count as server errors.
func (a *API) writeRealtimeError(w http.ResponseWriter, err error) {
	var payloadErr *realtime.PayloadError
	switch {
	case errors.As(err, &payloadErr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": payloadErr})
	case errors.Is(err, realtime.ErrNoIdentity):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, messaging.ErrReceiverNotFound):
		writeError(w, http.StatusNotFound, "receiver not found")
	case errors.Is(err, messaging.ErrSenderSuspended):
		writeError(w, http.StatusForbidden, "account is suspended")
	default:
		a.log.Error("realtime action failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
