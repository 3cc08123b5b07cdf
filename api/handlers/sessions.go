package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/contextgate/contextgate/api"
	"github.com/contextgate/contextgate/session"
	"github.com/contextgate/contextgate/types"
)

// SessionHandler serves the session inspection and lifecycle endpoints.
// The user id comes from the "user" query parameter and defaults to the
// same tenant the chat endpoint uses for anonymous callers.
type SessionHandler struct {
	sessions *session.Manager
	logger   *zap.Logger
}

func NewSessionHandler(sessions *session.Manager, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		sessions: sessions,
		logger:   logger.With(zap.String("component", "session_handler")),
	}
}

// HandleGet handles GET /v1/sessions/{id}. A session that does not exist
// yet is created empty, matching the lazy-create semantics of the chat
// endpoint.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sessionID, userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.Get(r.Context(), sessionID, userID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, viewOf(sess))
}

// HandleDelete handles DELETE /v1/sessions/{id}.
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID, userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Delete(r.Context(), sessionID, userID); err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, api.DeleteResponse{SessionID: sessionID, Deleted: true})
}

// HandleReset handles POST /v1/sessions/{id}/reset. The history and
// memory zone are cleared and any strategy state tied to the session is
// released.
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	sessionID, userID, ok := h.identity(w, r)
	if !ok {
		return
	}

	sess, err := h.sessions.Reset(r.Context(), sessionID, userID)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, viewOf(sess))
}

func (h *SessionHandler) identity(w http.ResponseWriter, r *http.Request) (sessionID, userID string, ok bool) {
	sessionID = r.PathValue("id")
	if sessionID == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "session id is required"), h.logger)
		return "", "", false
	}
	userID = r.URL.Query().Get("user")
	if userID == "" {
		userID = "default"
	}
	return sessionID, userID, true
}

func viewOf(s *session.Session) api.SessionView {
	return api.SessionView{
		SessionID:       s.SessionID,
		UserID:          s.UserID,
		MessageCount:    len(s.ConversationHistory),
		MemoryZone:      s.MemoryZone,
		TotalTokensUsed: s.TotalTokensUsed,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}
