package api

import (
	"encoding/json"
	"net/http"

	"github.com/supahealth/supahealth/internal/api/respond"
	"github.com/supahealth/supahealth/internal/auth"
	"github.com/supahealth/supahealth/internal/chat"
	"github.com/supahealth/supahealth/internal/model"
)

// ChatHandler serves the assistant endpoints.
type ChatHandler struct {
	svc *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
}

type chatResponse struct {
	ConversationID string `json:"conversationId"`
	Reply          string `json:"reply"`
}

// Send handles POST /api/v1/chat.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}

	ex, err := h.svc.Send(r.Context(), user.ID, req.ConversationID, req.Message)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, chatResponse{
		ConversationID: ex.Conversation.ID,
		Reply:          ex.Reply.Content,
	})
}

// History handles GET /api/v1/chat/history.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.WriteUnauthorized(w)
		return
	}
	conv, msgs, err := h.svc.History(r.Context(), user.ID, r.URL.Query().Get("conversationId"))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if msgs == nil {
		msgs = []*model.Message{}
	}
	body := map[string]any{"messages": msgs, "totalCount": len(msgs)}
	if conv != nil {
		body["conversationId"] = conv.ID
	}
	respond.WriteJSON(w, http.StatusOK, body)
}
