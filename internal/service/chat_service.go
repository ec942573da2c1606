// Package service exposes the chat core over a JSON HTTP boundary.
package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/opopescu/billchat/internal/comparison"
	"github.com/opopescu/billchat/internal/conversation"
	"github.com/opopescu/billchat/internal/llm"
	"github.com/opopescu/billchat/internal/middleware"
	"github.com/opopescu/billchat/internal/storage"
)

// ChatService handles the per-turn UI boundary and the supporting read
// endpoints for bills, comparisons, and the user profile.
type ChatService struct {
	store        storage.Store
	engine       *comparison.Engine
	orchestrator *conversation.Orchestrator
}

// NewChatService creates the HTTP service over the given collaborators.
func NewChatService(store storage.Store, engine *comparison.Engine, orch *conversation.Orchestrator) *ChatService {
	return &ChatService{store: store, engine: engine, orchestrator: orch}
}

// Register installs all routes on the mux.
func (s *ChatService) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/chat", s.handleChat)
	mux.HandleFunc("GET /v1/bills", s.handleGetBills)
	mux.HandleFunc("GET /v1/bills/compare", s.handleCompare)
	mux.HandleFunc("GET /v1/profile", s.handleGetProfile)
	mux.HandleFunc("PUT /v1/profile", s.handlePutProfile)
}

type chatRequest struct {
	UserID    string `json:"user_id"`
	Utterance string `json:"utterance"`
}

type contextSummary struct {
	MessageCount int   `json:"message_count"`
	UpdatedAt    int64 `json:"updated_at"`
}

type chatResponse struct {
	AssistantText  string         `json:"assistant_text"`
	ContextSummary contextSummary `json:"context_summary"`
}

func (s *ChatService) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Utterance == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("utterance is required"))
		return
	}

	userID, err := resolveUserID(r, req.UserID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	reply, err := s.orchestrator.HandleTurn(r.Context(), userID, req.Utterance)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		AssistantText: reply.AssistantText,
		ContextSummary: contextSummary{
			MessageCount: reply.MessageCount,
			UpdatedAt:    reply.UpdatedAt,
		},
	})
}

func (s *ChatService) handleGetBills(w http.ResponseWriter, r *http.Request) {
	userID, err := resolveUserID(r, r.URL.Query().Get("user_id"))
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	bills, err := s.store.GetBills(r.Context(), userID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID, "bills": bills})
}

func (s *ChatService) handleCompare(w http.ResponseWriter, r *http.Request) {
	userID, err := resolveUserID(r, r.URL.Query().Get("user_id"))
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	result, err := s.engine.Compare(r.Context(), userID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *ChatService) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := resolveUserID(r, r.URL.Query().Get("user_id"))
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	profile, err := s.store.LoadProfile(r.Context(), userID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type profileRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	AccountRef  string `json:"account_ref"`
}

func (s *ChatService) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("invalid request body: %w", err))
		return
	}

	userID, err := resolveUserID(r, req.UserID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	profile, err := s.store.LoadProfile(r.Context(), userID)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	if req.DisplayName != "" {
		profile.DisplayName = req.DisplayName
	}
	if req.AccountRef != "" {
		profile.AccountRef = req.AccountRef
	}
	if err := s.store.SaveProfile(r.Context(), profile); err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// resolveUserID reconciles the request's user_id with the authenticated
// identity. With auth enabled the token wins; a mismatching explicit user_id
// is an access violation, never silently honored.
func resolveUserID(r *http.Request, requested string) (string, error) {
	authID := middleware.GetUserID(r.Context())
	switch {
	case authID == "" && requested == "":
		return "", errors.New("user_id is required")
	case authID == "":
		return requested, nil
	case requested != "" && requested != authID:
		return "", fmt.Errorf("%w: token is for %q, request names %q", storage.ErrAccessDenied, authID, requested)
	default:
		return authID, nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

// writeTaxonomyError maps core errors to HTTP statuses. Every error surfaces
// with enough detail for the UI to render a message; nothing is swallowed.
func writeTaxonomyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access_denied", err)
	case errors.Is(err, storage.ErrUnknownUser):
		writeError(w, http.StatusNotFound, "unknown_user", err)
	case errors.Is(err, conversation.ErrTurnInFlight):
		writeError(w, http.StatusTooManyRequests, "turn_in_flight", err)
	case errors.Is(err, llm.ErrCompletion):
		writeError(w, http.StatusBadGateway, "completion_failed", err)
	case errors.Is(err, storage.ErrPersistence):
		writeError(w, http.StatusInternalServerError, "persistence_failed", err)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", err)
	}
}
