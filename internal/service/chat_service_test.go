package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/opopescu/billchat/internal/auth"
	"github.com/opopescu/billchat/internal/comparison"
	"github.com/opopescu/billchat/internal/conversation"
	"github.com/opopescu/billchat/internal/llm"
	"github.com/opopescu/billchat/internal/middleware"
	"github.com/opopescu/billchat/internal/models"
	"github.com/opopescu/billchat/internal/storage/sqlite"
)

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

// setupServer builds the full HTTP stack. A non-nil jwtManager enables auth.
func setupServer(t *testing.T, completer llm.Completer, jwtManager *auth.JWTManager) (*httptest.Server, *sqlite.SQLiteStore) {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := comparison.NewEngine(store, 0)
	orch := conversation.New(store, engine, completer)

	mux := http.NewServeMux()
	NewChatService(store, engine, orch).Register(mux)

	var handler http.Handler = mux
	if jwtManager != nil {
		handler = middleware.RequireAuth(jwtManager, handler)
	}

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server, store
}

func seedBill(t *testing.T, store *sqlite.SQLiteStore, userID string, amount float64) {
	t.Helper()

	end := time.Date(2026, time.June, 28, 0, 0, 0, 0, time.UTC)
	err := store.PutBills(context.Background(), userID, []models.Bill{{
		UserID:      userID,
		PeriodStart: end.AddDate(0, -1, 1),
		PeriodEnd:   end,
		Amount:      amount,
	}})
	if err != nil {
		t.Fatalf("seedBill failed: %v", err)
	}
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	resp.Body.Close()
	return body.Code
}

func TestChatTurn(t *testing.T) {
	server, store := setupServer(t, &stubCompleter{reply: "Your June bill was 120.00."}, nil)
	seedBill(t, store, "u1", 120)

	resp := postJSON(t, server.URL+"/v1/chat", "", map[string]string{
		"user_id":   "u1",
		"utterance": "how much was my last bill?",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		AssistantText  string `json:"assistant_text"`
		ContextSummary struct {
			MessageCount int `json:"message_count"`
		} `json:"context_summary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	resp.Body.Close()

	if body.AssistantText == "" {
		t.Error("expected assistant text")
	}
	if body.ContextSummary.MessageCount != 2 {
		t.Errorf("message_count = %d, want 2", body.ContextSummary.MessageCount)
	}
}

func TestChatRequiresUtterance(t *testing.T) {
	server, _ := setupServer(t, &stubCompleter{reply: "ok"}, nil)

	resp := postJSON(t, server.URL+"/v1/chat", "", map[string]string{"user_id": "u1"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if code := decodeError(t, resp); code != "bad_request" {
		t.Errorf("code = %q, want bad_request", code)
	}
}

func TestChatUnknownUser(t *testing.T) {
	server, _ := setupServer(t, &stubCompleter{reply: "ok"}, nil)

	resp, err := http.Get(server.URL + "/v1/bills?user_id=nobody")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if code := decodeError(t, resp); code != "unknown_user" {
		t.Errorf("code = %q, want unknown_user", code)
	}
}

func TestChatCompletionFailure(t *testing.T) {
	failing := &stubCompleter{err: fmt.Errorf("%w: upstream down", llm.ErrCompletion)}
	server, store := setupServer(t, failing, nil)
	seedBill(t, store, "u1", 100)

	resp := postJSON(t, server.URL+"/v1/chat", "", map[string]string{
		"user_id":   "u1",
		"utterance": "what was my bill?",
	})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if code := decodeError(t, resp); code != "completion_failed" {
		t.Errorf("code = %q, want completion_failed", code)
	}

	// The failed turn must not have persisted anything.
	conv, err := store.LoadContext(context.Background(), "u1")
	if err != nil {
		t.Fatalf("LoadContext failed: %v", err)
	}
	if len(conv.Messages) != 0 {
		t.Errorf("persisted messages = %d, want 0 after failed turn", len(conv.Messages))
	}
}

func TestAuthScopesRequests(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	server, store := setupServer(t, &stubCompleter{reply: "ok"}, jwtManager)
	seedBill(t, store, "u1", 100)
	seedBill(t, store, "u2", 999)

	token, err := jwtManager.Generate(&models.UserProfile{UserID: "u1"})
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}

	t.Run("no token is rejected", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/v1/chat", "", map[string]string{
			"user_id": "u1", "utterance": "hi",
		})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
		resp.Body.Close()
	})

	t.Run("token identity wins over request body", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/v1/chat", token, map[string]string{
			"user_id": "u2", "utterance": "show me the bills",
		})
		if resp.StatusCode != http.StatusForbidden {
			t.Fatalf("status = %d, want 403", resp.StatusCode)
		}
		if code := decodeError(t, resp); code != "access_denied" {
			t.Errorf("code = %q, want access_denied", code)
		}
	})

	t.Run("matching identity succeeds", func(t *testing.T) {
		resp := postJSON(t, server.URL+"/v1/chat", token, map[string]string{
			"user_id": "u1", "utterance": "how much was my bill?",
		})
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
		resp.Body.Close()
	})
}

func TestProfileRoundTrip(t *testing.T) {
	server, _ := setupServer(t, &stubCompleter{reply: "ok"}, nil)

	payload, _ := json.Marshal(map[string]string{
		"user_id":      "u1",
		"display_name": "Ana",
		"account_ref":  "RO-7781",
	})
	req, err := http.NewRequest(http.MethodPut, server.URL+"/v1/profile", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request failed: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(server.URL + "/v1/profile?user_id=u1")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	var profile models.UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	resp.Body.Close()

	if profile.DisplayName != "Ana" || profile.AccountRef != "RO-7781" {
		t.Errorf("profile = %+v, want saved fields", profile)
	}
}
