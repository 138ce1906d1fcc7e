package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"streamwise/internal/auth"
	"streamwise/models"
	"streamwise/services/sessions"
)

func logoutRequest(t *testing.T, session models.Session) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	ctx := context.WithValue(req.Context(), auth.ContextKeyUserID, session.UserID)
	ctx = context.WithValue(ctx, auth.ContextKeySession, session)
	return req.WithContext(ctx)
}

func TestLogoutReleasesStateOnlyAfterLastSession(t *testing.T) {
	sessionsSvc, err := sessions.NewService(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("failed to init sessions: %v", err)
	}

	var released []string
	handler := NewAuthHandler(nil, sessionsSvc, func(userID string) {
		released = append(released, userID)
	})

	first, err := sessionsSvc.Create("alice", "phone")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	second, err := sessionsSvc.Create("alice", "tablet")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	w := httptest.NewRecorder()
	handler.Logout(w, logoutRequest(t, first))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(released) != 0 {
		t.Errorf("state released while a second session was live: %v", released)
	}

	w = httptest.NewRecorder()
	handler.Logout(w, logoutRequest(t, second))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if len(released) != 1 || released[0] != "alice" {
		t.Errorf("expected release after the last logout, got %v", released)
	}
}
