package sessions

import (
	"errors"
	"testing"
	"time"
)

func setupTestService(t *testing.T) *Service {
	t.Helper()

	svc, err := NewService(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

func TestCreateAndValidate(t *testing.T) {
	svc := setupTestService(t)

	session, err := svc.Create("user-1", "test-agent")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected a non-empty token")
	}

	got, err := svc.Validate(session.Token)
	if err != nil {
		t.Fatalf("failed to validate: %v", err)
	}
	if got.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", got.UserID)
	}
}

func TestValidateUnknownToken(t *testing.T) {
	svc := setupTestService(t)

	if _, err := svc.Validate(""); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.Validate("bogus"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestExpiredSessionRejectedAndRemoved(t *testing.T) {
	svc, err := NewService(t.TempDir(), time.Millisecond)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	session, err := svc.Create("user-1", "")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, err := svc.Validate(session.Token); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
	if svc.Count() != 0 {
		t.Errorf("expected expired session removed, count %d", svc.Count())
	}
}

func TestRevoke(t *testing.T) {
	svc := setupTestService(t)

	session, _ := svc.Create("user-1", "")
	if err := svc.Revoke(session.Token); err != nil {
		t.Fatalf("failed to revoke: %v", err)
	}
	if _, err := svc.Validate(session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after revoke, got %v", err)
	}
	if err := svc.Revoke(session.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on double revoke, got %v", err)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	svc := setupTestService(t)

	svc.Create("alice", "")
	svc.Create("alice", "")
	bob, _ := svc.Create("bob", "")

	if n := svc.RevokeAllForUser("alice"); n != 2 {
		t.Errorf("expected 2 revoked, got %d", n)
	}
	if _, err := svc.Validate(bob.Token); err != nil {
		t.Errorf("bob's session must survive, got %v", err)
	}
}

func TestCountForUser(t *testing.T) {
	svc := setupTestService(t)

	first, _ := svc.Create("alice", "")
	svc.Create("alice", "")
	svc.Create("bob", "")

	if n := svc.CountForUser("alice"); n != 2 {
		t.Errorf("expected 2 sessions for alice, got %d", n)
	}
	if err := svc.Revoke(first.Token); err != nil {
		t.Fatalf("failed to revoke: %v", err)
	}
	if n := svc.CountForUser("alice"); n != 1 {
		t.Errorf("expected 1 session after revoke, got %d", n)
	}
	if n := svc.CountForUser("nobody"); n != 0 {
		t.Errorf("expected 0 sessions for unknown user, got %d", n)
	}
}

func TestSessionsSurviveReload(t *testing.T) {
	dir := t.TempDir()

	svc, err := NewService(dir, time.Hour)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	session, err := svc.Create("user-1", "")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	reloaded, err := NewService(dir, time.Hour)
	if err != nil {
		t.Fatalf("failed to reload service: %v", err)
	}
	if _, err := reloaded.Validate(session.Token); err != nil {
		t.Errorf("expected session to survive reload, got %v", err)
	}
}
