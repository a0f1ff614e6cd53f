package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	secret := paseto.NewV4AsymmetricSecretKey()
	cfg := DefaultConfig()
	cfg.PasetoV4SecretKeyHex = secret.ExportHex()

	mgr, err := NewPasetoV4PublicManager(cfg)
	if err != nil {
		t.Fatalf("NewPasetoV4PublicManager: %v", err)
	}
	return NewService(cfg, mgr)
}

func TestIssueVisitor_VerifyRoundTrip(t *testing.T) {
	svc := newTestService(t)
	now := time.Now().UTC()

	issued, err := svc.IssueVisitor(now, "  <Maria> Souza ")
	if err != nil {
		t.Fatalf("IssueVisitor: %v", err)
	}
	if !strings.HasPrefix(issued.UserID, "visitor_") {
		t.Fatalf("unexpected user id: %q", issued.UserID)
	}
	if issued.DisplayName != "Maria Souza" {
		t.Fatalf("display name not sanitized: %q", issued.DisplayName)
	}

	claims, err := svc.ValidateAccessToken(issued.AccessToken, now.Add(time.Second))
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.UserID != issued.UserID || claims.Role != RoleVisitor || claims.DisplayName != "Maria Souza" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestIssueVisitor_DefaultName(t *testing.T) {
	svc := newTestService(t)

	issued, err := svc.IssueVisitor(time.Now().UTC(), "   ")
	if err != nil {
		t.Fatalf("IssueVisitor: %v", err)
	}
	if issued.DisplayName != "Visitante" {
		t.Fatalf("expected default display name, got %q", issued.DisplayName)
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	svc := newTestService(t)
	now := time.Now().UTC()

	issued, err := svc.IssueVisitor(now, "Ana")
	if err != nil {
		t.Fatalf("IssueVisitor: %v", err)
	}
	if _, err := svc.ValidateAccessToken(issued.AccessToken, now.Add(48*time.Hour)); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestValidateAccessToken_ForeignKey(t *testing.T) {
	a := newTestService(t)
	b := newTestService(t)
	now := time.Now().UTC()

	issued, err := a.IssueVisitor(now, "Ana")
	if err != nil {
		t.Fatalf("IssueVisitor: %v", err)
	}
	if _, err := b.ValidateAccessToken(issued.AccessToken, now); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	svc := newTestService(t)
	now := time.Now().UTC()

	visitor, err := svc.IssueVisitor(now, "Ana")
	if err != nil {
		t.Fatalf("IssueVisitor: %v", err)
	}
	if _, err := svc.RequireAdmin(visitor.AccessToken, now); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for visitor token, got %v", err)
	}

	admin, err := svc.IssueAdmin(now, "")
	if err != nil {
		t.Fatalf("IssueAdmin: %v", err)
	}
	claims, err := svc.RequireAdmin(admin.AccessToken, now)
	if err != nil {
		t.Fatalf("RequireAdmin: %v", err)
	}
	if !claims.IsAdmin() || claims.DisplayName != "Corretor" {
		t.Fatalf("unexpected admin claims: %+v", claims)
	}
}
