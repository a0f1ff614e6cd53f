package session

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/supremeimoveistaylor-boop/supremeimoveis-tayloroliveira-sub002/cmd/internal/ids"
)

// maxDisplayNameChars mirrors the chat display-name truncation.
const maxDisplayNameChars = 50

// Issued is the result of issuing a token.
type Issued struct {
	UserID      string
	DisplayName string
	Role        Role
	AccessToken string
	ExpiresAt   time.Time
}

// Service implements identity issuance for visitors and the broker console.
type Service struct {
	cfg    Config
	tokens AccessTokenManager
}

// NewService constructs a Service.
func NewService(cfg Config, tokens AccessTokenManager) *Service {
	return &Service{cfg: cfg, tokens: tokens}
}

// IssueVisitor creates a fresh visitor identity for the chat widget.
// An empty display name becomes "Visitante".
func (s *Service) IssueVisitor(now time.Time, displayName string) (Issued, error) {
	uid, err := ids.Prefixed("visitor", now)
	if err != nil {
		return Issued{}, err
	}
	return s.issue(AccessClaims{
		UserID:      uid,
		DisplayName: normalizeDisplayName(displayName, "Visitante"),
		Role:        RoleVisitor,
	}, s.cfg.VisitorTTL, now)
}

// IssueAdmin issues a console token. Callers must have verified the password.
func (s *Service) IssueAdmin(now time.Time, displayName string) (Issued, error) {
	return s.issue(AccessClaims{
		UserID:      "admin",
		DisplayName: normalizeDisplayName(displayName, "Corretor"),
		Role:        RoleAdmin,
	}, s.cfg.AdminTTL, now)
}

// ValidateAccessToken verifies a token.
func (s *Service) ValidateAccessToken(token string, now time.Time) (AccessClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > 4096 {
		return AccessClaims{}, ErrInvalidToken
	}
	return s.tokens.Verify(token, now)
}

// RequireAdmin validates token and checks the console role.
func (s *Service) RequireAdmin(token string, now time.Time) (AccessClaims, error) {
	claims, err := s.ValidateAccessToken(token, now)
	if err != nil {
		return AccessClaims{}, err
	}
	if !claims.IsAdmin() {
		return AccessClaims{}, ErrForbidden
	}
	return claims, nil
}

func (s *Service) issue(claims AccessClaims, ttl time.Duration, now time.Time) (Issued, error) {
	tok, exp, err := s.tokens.Issue(claims, ttl, now)
	if err != nil {
		return Issued{}, err
	}
	return Issued{
		UserID:      claims.UserID,
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
		AccessToken: tok,
		ExpiresAt:   exp,
	}, nil
}

func normalizeDisplayName(raw, fallback string) string {
	s := strings.TrimSpace(strings.NewReplacer("<", "", ">", "").Replace(raw))
	if s == "" {
		return fallback
	}
	if utf8.RuneCountInString(s) > maxDisplayNameChars {
		s = strings.TrimSpace(string([]rune(s)[:maxDisplayNameChars]))
	}
	return s
}
