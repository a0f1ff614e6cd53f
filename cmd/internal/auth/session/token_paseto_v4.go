package session

import (
	"time"

	paseto "aidanwoods.dev/go-paseto"
)

// Role separates chat visitors from the broker console.
type Role string

const (
	RoleVisitor Role = "visitor"
	RoleAdmin   Role = "admin"
)

// AccessClaims is the identity envelope propagated across HTTP and the realtime channel.
type AccessClaims struct {
	UserID      string
	DisplayName string
	Role        Role
	ExpiresAt   time.Time
	IssuedAt    time.Time
	Issuer      string
}

// IsAdmin reports whether the claims carry the console role.
func (c AccessClaims) IsAdmin() bool { return c.Role == RoleAdmin }

// AccessTokenManager issues and verifies access tokens.
type AccessTokenManager interface {
	Issue(claims AccessClaims, ttl time.Duration, now time.Time) (token string, exp time.Time, err error)
	Verify(token string, now time.Time) (AccessClaims, error)
	PublicKeyHex() string
}

type pasetoV4PublicManager struct {
	issuer    string
	clockSkew time.Duration

	secret paseto.V4AsymmetricSecretKey
	public paseto.V4AsymmetricPublicKey
}

// NewPasetoV4PublicManager builds an AccessTokenManager based on PASETO v4.public.
//
// With EphemeralKey set and no configured key, a fresh keypair is generated.
func NewPasetoV4PublicManager(cfg Config) (AccessTokenManager, error) {
	var secret paseto.V4AsymmetricSecretKey
	switch {
	case cfg.PasetoV4SecretKeyHex != "":
		k, err := paseto.NewV4AsymmetricSecretKeyFromHex(cfg.PasetoV4SecretKeyHex)
		if err != nil {
			return nil, ErrConfig
		}
		secret = k
	case cfg.EphemeralKey:
		secret = paseto.NewV4AsymmetricSecretKey()
	default:
		return nil, ErrConfig
	}

	return &pasetoV4PublicManager{
		issuer:    cfg.Issuer,
		clockSkew: cfg.ClockSkew,
		secret:    secret,
		public:    secret.Public(),
	}, nil
}

func (m *pasetoV4PublicManager) PublicKeyHex() string {
	return m.public.ExportHex()
}

func (m *pasetoV4PublicManager) Issue(claims AccessClaims, ttl time.Duration, now time.Time) (string, time.Time, error) {
	exp := now.Add(ttl)

	tok := paseto.NewToken()
	tok.SetIssuer(m.issuer)
	tok.SetIssuedAt(now)
	tok.SetNotBefore(now)
	tok.SetExpiration(exp)
	tok.SetSubject(claims.UserID)

	if err := tok.Set("name", claims.DisplayName); err != nil {
		return "", time.Time{}, err
	}
	if err := tok.Set("role", string(claims.Role)); err != nil {
		return "", time.Time{}, err
	}

	return tok.V4Sign(m.secret, nil), exp, nil
}

func (m *pasetoV4PublicManager) Verify(token string, now time.Time) (AccessClaims, error) {
	// Validate slightly in the future so a peer's clock drift does not fail "nbf".
	validNow := now.Add(m.clockSkew)

	p := paseto.NewParser()
	p.AddRule(paseto.IssuedBy(m.issuer))
	p.AddRule(paseto.NotExpired())
	p.AddRule(paseto.ValidAt(validNow))

	parsed, err := p.ParseV4Public(m.public, token, nil)
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}

	sub, err := parsed.GetSubject()
	if err != nil || sub == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	role, err := parsed.GetString("role")
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}
	switch Role(role) {
	case RoleVisitor, RoleAdmin:
	default:
		return AccessClaims{}, ErrInvalidToken
	}
	name, _ := parsed.GetString("name")

	iss, _ := parsed.GetIssuer()
	exp, _ := parsed.GetExpiration()
	iat, _ := parsed.GetIssuedAt()

	return AccessClaims{
		UserID:      sub,
		DisplayName: name,
		Role:        Role(role),
		ExpiresAt:   exp,
		IssuedAt:    iat,
		Issuer:      iss,
	}, nil
}
