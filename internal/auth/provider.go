package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"madrasa/internal/apperrors"
	"madrasa/internal/logger"
	"madrasa/internal/school"
)

// Users is the part of the school store the provider reads.
type Users interface {
	GetUser(ctx context.Context, id string) (school.UserProfile, error)
	FindCredentials(ctx context.Context, email string) (school.UserProfile, string, error)
}

// TokenStore keeps issued refresh tokens so they can be revoked.
type TokenStore interface {
	SaveRefreshToken(ctx context.Context, token, userID string, expiresAt time.Time) error
	FindRefreshToken(ctx context.Context, token string) (userID string, expiresAt time.Time, revoked bool, err error)
	RevokeRefreshToken(ctx context.Context, token string) error
}

// Settings configure token issuance.
type Settings struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Session is returned on login and refresh.
type Session struct {
	Tokens  TokenPair          `json:"tokens"`
	Profile school.UserProfile `json:"profile"`
}

// Provider is the local identity provider: bcrypt credentials, JWT sessions.
type Provider struct {
	users    Users
	tokens   TokenStore
	limiter  Limiter
	settings Settings
}

// NewProvider wires a provider. limiter may be nil.
func NewProvider(users Users, tokens TokenStore, limiter Limiter, settings Settings) *Provider {
	return &Provider{users: users, tokens: tokens, limiter: limiter, settings: settings}
}

func authErr(kind error, msg string, cause error) error {
	return &apperrors.Error{Kind: kind, Message: msg, Cause: cause}
}

// Authenticate checks email and password and returns the matching profile.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (school.UserProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !school.ValidEmail(email) {
		return school.UserProfile{}, authErr(apperrors.ErrInvalidEmail, "Invalid email format.", nil)
	}
	if p.limiter != nil {
		ok, err := p.limiter.Allow(ctx, email)
		if err != nil {
			logger.Warn().Err(err).Msg("login limiter unavailable, allowing attempt")
		} else if !ok {
			return school.UserProfile{}, authErr(apperrors.ErrRateLimited, "Too many attempts. Try again later.", nil)
		}
	}

	u, hash, err := p.users.FindCredentials(ctx, email)
	if errors.Is(err, apperrors.ErrNotFound) {
		return school.UserProfile{}, authErr(apperrors.ErrInvalidCredentials, "Invalid email or password.", nil)
	}
	if err != nil {
		return school.UserProfile{}, authErr(apperrors.ErrAuthUnknown, "An unexpected error occurred.", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return school.UserProfile{}, authErr(apperrors.ErrInvalidCredentials, "Invalid email or password.", nil)
	}
	if !u.Role.Valid() {
		return school.UserProfile{}, apperrors.Forbidden("Role not configured. Contact admin.")
	}
	return u, nil
}

// Login authenticates and opens a session.
func (p *Provider) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := p.Authenticate(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	return p.open(ctx, u)
}

// Refresh trades a live refresh token for a new session. The old token is
// revoked.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := Parse(refreshToken, p.settings.SigningKey, p.settings.Issuer)
	if err == nil && claims.Use != UseRefresh {
		err = errors.New("not a refresh token")
	}
	if err != nil {
		return Session{}, authErr(apperrors.ErrUnauthenticated, "invalid refresh token", err)
	}
	userID, expiresAt, revoked, err := p.tokens.FindRefreshToken(ctx, refreshToken)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return Session{}, authErr(apperrors.ErrAuthUnknown, "An unexpected error occurred.", err)
	}
	if err != nil || revoked || time.Now().After(expiresAt) || userID != claims.Subject {
		return Session{}, authErr(apperrors.ErrUnauthenticated, "refresh token is no longer valid", nil)
	}

	u, err := p.CurrentProfile(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if err := p.tokens.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return Session{}, authErr(apperrors.ErrAuthUnknown, "An unexpected error occurred.", err)
	}
	return p.open(ctx, u)
}

// SignOut revokes refreshToken. Unknown tokens are ignored.
func (p *Provider) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return apperrors.Store("Failed to sign out", p.tokens.RevokeRefreshToken(ctx, refreshToken))
}

// CurrentProfile loads the profile of an authenticated identity.
func (p *Provider) CurrentProfile(ctx context.Context, userID string) (school.UserProfile, error) {
	u, err := p.users.GetUser(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return school.UserProfile{}, apperrors.NotFound("Profile not found. Contact admin.")
	}
	if err != nil {
		return school.UserProfile{}, apperrors.Store("Failed to load profile", err)
	}
	return u, nil
}

func (p *Provider) open(ctx context.Context, u school.UserProfile) (Session, error) {
	tokens, err := Issue(u, p.settings.Issuer, p.settings.SigningKey, p.settings.AccessTTL, p.settings.RefreshTTL)
	if err != nil {
		return Session{}, authErr(apperrors.ErrAuthUnknown, "token issue failed", err)
	}
	if err := p.tokens.SaveRefreshToken(ctx, tokens.RefreshToken, u.ID, tokens.RefreshExp); err != nil {
		return Session{}, authErr(apperrors.ErrAuthUnknown, "An unexpected error occurred.", err)
	}
	return Session{Tokens: tokens, Profile: u}, nil
}
