package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/weiawesome/sync-party/internal/audit"
	"github.com/weiawesome/sync-party/internal/domain"
	"github.com/weiawesome/sync-party/internal/repository"
	"github.com/weiawesome/sync-party/internal/validation"
	"github.com/weiawesome/sync-party/pkg/log"
)

const DefaultSessionTTL = 24 * time.Hour

// registration is validated before a user record is created. The password
// cap is bcrypt's input limit.
type registration struct {
	Username string `validate:"required,min=3,max=50,username"`
	Password string `validate:"required,min=6,max=72"`
}

// Authority issues, resolves and revokes sessions.
type Authority struct {
	users     repository.UserRepository
	hasher    Hasher
	signer    *TokenSigner
	store     SessionStore
	ttl       time.Duration
	now       func() time.Time
	dummyHash string
}

// NewAuthority wires the session authority. ttl <= 0 uses DefaultSessionTTL.
func NewAuthority(users repository.UserRepository, hasher Hasher, signer *TokenSigner, store SessionStore, ttl time.Duration) (*Authority, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	// Compared against when the username is unknown.
	dummy, err := hasher.Hash("sync-party-placeholder")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &Authority{
		users:     users,
		hasher:    hasher,
		signer:    signer,
		store:     store,
		ttl:       ttl,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// TTL returns the session lifetime.
func (a *Authority) TTL() time.Duration {
	return a.ttl
}

// Authenticate resolves the principal behind token. It never fails hard:
// any problem yields false.
func (a *Authority) Authenticate(ctx context.Context, token string) (*domain.Principal, bool) {
	if token == "" {
		return nil, false
	}

	claims, err := a.signer.Parse(token)
	if err != nil {
		return nil, false
	}

	sess, err := a.store.Get(ctx, claims.SessionID())
	if err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldSessionID, claims.SessionID()).Msg("failed to load session")
		return nil, false
	}
	if sess == nil || sess.Expired(a.now()) || sess.Principal.ID != claims.Subject {
		return nil, false
	}

	p := sess.Principal
	return &p, true
}

// Login verifies the credentials and opens a session. Every credential
// failure returns domain.ErrInvalidCredentials.
func (a *Authority) Login(ctx context.Context, username, password string) (*Session, error) {
	l := log.Ctx(ctx)

	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = a.hasher.Compare(a.dummyHash, password)
			audit.LogWithDetail(ctx, audit.ActionLoginFailed, "", username, "login failed: unknown user")
			return nil, domain.ErrInvalidCredentials
		}
		l.Error().Err(err).Msg("failed to get user by username")
		return nil, err
	}

	if err := a.hasher.Compare(user.PasswordHash, password); err != nil {
		if !errors.Is(err, ErrMismatch) {
			l.Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to compare password hash")
		}
		audit.LogWithDetail(ctx, audit.ActionLoginFailed, user.ID, username, "login failed: wrong password")
		return nil, domain.ErrInvalidCredentials
	}

	sess, err := a.open(ctx, user.Principal())
	if err != nil {
		l.Error().Err(err).Str(log.FieldUserID, user.ID).Msg("failed to open session")
		return nil, err
	}

	audit.Log(ctx, audit.ActionLogin, user.ID, "user logged in")
	return sess, nil
}

// Logout revokes the session behind token if there is one. It always
// succeeds.
func (a *Authority) Logout(ctx context.Context, token string) {
	claims, err := a.signer.Parse(token)
	if err != nil {
		return
	}

	if err := a.store.Delete(ctx, claims.SessionID()); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str(log.FieldSessionID, claims.SessionID()).Msg("failed to delete session")
		return
	}
	audit.Log(ctx, audit.ActionLogout, claims.Subject, "user logged out")
}

// Register creates a user with the user role.
func (a *Authority) Register(ctx context.Context, username, password string) (*domain.Principal, error) {
	p, err := a.CreateUser(ctx, username, password, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.ActionRegister, p.ID, "user registered")
	return p, nil
}

// CreateUser validates and stores a user with the given role.
func (a *Authority) CreateUser(ctx context.Context, username, password string, role domain.Role) (*domain.Principal, error) {
	if err := validation.Struct(registration{Username: username, Password: password}); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, err
	}

	p := user.Principal()
	return &p, nil
}

// OpenSession starts a session for an already verified principal.
func (a *Authority) OpenSession(ctx context.Context, p domain.Principal) (*Session, error) {
	return a.open(ctx, p)
}

func (a *Authority) open(ctx context.Context, p domain.Principal) (*Session, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := a.now()
	sess := &Session{
		ID:        id,
		Principal: p,
		CreatedAt: now,
		ExpiresAt: now.Add(a.ttl),
	}

	token, err := a.signer.Sign(sess.ID, p.ID, sess.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}
	if err := a.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	sess.Token = token
	return sess, nil
}
