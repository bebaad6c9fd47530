package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/model"
	"github.com/matheus3301/chatsync/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email, username or password")
	ErrAccountExists      = errors.New("email or username already registered")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrNotSignedIn        = errors.New("not signed in")
	ErrReauthRequired     = errors.New("recent sign-in required")
)

const (
	defaultCost   = 12
	minPassword   = 8
	resetValidFor = time.Hour
)

// SignUpRequest carries the fields of a new account.
type SignUpRequest struct {
	Email       string
	Username    string
	Password    string
	DisplayName string
}

// Provider authenticates the local user against accounts kept in the store.
type Provider struct {
	db          *store.DB
	bus         *bus.Bus
	logger      *zap.Logger
	reauthValid time.Duration
	cost        int
	now         func() time.Time
}

// NewProvider creates a provider. A re-authentication stays valid for reauthValid.
func NewProvider(db *store.DB, b *bus.Bus, reauthValid time.Duration, logger *zap.Logger) *Provider {
	return &Provider{
		db:          db,
		bus:         b,
		logger:      logger,
		reauthValid: reauthValid,
		cost:        defaultCost,
		now:         time.Now,
	}
}

// SignUp registers an account and signs it in.
func (p *Provider) SignUp(ctx context.Context, req SignUpRequest) (*model.Profile, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if !strings.Contains(req.Email, "@") {
		return nil, fmt.Errorf("invalid email %q", req.Email)
	}
	if req.Username == "" || strings.Contains(req.Username, "@") {
		return nil, fmt.Errorf("invalid username %q", req.Username)
	}
	if len(req.Password) < minPassword {
		return nil, ErrWeakPassword
	}

	if a, err := p.db.AccountByEmail(ctx, req.Email); err != nil {
		return nil, err
	} else if a != nil {
		return nil, ErrAccountExists
	}
	if existing, err := p.db.ProfileByHandle(ctx, req.Username); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrAccountExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	profile := &model.Profile{
		UserID:      uuid.NewString(),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Handle:      req.Username,
	}
	if err := p.db.CreateAccount(ctx, profile, req.Email, hash); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	p.logger.Info("account created", zap.String("user_id", profile.UserID))

	if err := p.startSession(ctx, profile.UserID); err != nil {
		return nil, err
	}
	return profile, nil
}

// SignIn accepts an email address or a username as identifier.
func (p *Provider) SignIn(ctx context.Context, identifier, password string) (*model.Profile, error) {
	identifier = strings.TrimSpace(identifier)
	var (
		a   *store.Account
		err error
	)
	if strings.Contains(identifier, "@") {
		a, err = p.db.AccountByEmail(ctx, strings.ToLower(identifier))
	} else {
		a, err = p.db.AccountByHandle(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if a == nil || bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	if err := p.startSession(ctx, a.UserID); err != nil {
		return nil, err
	}
	return p.db.GetProfile(ctx, a.UserID)
}

func (p *Provider) startSession(ctx context.Context, userID string) error {
	if err := p.db.SaveAuthSession(ctx, userID, p.now()); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	p.logger.Info("signed in", zap.String("user_id", userID))
	p.bus.Emit(bus.SessionSignedIn, userID)
	return nil
}

// SignOut clears the persisted session.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.db.ClearAuthSession(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	p.logger.Info("signed out")
	p.bus.Emit(bus.SessionSignedOut, nil)
	return nil
}

// Current returns the signed-in user's profile, or nil when signed out.
func (p *Provider) Current(ctx context.Context) (*model.Profile, error) {
	s, err := p.db.LoadAuthSession(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	return p.db.GetProfile(ctx, s.UserID)
}

// Reauthenticate confirms the password of the signed-in user, opening a
// window in which sensitive operations are allowed.
func (p *Provider) Reauthenticate(ctx context.Context, password string) error {
	s, err := p.db.LoadAuthSession(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return ErrNotSignedIn
	}
	a, err := p.db.AccountByUserID(ctx, s.UserID)
	if err != nil {
		return err
	}
	if a == nil || bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(password)) != nil {
		return ErrInvalidCredentials
	}
	return p.db.TouchReauth(ctx, p.now())
}

func (p *Provider) requireRecentAuth(ctx context.Context) (string, error) {
	s, err := p.db.LoadAuthSession(ctx)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", ErrNotSignedIn
	}
	if p.now().Sub(s.ReauthAt) > p.reauthValid {
		return "", ErrReauthRequired
	}
	return s.UserID, nil
}

// ChangePassword replaces the signed-in user's password. It needs a recent
// sign-in or Reauthenticate.
func (p *Provider) ChangePassword(ctx context.Context, newPassword string) error {
	userID, err := p.requireRecentAuth(ctx)
	if err != nil {
		return err
	}
	return p.setPassword(ctx, userID, newPassword)
}

// RequestPasswordReset issues a single-use token for the account of email.
// Delivering the token to the user is up to the caller.
func (p *Provider) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	a, err := p.db.AccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", err
	}
	if a == nil {
		return "", ErrInvalidCredentials
	}
	token := uuid.NewString()
	if err := p.db.CreatePasswordReset(ctx, token, a.UserID, p.now().Add(resetValidFor)); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	p.logger.Info("password reset requested", zap.String("user_id", a.UserID))
	return token, nil
}

// ResetPassword redeems a reset token.
func (p *Provider) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPassword {
		return ErrWeakPassword
	}
	userID, err := p.db.ConsumePasswordReset(ctx, token, p.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	return p.setPassword(ctx, userID, newPassword)
}

func (p *Provider) setPassword(ctx context.Context, userID, password string) error {
	if len(password) < minPassword {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := p.db.SetPasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	p.logger.Info("password changed", zap.String("user_id", userID))
	return nil
}
