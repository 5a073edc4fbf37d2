package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/queue"
	"github.com/iliyamo/utility-audit-portal/internal/repository"
	"github.com/iliyamo/utility-audit-portal/internal/utils"
)

type userStore interface {
	Create(ctx context.Context, email, password string, cost int) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	Delete(ctx context.Context, id string) error
}

type sessionStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) (string, error)
	ValidateRefresh(ctx context.Context, tokenHash string) (sessionID, userID string, err error)
	IsActive(ctx context.Context, sessionID string) (bool, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeByID(ctx context.Context, sessionID string) error
}

type profileStore interface {
	EnsureExists(ctx context.Context, userID, email string) error
}

type roleStore interface {
	Resolve(ctx context.Context, userID string) (model.Role, error)
	Assign(ctx context.Context, userID string, role model.Role) error
	CountOwners(ctx context.Context) (int, error)
}

// Session is what a successful sign-in or refresh hands back.
type Session struct {
	User             model.User `json:"user"`
	Role             model.Role `json:"role"`
	SessionID        string     `json:"session_id"`
	AccessToken      string     `json:"access_token"`
	AccessExpiresAt  time.Time  `json:"access_expires_at"`
	RefreshToken     string     `json:"refresh_token"`
	RefreshExpiresAt time.Time  `json:"refresh_expires_at"`
}

// Identity is the verified content of an access token.
type Identity struct {
	UserID    string `json:"id"`
	Email     string `json:"email"`
	SessionID string `json:"-"`
}

// AuthChange is delivered to subscribers on sign-in and sign-out.
type AuthChange struct {
	Kind   string // "signed_in" or "signed_out"
	UserID string
	At     time.Time
}

type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
}

type AuthService struct {
	users    userStore
	sessions sessionStore
	profiles profileStore
	roles    roleStore
	events   Publisher
	log      *slog.Logger
	cfg      AuthConfig

	mu        sync.Mutex
	nextSub   int
	listeners map[int]func(AuthChange)
}

func NewAuthService(users userStore, sessions sessionStore, profiles profileStore, roles roleStore,
	events Publisher, log *slog.Logger, cfg AuthConfig) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		profiles:  profiles,
		roles:     roles,
		events:    events,
		log:       log,
		cfg:       cfg,
		listeners: map[int]func(AuthChange){},
	}
}

// SignIn exchanges credentials for a new session.  On any failure nothing is
// stored and ErrInvalidCredentials (or a storage error) is returned.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	role, err := s.roles.Resolve(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	sess, err := s.issue(ctx, u, role)
	if err != nil {
		return nil, err
	}
	s.ensureProfile(ctx, u.ID, u.Email)

	s.notify(AuthChange{Kind: "signed_in", UserID: u.ID, At: time.Now().UTC()})
	s.events.Publish(ctx, queue.NewEvent(queue.EventSignedIn, u.ID, sess.SessionID))
	return sess, nil
}

// Verify checks an access token locally and confirms its session has not
// been revoked.
func (s *AuthService) Verify(ctx context.Context, accessToken string) (*Identity, error) {
	claims, err := utils.ParseAccessToken(s.cfg.JWTSecret, accessToken)
	if err != nil {
		return nil, ErrNoSession
	}
	active, err := s.sessions.IsActive(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrNoSession
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email, SessionID: claims.SessionID}, nil
}

// GetSession returns the current user for accessToken, or ErrNoSession.  A
// successful resolution also makes sure the user's profile row exists.
func (s *AuthService) GetSession(ctx context.Context, accessToken string) (*Identity, error) {
	id, err := s.Verify(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	s.ensureProfile(ctx, id.UserID, id.Email)
	return id, nil
}

// ResolveRole looks up the user's single role on every call.
func (s *AuthService) ResolveRole(ctx context.Context, userID string) (model.Role, error) {
	return s.roles.Resolve(ctx, userID)
}

// SignOut ends the session unconditionally from the caller's point of view;
// a storage failure is logged but not returned.
func (s *AuthService) SignOut(ctx context.Context, id Identity) {
	if id.SessionID != "" {
		if err := s.sessions.RevokeByID(ctx, id.SessionID); err != nil {
			s.log.Error("sign out: revoke session", "session", id.SessionID, "err", err)
		}
	}
	s.notify(AuthChange{Kind: "signed_out", UserID: id.UserID, At: time.Now().UTC()})
	s.events.Publish(ctx, queue.NewEvent(queue.EventSignedOut, id.UserID, id.SessionID))
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// session is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	hash := utils.HashRefreshRaw(refreshToken)
	_, userID, err := s.sessions.ValidateRefresh(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RevokeByHash(ctx, hash); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	role, err := s.roles.Resolve(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, u, role)
}

// Subscribe registers fn for auth changes and returns its unsubscribe func.
// Listeners run synchronously, in registration order, on the goroutine that
// caused the change.
func (s *AuthService) Subscribe(fn func(AuthChange)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *AuthService) notify(ch AuthChange) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	fns := make([]func(AuthChange), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ch)
	}
}

// EnsureOwner creates the bootstrap owner account when no owner exists yet.
// An empty email disables the bootstrap.
func (s *AuthService) EnsureOwner(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	n, err := s.roles.CountOwners(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		if password == "" {
			return invalid("owner_password", "is required to create the owner account")
		}
		u, err = s.users.Create(ctx, email, password, s.cfg.BcryptCost)
	}
	if err != nil {
		return err
	}
	if err := s.roles.Assign(ctx, u.ID, model.RoleOwner); err != nil {
		return err
	}
	s.log.Info("bootstrap owner ready", "email", u.Email)
	return s.profiles.EnsureExists(ctx, u.ID, u.Email)
}

// CreateClient provisions a client account with its role and profile.  Only
// owners may call it.
func (s *AuthService) CreateClient(ctx context.Context, v Viewer, email, password string) (model.RosterEntry, error) {
	if !v.IsOwner() {
		return model.RosterEntry{}, repository.ErrForbidden
	}
	if err := validEmail("email", email); err != nil {
		return model.RosterEntry{}, err
	}
	if err := utils.CheckPassword(password); err != nil {
		return model.RosterEntry{}, invalid("password", err.Error())
	}
	u, err := s.users.Create(ctx, email, password, s.cfg.BcryptCost)
	if err != nil {
		return model.RosterEntry{}, err
	}
	if err := s.roles.Assign(ctx, u.ID, model.RoleClient); err != nil {
		return model.RosterEntry{}, s.discardUser(ctx, u, err)
	}
	if err := s.profiles.EnsureExists(ctx, u.ID, u.Email); err != nil {
		return model.RosterEntry{}, s.discardUser(ctx, u, err)
	}
	return model.RosterEntry{ID: u.ID, Email: u.Email}, nil
}

// discardUser removes a half-provisioned account so the email can be used
// again.  Role and profile rows go with it.
func (s *AuthService) discardUser(ctx context.Context, u model.User, cause error) error {
	if err := s.users.Delete(ctx, u.ID); err != nil {
		s.log.Error("discard partial client", "user", u.ID, "email", u.Email, "err", err)
		return errors.Join(cause, err)
	}
	return cause
}

func (s *AuthService) issue(ctx context.Context, u model.User, role model.Role) (*Session, error) {
	rt, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	sid, err := s.sessions.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(rt.Raw), rt.Exp)
	if err != nil {
		return nil, err
	}
	at, err := utils.NewAccessToken(s.cfg.JWTSecret, u.ID, u.Email, sid, s.cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:             u,
		Role:             role,
		SessionID:        sid,
		AccessToken:      at.Token,
		AccessExpiresAt:  at.Exp,
		RefreshToken:     rt.Raw,
		RefreshExpiresAt: rt.Exp,
	}, nil
}

func (s *AuthService) ensureProfile(ctx context.Context, userID, email string) {
	if err := s.profiles.EnsureExists(ctx, userID, email); err != nil {
		s.log.Warn("ensure profile", "user", userID, "err", err)
	}
}
