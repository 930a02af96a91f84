package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/repository"
	"github.com/glowdesk/glowdesk/internal/shared"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// MailQueue hands transactional mail to the background worker.
type MailQueue interface {
	EnqueueMail(ctx context.Context, to, subject, body string) error
}

// Options configures the Service.
type Options struct {
	Tokens   *ResetTokens
	Mail     MailQueue
	ResetURL string
	Logger   *slog.Logger
}

// Service wraps authentication business rules.
type Service struct {
	repo     *Repository
	tokens   *ResetTokens
	mail     MailQueue
	resetURL string
	logger   *slog.Logger
	cost     int

	mu      sync.Mutex
	current *Profile
	subs    map[int]func(StateChange)
	nextSub int
}

// NewService constructs a new Service.
func NewService(repo *Repository, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cost := bcrypt.DefaultCost
	if shared.InTestMode() {
		cost = bcrypt.MinCost
	}
	return &Service{
		repo:     repo,
		tokens:   opts.Tokens,
		mail:     opts.Mail,
		resetURL: opts.ResetURL,
		logger:   logger,
		cost:     cost,
		subs:     map[int]func(StateChange){},
	}
}

// SignIn validates email/password credentials. Every failure, including an
// inactive account, is reported as shared.ErrInvalidCredentials.
func (s *Service) SignIn(ctx context.Context, email, password string) (*User, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	profile := user.Profile()
	s.publish(&profile)
	s.logger.Info("user signed in", "user_id", user.ID)
	return user, nil
}

// SignOut notifies subscribers that user left. user may be nil when the
// session no longer maps to an account.
func (s *Service) SignOut(_ context.Context, user *User) {
	if user != nil {
		s.logger.Info("user signed out", "user_id", user.ID)
	}
	s.publish(nil)
}

// User returns the account with id.
func (s *Service) User(ctx context.Context, id string) (*User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Subscribe registers fn for auth state changes. fn is called immediately with
// the current state and again after every sign-in and sign-out until the
// returned function is called.
func (s *Service) Subscribe(fn func(StateChange)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	current := s.current
	s.mu.Unlock()

	fn(StateChange{User: current})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) publish(profile *Profile) {
	s.mu.Lock()
	s.current = profile
	fns := make([]func(StateChange), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(StateChange{User: profile})
	}
}

// CreateUser stores a new active account.
func (s *Service) CreateUser(ctx context.Context, email, password, displayName string) (*User, error) {
	email = normalizeEmail(email)
	if err := checkPassword(password); err != nil {
		return nil, err
	}
	if _, err := s.findByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: user %s already exists", shared.ErrConflict, email)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, User{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RequestPasswordReset issues a one-time token for email and queues the reset
// mail. Unknown or inactive accounts succeed without sending anything.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	if s.tokens == nil || s.mail == nil {
		return errors.New("auth: password reset not configured")
	}
	user, err := s.findByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Info("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}
	token, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Use the link below to choose a new password. It expires in %s.\n\n%s\n",
		s.tokens.TTL(), s.resetLink(token))
	if err := s.mail.EnqueueMail(ctx, user.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("auth: enqueue reset mail: %w", err)
	}
	return nil
}

// ConfirmPasswordReset consumes token and stores a new hash for its user.
func (s *Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if s.tokens == nil {
		return errors.New("auth: password reset not configured")
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	userID, err := s.tokens.Consume(ctx, token)
	if err != nil {
		return err
	}
	user, err := s.repo.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrResetTokenInvalid
	}
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	if _, err := s.repo.Update(ctx, user.ID, user); err != nil {
		return err
	}
	s.logger.Info("password reset", "user_id", user.ID)
	return nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (*User, error) {
	users, err := s.repo.Query(ctx, []docstore.Filter{
		docstore.Where("email", docstore.OpEq, normalizeEmail(email)),
	}, docstore.QueryOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("auth: user %s: %w", email, repository.ErrNotFound)
	}
	return &users[0], nil
}

func (s *Service) resetLink(token string) string {
	u, err := url.Parse(s.resetURL)
	if err != nil || s.resetURL == "" {
		return token
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func checkPassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", shared.ErrBadRequest, MinPasswordLength)
	}
	return nil
}
