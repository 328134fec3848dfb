package service

import (
	"context"
	"log/slog"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/cartstate"
	"github.com/utafrali/storefront/internal/domain"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/middleware"
)

// SessionView is the client-visible summary of a session. The token is never
// echoed back.
type SessionView struct {
	ID            string              `json:"id"`
	DarkMode      bool                `json:"dark_mode"`
	Authenticated bool                `json:"authenticated"`
	User          *UserView           `json:"user,omitempty"`
	ItemCount     int                 `json:"item_count"`
	CheckoutStep  domain.CheckoutStep `json:"checkout_step"`
}

// UserView is the public part of the logged-in user.
type UserView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

func newSessionView(s domain.Session) *SessionView {
	v := &SessionView{
		ID:            s.ID,
		DarkMode:      s.DarkMode,
		Authenticated: s.IsAuthenticated(),
		ItemCount:     s.Cart.ItemCount(),
		CheckoutStep:  s.CheckoutStep(),
	}
	if s.UserInfo != nil {
		v.User = &UserView{
			ID:      s.UserInfo.ID,
			Name:    s.UserInfo.Name,
			Email:   s.UserInfo.Email,
			IsAdmin: s.UserInfo.IsAdmin,
		}
	}
	return v
}

// SessionService handles preferences and the login state of a session.
type SessionService struct {
	registry          *cartstate.Registry
	validate          middleware.TokenValidator
	publisher         EventPublisher
	clearCartOnLogout bool
	logger            *slog.Logger
}

// NewSessionService creates a new session service. validate checks the
// bearer tokens presented at login.
func NewSessionService(registry *cartstate.Registry, validate middleware.TokenValidator, publisher EventPublisher, clearCartOnLogout bool, logger *slog.Logger) *SessionService {
	return &SessionService{
		registry:          registry,
		validate:          validate,
		publisher:         publisher,
		clearCartOnLogout: clearCartOnLogout,
		logger:            logger,
	}
}

// Get returns the session summary.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*SessionView, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	return newSessionView(s.registry.Get(ctx, sessionID).State()), nil
}

// SetTheme stores the dark mode preference.
func (s *SessionService) SetTheme(ctx context.Context, sessionID string, dark bool) (*SessionView, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	state := s.registry.Commit(ctx, s.registry.Get(ctx, sessionID), cartstate.SetTheme{Dark: dark})
	return newSessionView(state), nil
}

// Login validates token and records the user it identifies.
func (s *SessionService) Login(ctx context.Context, sessionID, token string) (*SessionView, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, apperrors.InvalidInput("token is required")
	}

	claims, err := s.validate(token)
	if err != nil {
		s.logger.InfoContext(ctx, "login rejected",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	state := s.registry.Commit(ctx, s.registry.Get(ctx, sessionID), cartstate.Login{UserInfo: domain.UserInfo{
		Token:   token,
		ID:      claims.UserID,
		Name:    claims.Name,
		Email:   claims.Email,
		IsAdmin: claims.Role == auth.RoleAdmin,
	}})

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("session_id", sessionID),
		slog.String("user_id", claims.UserID),
	)

	return newSessionView(state), nil
}

// Logout forgets the user and the checkout inputs. The cart is kept unless
// the service was configured to clear it.
func (s *SessionService) Logout(ctx context.Context, sessionID string) (*SessionView, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}

	c := s.registry.Get(ctx, sessionID)
	hadItems := !c.State().Cart.IsEmpty()
	state := s.registry.Commit(ctx, c, cartstate.Logout{ClearCart: s.clearCartOnLogout})

	if s.clearCartOnLogout && hadItems {
		if err := s.publisher.PublishCartCleared(context.WithoutCancel(ctx), sessionID, "logout"); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "user logged out", slog.String("session_id", sessionID))
	return newSessionView(state), nil
}

// Destroy drops the live session and its stored record. A stored record that
// cannot be deleted now expires with its TTL.
func (s *SessionService) Destroy(ctx context.Context, sessionID string) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	if err := s.registry.Remove(ctx, sessionID); err != nil {
		s.logger.WarnContext(ctx, "session store unavailable, stored session left to expire",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	s.logger.InfoContext(ctx, "session destroyed", slog.String("session_id", sessionID))
	return nil
}
