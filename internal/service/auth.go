// Package service holds the business logic between the HTTP handlers and the
// repositories. AuthService owns the credential and session lifecycle;
// ReportService owns report aggregation and persistence.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/mmmykhailo/timecracker-api/internal/apperror"
	"github.com/mmmykhailo/timecracker-api/internal/auth"
	"github.com/mmmykhailo/timecracker-api/internal/model"
	"github.com/mmmykhailo/timecracker-api/internal/repository"
)

// stateTTL bounds how long a started OAuth flow stays completable.
const stateTTL = 10 * time.Minute

// GitHubProvider is the slice of auth.GitHubProvider the service needs;
// tests substitute a fake instead of talking to GitHub.
type GitHubProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthService implements registration, login, refresh-token rotation and the
// GitHub federated login flow.
type AuthService struct {
	users     repository.UserRepository
	states    repository.OAuthStateRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	github    GitHubProvider
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	states repository.OAuthStateRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	github GitHubProvider,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		states:    states,
		tokens:    tokens,
		passwords: passwords,
		github:    github,
		logger:    logger,
	}
}

// AuthResult bundles the authenticated user with its freshly issued tokens.
type AuthResult struct {
	User *model.User
	Pair auth.TokenPair
}

// Register creates a password account and signs the user in. Duplicate
// username or email surfaces as a conflict naming the field.
func (s *AuthService) Register(ctx context.Context, username, password, email string) (*AuthResult, error) {
	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, apperror.Conflict("username", "username")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking username: %w", err)
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("email", "email")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	// The unique indexes are the real arbiter; the lookups above just give
	// nicer field attribution when there is no race.
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("username", username))

	return s.signIn(ctx, user)
}

// Login verifies username/password credentials. Unknown username and wrong
// password are indistinguishable, and a failed login never touches the
// refresh-token slot.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized()
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	// OAuth-only accounts have no password hash and cannot password-login.
	if user.PasswordHash == "" {
		return nil, apperror.Unauthorized()
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized()
	}

	return s.signIn(ctx, user)
}

// Refresh rotates a refresh token: verify the signature and expiry, then
// atomically swap the presented value out of whichever slot holds it. A token
// that was already rotated, cleared by logout, or never issued fails the swap
// and reads as unauthorized — the presented value is dead either way.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperror.Unauthorized()
	}

	// Sign the replacement pair before the swap so the compare-and-set and
	// the slot write are one store round trip.
	pair, err := s.tokens.IssuePair(&model.User{
		ID:       claims.Subject,
		Username: claims.Username,
		Email:    claims.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token pair: %w", err)
	}

	user, err := s.users.RotateRefreshToken(ctx, refreshToken, pair.RefreshToken)
	if err != nil {
		if errors.Is(err, apperror.ErrUnauthorized) {
			return nil, apperror.Unauthorized()
		}
		return nil, fmt.Errorf("service/auth: rotating refresh token: %w", err)
	}

	return &AuthResult{User: user, Pair: pair}, nil
}

// Logout clears the user's refresh-token slot. Outstanding access tokens
// simply age out; there is no revocation list.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshToken(ctx, userID, ""); err != nil {
		return fmt.Errorf("service/auth: clearing refresh token: %w", err)
	}
	return nil
}

// GetUserByID resolves the principal for profile reads.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// BeginGitHubFlow mints an anti-forgery state record and returns the provider
// authorization URL to redirect the user to. Expired states from abandoned
// flows are swept here rather than by a background job.
func (s *AuthService) BeginGitHubFlow(ctx context.Context) (string, error) {
	now := time.Now()
	if n, err := s.states.DeleteExpiredStates(ctx, now); err != nil {
		// Sweeping is best-effort; a failed sweep must not block login.
		s.logger.Warn("sweeping expired oauth states failed", slog.String("error", err.Error()))
	} else if n > 0 {
		s.logger.Debug("swept expired oauth states", slog.Int64("count", n))
	}

	state := &model.OAuthState{
		State:     xid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(stateTTL),
	}
	if err := s.states.CreateState(ctx, state); err != nil {
		return "", fmt.Errorf("service/auth: storing oauth state: %w", err)
	}

	return s.github.AuthURL(state.State), nil
}

// CompleteGitHubFlow finishes the callback side of the federated login:
//
//  1. Consume the anti-forgery state — delete-on-read, so replaying the
//     callback with the same state fails no matter how valid the code is.
//  2. Exchange the code with the provider and resolve identity plus email.
//  3. Resolve a local account: by linked GitHub ID, else by email (linking
//     the GitHub ID in place), else create a fresh passwordless account.
//  4. Sign the user in, overwriting the refresh-token slot.
func (s *AuthService) CompleteGitHubFlow(ctx context.Context, code, state string) (*AuthResult, error) {
	if err := s.states.ConsumeState(ctx, state, time.Now()); err != nil {
		if errors.Is(err, apperror.ErrInvalidState) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: consuming oauth state: %w", err)
	}

	ghUser, err := s.github.Exchange(ctx, code)
	if err != nil {
		s.logger.Error("GitHub exchange failed", slog.String("error", err.Error()))
		return nil, apperror.External("failed to authenticate with GitHub")
	}

	user, err := s.resolveGitHubUser(ctx, ghUser)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.Int64("githubID", ghUser.ID),
	)

	return s.signIn(ctx, user)
}

func (s *AuthService) resolveGitHubUser(ctx context.Context, ghUser *auth.GitHubUser) (*model.User, error) {
	user, err := s.users.GetUserByGitHubID(ctx, ghUser.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up user by github id: %w", err)
	}

	user, err = s.users.GetUserByEmail(ctx, ghUser.Email)
	if err == nil {
		// Existing account with the same email: link the federated identity.
		// The repository refuses to overwrite a different existing link.
		if user.GitHubID == 0 {
			if err := s.users.LinkGitHubID(ctx, user.ID, ghUser.ID); err != nil {
				return nil, fmt.Errorf("service/auth: linking github id: %w", err)
			}
			user.GitHubID = ghUser.ID
		}
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up user by email: %w", err)
	}

	// First federated login: create a passwordless account named after the
	// GitHub login, de-colliding with the numeric ID if the name is taken.
	user = &model.User{
		Username: ghUser.Login,
		Email:    ghUser.Email,
		GitHubID: ghUser.ID,
	}
	err = s.users.CreateUser(ctx, user)
	if errors.Is(err, apperror.ErrConflict) {
		user.Username = fmt.Sprintf("%s-%d", ghUser.Login, ghUser.ID)
		err = s.users.CreateUser(ctx, user)
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: creating user for github login: %w", err)
	}

	return user, nil
}

// signIn issues a token pair and stores the new refresh token as the user's
// single live slot value.
func (s *AuthService) signIn(ctx context.Context, user *model.User) (*AuthResult, error) {
	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token pair: %w", err)
	}

	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, fmt.Errorf("service/auth: storing refresh token: %w", err)
	}
	user.RefreshToken = pair.RefreshToken

	return &AuthResult{User: user, Pair: pair}, nil
}
