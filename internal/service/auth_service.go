package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/GTDGit/onhand_api/internal/database"
	"github.com/GTDGit/onhand_api/internal/models"
	"github.com/GTDGit/onhand_api/internal/repository"
	"github.com/GTDGit/onhand_api/internal/utils"
)

// MinPasswordLength is enforced at signup.
const MinPasswordLength = 8

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// AuthService signs customers up and issues session tokens for customers
// and admins.
type AuthService struct {
	users *repository.UserRepository
	now   func() time.Time
}

// NewAuthService constructs a new AuthService.
func NewAuthService(users *repository.UserRepository) *AuthService {
	return &AuthService{users: users, now: database.Now}
}

// Signup creates a customer account.
func (s *AuthService) Signup(ctx context.Context, email, password, name string) (*models.User, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", utils.ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", utils.ErrValidation, MinPasswordLength)
	}
	return s.createUser(ctx, email, password, strings.TrimSpace(name), models.RoleCustomer)
}

// Login verifies a password and returns a signed token carrying the role.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	log.Debug().Str("email", email).Msg("Login attempt")

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, utils.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !user.IsActive {
		log.Warn().Str("email", email).Msg("Account is inactive")
		return nil, utils.ErrAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Warn().Str("email", email).Msg("Password verification failed")
		return nil, utils.ErrInvalidCredentials
	}

	token, err := utils.GenerateJWT(user.ID, user.Email, string(user.Role))
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.users.TouchLogin(ctx, user.ID, now); err != nil {
		log.Warn().Err(err).Int("user_id", user.ID).Msg("failed to record login time")
	} else {
		user.LastLoginAt = &now
	}

	log.Info().Int("user_id", user.ID).Str("role", string(user.Role)).Msg("Login successful")
	return &LoginResult{Token: token, User: user}, nil
}

// EnsureAdmin creates an admin account, or promotes an existing account with
// the same email. Used by the seeder. When a new account is created without a
// password, a random one is generated and returned; it is not stored anywhere
// in clear text.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password, name string) (*models.User, string, error) {
	email = normalizeEmail(email)
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		var generated string
		if password == "" {
			if generated, err = utils.GenerateSecret(12); err != nil {
				return nil, "", fmt.Errorf("generate admin password: %w", err)
			}
			password = generated
		}
		if len(password) < MinPasswordLength {
			return nil, "", fmt.Errorf("%w: admin password must be at least %d characters", utils.ErrValidation, MinPasswordLength)
		}
		user, err := s.createUser(ctx, email, password, name, models.RoleAdmin)
		if err != nil {
			return nil, "", err
		}
		return user, generated, nil
	case err != nil:
		return nil, "", err
	}

	if err := s.users.SetRole(ctx, user.ID, models.RoleAdmin, s.now()); err != nil {
		return nil, "", err
	}
	user.Role = models.RoleAdmin
	user.IsActive = true
	return user, "", nil
}

func (s *AuthService) createUser(ctx context.Context, email, password, name string, role models.Role) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &models.User{
		Email:        email,
		PasswordHash: string(hashedPassword),
		Name:         name,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, utils.ErrEmailTaken
		}
		return nil, err
	}
	log.Info().Int("user_id", user.ID).Str("role", string(role)).Msg("user created")
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
