package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/collegedesk/collegedesk/internal/models"
	"github.com/collegedesk/collegedesk/pkg/crypto"
	apperrors "github.com/collegedesk/collegedesk/pkg/errors"
)

// CreateCollegeInput defines attributes for registering a college account.
type CreateCollegeInput struct {
	Username string
	Name     string
	Email    string
	Password string
}

// UserService manages portal accounts.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// Authenticate verifies the username/password pair and returns the account.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrInvalidCredentials
	}

	return &user, nil
}

// CreateCollege registers a new college account with a hashed password.
func (s *UserService) CreateCollege(ctx context.Context, input CreateCollegeInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewBadRequest("password must be at least 8 characters")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := models.User{
		Username: username,
		Name:     strings.TrimSpace(defaultIfEmpty(input.Name, username)),
		Email:    email,
		Password: hashed,
		Role:     models.RoleCollege,
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.New("USERNAME_TAKEN", "Username is already registered", 409)
		}
		return nil, fmt.Errorf("user service: create college: %w", err)
	}

	return &user, nil
}

// GetByUsername loads one account by username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// ListColleges returns every college account ordered by username.
func (s *UserService) ListColleges(ctx context.Context) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("role = ?", models.RoleCollege).
		Order("username ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list colleges: %w", err)
	}
	return users, nil
}

// CollegeEmails resolves usernames to email addresses. Unknown usernames are
// simply absent from the result, callers decide how to treat them.
func (s *UserService) CollegeEmails(ctx context.Context, usernames []string) (map[string]string, error) {
	ctx = ensureContext(ctx)

	usernames = normaliseNames(usernames)
	if len(usernames) == 0 {
		return map[string]string{}, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("username IN ?", usernames).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: resolve emails: %w", err)
	}

	emails := make(map[string]string, len(users))
	for _, user := range users {
		if strings.TrimSpace(user.Email) != "" {
			emails[user.Username] = user.Email
		}
	}
	return emails, nil
}

// UpdatePassword rotates the password for an account after verifying the current one.
func (s *UserService) UpdatePassword(ctx context.Context, username, current, next string) error {
	ctx = ensureContext(ctx)

	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if !crypto.VerifyPassword(user.Password, current) {
		return apperrors.ErrInvalidCredentials
	}
	if len(next) < 8 {
		return apperrors.NewBadRequest("password must be at least 8 characters")
	}

	hashed, err := crypto.HashPassword(next)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", user.Username).
		Update("password", hashed).Error; err != nil {
		return fmt.Errorf("user service: update password: %w", err)
	}
	return nil
}
