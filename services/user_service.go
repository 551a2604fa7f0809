package services

import (
	"context"
	"fmt"
	"strings"

	"acronym-restful/auth"
	"acronym-restful/models"
	"acronym-restful/repositories"

	"github.com/google/uuid"
)

// The UserService interface defines the methods that user services need to implement
type UserService interface {
	CreateUser(ctx context.Context, input *CreateUserInput) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UserAcronyms(ctx context.Context, id uuid.UUID) ([]models.Acronym, error)
	// Login verifies the password and issues a fresh bearer token.
	Login(ctx context.Context, username, password string) (*models.Token, error)
	// Authenticate verifies the password only, for session logins.
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
}

type CreateUserInput struct {
	Name       string  `json:"name" description:"Display name"`
	Username   string  `json:"username" description:"Unique login name"`
	Password   string  `json:"password" description:"Plain text password, stored as a bcrypt hash"`
	TwitterURL *string `json:"twitterURL,omitempty" description:"Optional Twitter profile"`
}

func (in *CreateUserInput) validate() error {
	in.Username = strings.TrimSpace(in.Username)
	if in.Name == "" || in.Username == "" || in.Password == "" {
		return fmt.Errorf("name, username and password are required: %w", ErrInvalidInput)
	}
	return nil
}

type userService struct {
	repos    *repositories.Repositories
	verifier *auth.PasswordVerifier
	issuer   *auth.TokenIssuer
}

var _ UserService = (*userService)(nil)

// NewUserService creates a new UserService instance
func NewUserService(repos *repositories.Repositories, verifier *auth.PasswordVerifier, issuer *auth.TokenIssuer) UserService {
	return &userService{repos: repos, verifier: verifier, issuer: issuer}
}

func (s *userService) CreateUser(ctx context.Context, input *CreateUserInput) (*models.User, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	user := models.User{
		Name:         input.Name,
		Username:     input.Username,
		PasswordHash: hash,
		TwitterURL:   input.TwitterURL,
	}
	if err := s.repos.Users.Create(ctx, &user); err != nil {
		return nil, storageError(fmt.Sprintf("username %q", input.Username), err)
	}
	return &user, nil
}

func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repos.Users.FindByID(ctx, id)
	if err != nil {
		return nil, storageError("user", err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repos.Users.FindAll(ctx)
	if err != nil {
		return nil, storageError("users", err)
	}
	return users, nil
}

func (s *userService) UserAcronyms(ctx context.Context, id uuid.UUID) ([]models.Acronym, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}
	acronyms, err := s.repos.Acronyms.FindByUser(ctx, id)
	if err != nil {
		return nil, storageError("acronyms", err)
	}
	return acronyms, nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.verifier.Authenticate(ctx, username, password)
	if err != nil {
		if auth.IsAuthError(err) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return user, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (*models.Token, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	token, err := s.issuer.Issue(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return token, nil
}
