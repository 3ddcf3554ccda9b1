package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskpilot/service-api-go/internal/user/entity"
	userrepo "github.com/taskpilot/service-api-go/internal/user/repo"
	"github.com/taskpilot/service-api-go/internal/validate"
	"github.com/taskpilot/service-api-go/pkg/utilities"
)

// PasswordHasher is the minimal hashing interface so the algorithm can be
// swapped without touching the service.
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

var (
	ErrEmailTaken     = errors.New("user with this email already exists")
	ErrBadCredentials = errors.New("invalid email or password")
	ErrNotFound       = errors.New("user not found")
)

// UserService orchestrates registration, authentication and profile reads.
type UserService struct {
	repo   *userrepo.UserRepo
	hasher PasswordHasher
}

func NewUserService(db *sqlx.DB, r *userrepo.UserRepo, hasher PasswordHasher) *UserService {
	if r == nil {
		r = userrepo.NewUserRepo(db)
	}
	if hasher == nil {
		hasher = BcryptHasher{Cost: 10}
	}
	return &UserService{repo: r, hasher: hasher}
}

// Register creates an account. The email is normalized to lower case before
// the uniqueness check so casing variants collide.
func (s *UserService) Register(ctx context.Context, email, username, password string) (*entity.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	var v validate.Errors
	if email == "" || !strings.Contains(email, "@") {
		v.Add("email", "A valid email is required")
	}
	if username == "" {
		v.Add("username", "Username is required")
	} else if len(username) > 100 {
		v.Add("username", "Username must not exceed 100 characters")
	}
	if len(password) < 6 {
		v.Add("password", "Password must be at least 6 characters")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		ID:           utilities.NewKSUID(),
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// Authenticate verifies a password login. An unknown email and a bad
// password both surface as ErrBadCredentials to avoid user enumeration.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrBadCredentials
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// Profile fetches the sanitized account view for the given user id.
func (s *UserService) Profile(ctx context.Context, id string) (*entity.Profile, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}
