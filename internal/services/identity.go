package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/guildhall/guildhall-backend/internal/database"
	"github.com/guildhall/guildhall-backend/internal/models"
	"github.com/guildhall/guildhall-backend/pkg/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
)

// Identity is what the identity provider supplies for every operation. The
// engines trust the role here for current-role checks and snapshot it onto
// messages at creation for historical ones.
type Identity struct {
	ID    string
	Email string
	Name  string
	Role  models.Role
}

// Actor converts an identity into the authorization actor shape.
func (id *Identity) Actor() Actor {
	return Actor{ID: id.ID, Email: id.Email, Name: id.Name, Role: id.Role}
}

// IdentityProvider resolves user identities. The production implementation
// is PostgresIdentity; tests use a static map.
type IdentityProvider interface {
	Lookup(ctx context.Context, userID string) (*Identity, error)
}

// PostgresIdentity backs identities with the users table.
type PostgresIdentity struct{}

func NewPostgresIdentity() *PostgresIdentity {
	return &PostgresIdentity{}
}

// Lookup fetches a user's identity by id.
func (p *PostgresIdentity) Lookup(ctx context.Context, userID string) (*Identity, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}

	var email, username, role string
	err = database.PostgresDB.QueryRowContext(ctx, `
		SELECT email, username, role FROM users WHERE id = $1
	`, id).Scan(&email, &username, &role)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &Identity{
		ID:    userID,
		Email: email,
		Name:  username,
		Role:  models.ParseRole(role),
	}, nil
}

// CreateUser registers a new user with the default member role and returns
// the identity.
func (p *PostgresIdentity) CreateUser(ctx context.Context, email, username, password string) (*Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	var exists bool
	if err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = $1)
	`, email).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	_, err = database.PostgresDB.ExecContext(ctx, `
		INSERT INTO users (id, email, username, role, password_hash)
		VALUES ($1, $2, $3, 'member', $4)
	`, id, email, username, hash)
	if err != nil {
		return nil, err
	}

	return &Identity{ID: id.String(), Email: email, Name: username, Role: models.RoleMember}, nil
}

// Authenticate verifies email/password and returns the identity.
func (p *PostgresIdentity) Authenticate(ctx context.Context, email, password string) (*Identity, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var idStr, username, role, hash string
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, username, role, password_hash FROM users WHERE LOWER(email) = $1
	`, email).Scan(&idStr, &username, &role, &hash)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := utils.VerifyPassword(password, hash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}

	return &Identity{
		ID:    idStr,
		Email: email,
		Name:  username,
		Role:  models.ParseRole(role),
	}, nil
}
