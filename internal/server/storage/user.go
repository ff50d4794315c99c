package storage

import (
	"context"

	"github.com/iudanet/tokenauth/internal/models"
)

// UserStorage defines interface for user data persistence.
// Implementations must be safe for concurrent use.
type UserStorage interface {
	// CreateUser creates a new user in the storage.
	// Assigns user.ID and resets user.TokenVersion to 0.
	// Returns ErrUserAlreadyExists if email is already taken
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByEmail retrieves user by email
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID int64) (*models.User, error)

	// ListUsers returns all users ordered by ID
	ListUsers(ctx context.Context) ([]*models.User, error)

	// IncrementTokenVersion atomically increments the user's token version by one
	// and returns the new value. It must be a single atomic operation, never read-then-write.
	// Returns ErrUserNotFound if user doesn't exist
	IncrementTokenVersion(ctx context.Context, userID int64) (int64, error)

	// Ping checks that the storage is reachable
	Ping(ctx context.Context) error

	// Close releases underlying connections
	Close() error
}
