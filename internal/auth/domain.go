package auth

import (
	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/repository"
	"github.com/glowdesk/glowdesk/internal/schemas"
)

// User represents a sign-in account.
type User struct {
	repository.Meta
	Email        string `json:"email"`
	DisplayName  string `json:"displayName,omitempty"`
	PasswordHash string `json:"passwordHash"`
	IsActive     bool   `json:"isActive"`
}

// Profile is the public view of a user.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// Profile strips credentials from u.
func (u User) Profile() Profile {
	return Profile{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

// StateChange is delivered to subscribers on sign-in and sign-out. User is nil
// when nobody is signed in.
type StateChange struct {
	User *Profile
}

// Repository is the users collection.
type Repository = repository.Repository[User]

// NewRepository binds the user schema to store.
func NewRepository(store docstore.Store) *Repository {
	return repository.New[User](store, schemas.UsersCollection, schemas.User)
}
