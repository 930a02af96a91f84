package customers

import (
	"github.com/glowdesk/glowdesk/internal/docstore"
	"github.com/glowdesk/glowdesk/internal/repository"
	"github.com/glowdesk/glowdesk/internal/schemas"
)

// Customer is a stored customer record.
type Customer struct {
	repository.Meta
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Phone             string `json:"phone"`
	Email             string `json:"email,omitempty"`
	Street            string `json:"street,omitempty"`
	City              string `json:"city,omitempty"`
	State             string `json:"state,omitempty"`
	Pincode           string `json:"pincode,omitempty"`
	DOB               string `json:"dob,omitempty"`
	Anniversary       string `json:"anniversary,omitempty"`
	SkinType          string `json:"skinType,omitempty"`
	HairType          string `json:"hairType,omitempty"`
	ForOwnConsumption bool   `json:"forOwnConsumption,omitempty"`
}

// FullName joins first and last name.
func (c Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Repository is the customer collection.
type Repository = repository.Repository[Customer]

// NewRepository binds the customer schema to store.
func NewRepository(store docstore.Store) *Repository {
	return repository.New[Customer](store, schemas.CustomersCollection, schemas.Customer)
}
