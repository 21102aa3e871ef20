package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("validation failed")

// User is a person, optionally employed by a Company
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CompanyID *int64    `json:"company_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Company *Company `json:"-"`
}

// Validate checks the fields required for persistence.
func (u *User) Validate() error {
	if u.ID <= 0 {
		return fmt.Errorf("user id must be positive: %w", ErrInvalid)
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("user name is required: %w", ErrInvalid)
	}
	return nil
}

// Company groups users and may belong to a City
type Company struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	CityID *int64 `json:"city_id,omitempty"`

	City  *City   `json:"-"`
	Users []*User `json:"-"`
}

// Validate checks the fields required for persistence.
func (c *Company) Validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("company id must be positive: %w", ErrInvalid)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("company name is required: %w", ErrInvalid)
	}
	return nil
}

// City is where companies are located
type City struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	Companies []*Company `json:"-"`
}

// Validate checks the fields required for persistence.
func (c *City) Validate() error {
	if c.ID <= 0 {
		return fmt.Errorf("city id must be positive: %w", ErrInvalid)
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("city name is required: %w", ErrInvalid)
	}
	return nil
}
