package repository

import (
	"context"
	"fmt"

	"github.com/jbweber/homelab/genrepo/internal/domain"
	"github.com/jbweber/homelab/genrepo/internal/query"
)

// UserRepository defines domain-specific operations for users
type UserRepository interface {
	Repository[domain.User, int64]
	FindByName(ctx context.Context, name string) (*domain.User, error)
	FindByCompany(ctx context.Context, companyID int64, opts ...Option) ([]*domain.User, error)
}

// userRepositoryImpl implements UserRepository
type userRepositoryImpl struct {
	*SessionRepository[domain.User, int64]
}

// NewUserRepository creates a new user repository over the model's session
func NewUserRepository(m *domain.Model) UserRepository {
	return &userRepositoryImpl{
		SessionRepository: New(m.Users),
	}
}

// FindByName retrieves the user with the given name
func (r *userRepositoryImpl) FindByName(ctx context.Context, name string) (*domain.User, error) {
	user, err := r.SingleOrDefault(ctx, func(u *domain.User) bool { return u.Name == name })
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user with name %s: %w", name, ErrNotFound)
	}
	return user, nil
}

// FindByCompany returns the users employed by a company, ordered by ID
// unless a sort option is given
func (r *userRepositoryImpl) FindByCompany(ctx context.Context, companyID int64, opts ...Option) ([]*domain.User, error) {
	if len(collect(opts).sort) == 0 {
		opts = append(opts, WithSort(query.Asc("ID")))
	}
	return r.SelectByCondition(ctx, func(u *domain.User) bool {
		return u.CompanyID != nil && *u.CompanyID == companyID
	}, opts...)
}

// NewCompanyRepository creates a repository for companies
func NewCompanyRepository(m *domain.Model) Repository[domain.Company, int64] {
	return New(m.Companies)
}

// NewCityRepository creates a repository for cities
func NewCityRepository(m *domain.Model) Repository[domain.City, int64] {
	return New(m.Cities)
}
