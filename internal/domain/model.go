package domain

import (
	"context"
	"time"

	"github.com/jbweber/homelab/genrepo/internal/query"
	"github.com/jbweber/homelab/genrepo/internal/store"
)

// Entity kinds as stored by the backends.
const (
	KindUsers     = "users"
	KindCompanies = "companies"
	KindCities    = "cities"
)

// Model binds the entity sets of one session. Relation loaders query
// through the same session, so included entities obey the caller's
// tracking mode.
type Model struct {
	Session   *store.Session
	Users     *store.Set[User, int64]
	Companies *store.Set[Company, int64]
	Cities    *store.Set[City, int64]
}

// NewModel registers the schemas and relations for sess.
func NewModel(sess *store.Session) *Model {
	m := &Model{Session: sess}

	users := query.NewSchema(KindUsers, func(u *User) int64 { return u.ID })
	query.OrderedField(users, "ID", func(u *User) int64 { return u.ID })
	query.OrderedField(users, "Name", func(u *User) string { return u.Name })
	query.OrderedField(users, "Email", func(u *User) string { return u.Email })
	query.NullableField(users, "CompanyID", func(u *User) *int64 { return u.CompanyID })
	query.TimeField(users, "CreatedAt", func(u *User) time.Time { return u.CreatedAt })
	users.AddRelation("Company", m.loadUserCompany)

	companies := query.NewSchema(KindCompanies, func(c *Company) int64 { return c.ID })
	query.OrderedField(companies, "ID", func(c *Company) int64 { return c.ID })
	query.OrderedField(companies, "Name", func(c *Company) string { return c.Name })
	query.NullableField(companies, "CityID", func(c *Company) *int64 { return c.CityID })
	companies.AddRelation("City", m.loadCompanyCity)
	companies.AddRelation("Users", m.loadCompanyUsers)

	cities := query.NewSchema(KindCities, func(c *City) int64 { return c.ID })
	query.OrderedField(cities, "ID", func(c *City) int64 { return c.ID })
	query.OrderedField(cities, "Name", func(c *City) string { return c.Name })
	cities.AddRelation("Companies", m.loadCityCompanies)

	m.Users = store.NewSet(sess, users)
	m.Companies = store.NewSet(sess, companies)
	m.Cities = store.NewSet(sess, cities)
	return m
}

func (m *Model) loadUserCompany(ctx context.Context, mode query.TrackingMode, users []*User) error {
	ids := make(map[int64]bool)
	for _, u := range users {
		if u.CompanyID != nil {
			ids[*u.CompanyID] = true
		}
	}
	if len(ids) == 0 {
		return nil
	}

	companies, err := m.Companies.Query(mode).Where(func(c *Company) bool { return ids[c.ID] }).All(ctx)
	if err != nil {
		return err
	}
	byID := index(companies, func(c *Company) int64 { return c.ID })
	for _, u := range users {
		if u.CompanyID != nil {
			u.Company = byID[*u.CompanyID]
		}
	}
	return nil
}

func (m *Model) loadCompanyCity(ctx context.Context, mode query.TrackingMode, companies []*Company) error {
	ids := make(map[int64]bool)
	for _, c := range companies {
		if c.CityID != nil {
			ids[*c.CityID] = true
		}
	}
	if len(ids) == 0 {
		return nil
	}

	cities, err := m.Cities.Query(mode).Where(func(c *City) bool { return ids[c.ID] }).All(ctx)
	if err != nil {
		return err
	}
	byID := index(cities, func(c *City) int64 { return c.ID })
	for _, c := range companies {
		if c.CityID != nil {
			c.City = byID[*c.CityID]
		}
	}
	return nil
}

func (m *Model) loadCompanyUsers(ctx context.Context, mode query.TrackingMode, companies []*Company) error {
	byID := index(companies, func(c *Company) int64 { return c.ID })
	users, err := m.Users.Query(mode).Where(func(u *User) bool {
		return u.CompanyID != nil && byID[*u.CompanyID] != nil
	}).All(ctx)
	if err != nil {
		return err
	}
	for _, c := range companies {
		c.Users = nil
	}
	for _, u := range users {
		c := byID[*u.CompanyID]
		c.Users = append(c.Users, u)
	}
	return nil
}

func (m *Model) loadCityCompanies(ctx context.Context, mode query.TrackingMode, cities []*City) error {
	byID := index(cities, func(c *City) int64 { return c.ID })
	companies, err := m.Companies.Query(mode).Where(func(c *Company) bool {
		return c.CityID != nil && byID[*c.CityID] != nil
	}).All(ctx)
	if err != nil {
		return err
	}
	for _, c := range cities {
		c.Companies = nil
	}
	for _, co := range companies {
		city := byID[*co.CityID]
		city.Companies = append(city.Companies, co)
	}
	return nil
}

func index[T any](items []*T, key func(*T) int64) map[int64]*T {
	out := make(map[int64]*T, len(items))
	for _, it := range items {
		out[key(it)] = it
	}
	return out
}
