// Package seed loads demo users, listings and coupons from a YAML fixture.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/stay-reservation/internal/model"
	"github.com/iliyamo/stay-reservation/internal/repository"
	"github.com/iliyamo/stay-reservation/internal/utils"
)

// Fixture is the YAML document shape.
type Fixture struct {
	Users    []User    `yaml:"users"`
	Listings []Listing `yaml:"listings"`
	Coupons  []Coupon  `yaml:"coupons"`
}

type User struct {
	Email    string `yaml:"email"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Listing references its owner by email.
type Listing struct {
	Owner        string  `yaml:"owner"`
	Title        string  `yaml:"title"`
	Description  string  `yaml:"description"`
	Location     string  `yaml:"location"`
	Country      string  `yaml:"country"`
	ImageURL     string  `yaml:"image_url"`
	NightlyPrice float64 `yaml:"nightly_price"`
}

type Coupon struct {
	Code         string     `yaml:"code"`
	DiscountType string     `yaml:"discount_type"`
	Amount       float64    `yaml:"amount"`
	MaxUses      int        `yaml:"max_uses"`
	ExpiresAt    *time.Time `yaml:"expires_at"`
	Inactive     bool       `yaml:"inactive"`
}

// Load reads and decodes the fixture at path.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a fixture document.
func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	return &f, nil
}

// Users creates and finds accounts.
type Users interface {
	Create(ctx context.Context, email, username, passwordHash, role string) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// Store creates listings and coupons.
type Store interface {
	CreateListing(ctx context.Context, l *model.Listing) error
	CreateCoupon(ctx context.Context, c *model.Coupon) error
}

// Result counts what Apply created.
type Result struct {
	Users, Listings, Coupons int
}

// Apply inserts the fixture. Existing users and coupon codes are kept, so
// running it twice only adds listings again.
func Apply(ctx context.Context, f *Fixture, users Users, store Store, bcryptCost int, logger *logrus.Logger) (Result, error) {
	var res Result
	ids := make(map[string]uint64, len(f.Users))

	for _, u := range f.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		role := strings.ToUpper(strings.TrimSpace(u.Role))
		if role == "" {
			role = model.RoleUser
		}
		if role != model.RoleUser && role != model.RoleAdmin {
			return res, fmt.Errorf("user %s: unknown role %q", email, u.Role)
		}
		if existing, err := users.GetByEmail(ctx, email); err == nil {
			ids[email] = existing.ID
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return res, fmt.Errorf("look up %s: %w", email, err)
		}
		hash, err := utils.HashPassword(u.Password, bcryptCost)
		if err != nil {
			return res, fmt.Errorf("hash password for %s: %w", email, err)
		}
		username := u.Username
		if username == "" {
			username = strings.SplitN(email, "@", 2)[0]
		}
		id, err := users.Create(ctx, email, username, hash, role)
		if err != nil {
			return res, fmt.Errorf("create user %s: %w", email, err)
		}
		ids[email] = id
		res.Users++
	}

	for _, l := range f.Listings {
		owner, ok := ids[strings.ToLower(strings.TrimSpace(l.Owner))]
		if !ok {
			return res, fmt.Errorf("listing %q: owner %q is not in the fixture", l.Title, l.Owner)
		}
		listing := model.Listing{
			OwnerID:      owner,
			Title:        l.Title,
			Description:  l.Description,
			Location:     l.Location,
			Country:      l.Country,
			ImageURL:     l.ImageURL,
			NightlyPrice: l.NightlyPrice,
		}
		if err := store.CreateListing(ctx, &listing); err != nil {
			return res, fmt.Errorf("create listing %q: %w", l.Title, err)
		}
		res.Listings++
	}

	for _, c := range f.Coupons {
		cp := model.Coupon{
			Code:         model.NormalizeCode(c.Code),
			DiscountType: model.DiscountType(strings.ToLower(c.DiscountType)),
			Amount:       c.Amount,
			MaxUses:      c.MaxUses,
			ExpiresAt:    c.ExpiresAt,
			IsActive:     !c.Inactive,
		}
		if err := cp.Validate(); err != nil {
			return res, fmt.Errorf("coupon %s: %w", cp.Code, err)
		}
		if err := store.CreateCoupon(ctx, &cp); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				logger.WithField("code", cp.Code).Info("coupon exists, skipped")
				continue
			}
			return res, fmt.Errorf("create coupon %s: %w", cp.Code, err)
		}
		res.Coupons++
	}
	return res, nil
}
