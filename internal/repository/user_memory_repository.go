package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/supatable-api/internal/models"
)

// MemoryUserRepository keeps users in process memory. It is safe for concurrent use and is meant
// for tests and for running the service without a database. Rows keep their insertion order,
// which breaks ties between equal creation times.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  []models.User
	emails map[string]struct{}
}

// NewMemoryUserRepository builds a repository holding the given users.
func NewMemoryUserRepository(users ...models.User) (*MemoryUserRepository, error) {
	r := &MemoryUserRepository{emails: make(map[string]struct{})}
	for _, u := range users {
		if _, err := r.Add(u); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add stores a user, assigning an ID and creation time when missing. Emails must be unique.
func (r *MemoryUserRepository) Add(u models.User) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, exists := r.emails[key]; exists {
		return models.User{}, fmt.Errorf("add user: email %q already exists", u.Email)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	r.emails[key] = struct{}{}
	r.users = append(r.users, u)
	return u, nil
}

// List filters, orders by creation time descending and windows the stored users.
func (r *MemoryUserRepository) List(ctx context.Context, filter models.UserFilter) (*models.UserPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	filter = filter.Normalize()

	r.mu.RLock()
	matched := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		if filter.Matches(u) {
			matched = append(matched, u)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := &models.UserPage{Items: []models.User{}, TotalCount: len(matched)}
	if filter.Offset >= len(matched) {
		return page, nil
	}
	end := filter.Offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	page.Items = append(page.Items, matched[filter.Offset:end]...)
	return page, nil
}

// Ping always succeeds.
func (r *MemoryUserRepository) Ping(context.Context) error {
	return nil
}
