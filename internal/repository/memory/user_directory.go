package memory

import (
	"context"
	"sync"
	"time"

	"life-auth/internal/models"
	"life-auth/internal/repository"
	"life-auth/internal/util"
)

type UserDirectory struct {
	mu      sync.RWMutex
	byID    map[string]models.User
	byPhone map[string]string // phone -> id
	now     repository.Clock
}

var _ repository.UserDirectory = (*UserDirectory)(nil)

func NewUserDirectory() *UserDirectory {
	return &UserDirectory{
		byID:    make(map[string]models.User),
		byPhone: make(map[string]string),
		now:     time.Now,
	}
}

func (d *UserDirectory) FindByPhone(_ context.Context, phoneNumber string) (*models.User, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	id, ok := d.byPhone[phoneNumber]
	if !ok {
		return nil, false, nil
	}
	u := d.byID[id]
	return &u, true, nil
}

func (d *UserDirectory) FindByID(_ context.Context, id string) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (d *UserDirectory) Create(_ context.Context, phoneNumber string) (*models.User, error) {
	now := d.now().UTC()
	u := models.User{
		ID:          repository.NewUserID(now),
		PhoneNumber: phoneNumber,
		CreatedAt:   now,
	}

	d.mu.Lock()
	d.byID[u.ID] = u
	d.byPhone[phoneNumber] = u.ID
	d.mu.Unlock()

	util.Info("User created",
		util.String("user_id", u.ID),
		util.Phone("phone_number", phoneNumber))
	return &u, nil
}

// Len reports the number of stored users.
func (d *UserDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}
