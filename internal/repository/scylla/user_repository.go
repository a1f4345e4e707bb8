package scylla

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"life-auth/internal/models"
	"life-auth/internal/repository"
	"life-auth/internal/util"
)

// UserRepository is the ScyllaDB-backed user directory. The phone number
// is claimed with a lightweight transaction so that server instances
// racing on a first login agree on one user.
type UserRepository struct {
	client *ScyllaClient
	now    repository.Clock
}

var (
	_ repository.UserDirectory = (*UserRepository)(nil)
	_ repository.HealthChecker = (*UserRepository)(nil)
)

var errIncompleteClaim = errors.New("incomplete users_by_phone row")

func NewUserRepository(client *ScyllaClient) *UserRepository {
	return &UserRepository{client: client, now: time.Now}
}

// Create writes the id row, then claims the phone number. When another
// writer already holds the number its user is returned and the new id row
// is removed.
func (r *UserRepository) Create(ctx context.Context, phoneNumber string) (*models.User, error) {
	now := r.now().UTC().Truncate(time.Millisecond)
	user := &models.User{
		ID:          repository.NewUserID(now),
		PhoneNumber: phoneNumber,
		CreatedAt:   now,
	}

	session := r.client.Session
	if err := session.Query(stmtInsertUserByID, user.ID, user.PhoneNumber, user.CreatedAt).WithContext(ctx).Exec(); err != nil {
		util.Error("Failed to create user",
			util.Phone("phone_number", phoneNumber),
			zap.String("user_id", user.ID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	existing := make(map[string]interface{})
	applied, err := session.Query(stmtClaimPhone, user.PhoneNumber, user.ID, user.CreatedAt).
		WithContext(ctx).MapScanCAS(existing)
	if err != nil {
		r.discard(ctx, user.ID)
		util.Error("Failed to claim phone number",
			util.Phone("phone_number", phoneNumber),
			zap.String("user_id", user.ID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if !applied {
		r.discard(ctx, user.ID)
		winner, err := userFromClaim(existing)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		util.Info("Phone number already claimed",
			zap.String("user_id", winner.ID),
			util.Phone("phone_number", phoneNumber))
		return winner, nil
	}

	util.Info("User created",
		zap.String("user_id", user.ID),
		util.Phone("phone_number", phoneNumber))
	return user, nil
}

// discard removes an id row whose phone claim failed.
func (r *UserRepository) discard(ctx context.Context, id string) {
	if err := r.client.Session.Query(stmtDeleteUserByID, id).WithContext(ctx).Exec(); err != nil {
		util.Warn("Failed to remove unclaimed user row", zap.String("user_id", id), zap.Error(err))
	}
}

// userFromClaim reads the row returned by a rejected IF NOT EXISTS.
func userFromClaim(existing map[string]interface{}) (*models.User, error) {
	id, _ := existing["user_id"].(string)
	phone, _ := existing["phone_number"].(string)
	createdAt, _ := existing["created_at"].(time.Time)
	if id == "" || phone == "" {
		return nil, errIncompleteClaim
	}
	return &models.User{ID: id, PhoneNumber: phone, CreatedAt: createdAt.UTC()}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := r.client.ScanWithRetry(ctx, r.client.Session.Query(stmtSelectUserByID, id),
		&user.ID, &user.PhoneNumber, &user.CreatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		util.Error("Failed to get user by ID", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByPhone(ctx context.Context, phoneNumber string) (*models.User, bool, error) {
	user := &models.User{}
	err := r.client.ScanWithRetry(ctx, r.client.Session.Query(stmtSelectUserByPhone, phoneNumber),
		&user.ID, &user.PhoneNumber, &user.CreatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		util.Error("Failed to get user by phone", util.Phone("phone_number", phoneNumber), zap.Error(err))
		return nil, false, fmt.Errorf("failed to get user by phone: %w", err)
	}
	return user, true, nil
}

func (r *UserRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}
