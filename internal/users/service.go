// Package users exposes the user directory: lookups for reference
// resolution plus the small amount of profile administration the API
// surface needs.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskboard/api/internal/rbac"
	"taskboard/api/internal/store"
)

var ErrNotFound = errors.New("user not found")

type Store interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	ListUsers(ctx context.Context) ([]store.User, error)
	UpdateUserDisplayName(ctx context.Context, userID, displayName string) error
	UpdateUserRole(ctx context.Context, userID, role string) error
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// FindByID reports sql.ErrNoRows for misses so callers can decide how a
// missing user surfaces on their own boundary.
func (s *Service) FindByID(ctx context.Context, userID string) (store.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

func (s *Service) FindByEmail(ctx context.Context, email string) (store.User, error) {
	return s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// GetByID is FindByID with the miss translated for the API surface.
func (s *Service) GetByID(ctx context.Context, userID string) (store.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.User{}, ErrNotFound
	}
	if err != nil {
		return store.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *Service) List(ctx context.Context) ([]store.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) UpdateDisplayName(ctx context.Context, userID, displayName string) (store.User, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return store.User{}, errors.New("display name is required")
	}
	if _, err := s.GetByID(ctx, userID); err != nil {
		return store.User{}, err
	}
	if err := s.store.UpdateUserDisplayName(ctx, userID, displayName); err != nil {
		return store.User{}, err
	}
	return s.GetByID(ctx, userID)
}

func (s *Service) UpdateRole(ctx context.Context, userID, role string) (store.User, error) {
	normalized := strings.ToUpper(strings.TrimSpace(role))
	if normalized != string(rbac.RoleUser) && normalized != string(rbac.RoleAdmin) {
		return store.User{}, errors.New("invalid role")
	}
	if _, err := s.GetByID(ctx, userID); err != nil {
		return store.User{}, err
	}
	if err := s.store.UpdateUserRole(ctx, userID, normalized); err != nil {
		return store.User{}, err
	}
	return s.GetByID(ctx, userID)
}
