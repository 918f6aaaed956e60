package notify

import (
	"fmt"

	"github.com/rosevale/habitloop/internal/model"
	"github.com/rosevale/habitloop/internal/store"
)

// PermissionStore reads and grants a user's push permission.
type PermissionStore interface {
	// Permission returns "default", "granted" or "denied".
	Permission(userID int64) (string, error)
	// Grant attempts to grant permission and reports whether it is now
	// granted.
	Grant(userID int64) (bool, error)
}

// StorePermissions derives permission state from the user record and
// the user's registered push subscriptions: an explicit denial wins, an
// explicit grant or at least one subscription means granted, anything
// else is the default undecided state.
type StorePermissions struct {
	users  *store.UserStore
	pushes *store.PushStore
}

func NewStorePermissions(users *store.UserStore, pushes *store.PushStore) *StorePermissions {
	return &StorePermissions{users: users, pushes: pushes}
}

func (p *StorePermissions) Permission(userID int64) (string, error) {
	state, err := p.users.PushPermission(userID)
	if err != nil {
		return "", fmt.Errorf("read push permission: %w", err)
	}
	switch state {
	case model.PushPermissionDenied:
		return model.PushPermissionDenied, nil
	case model.PushPermissionGranted:
		return model.PushPermissionGranted, nil
	}
	count, err := p.pushes.CountByUser(userID)
	if err != nil {
		return "", fmt.Errorf("count push subscriptions: %w", err)
	}
	if count > 0 {
		return model.PushPermissionGranted, nil
	}
	return model.PushPermissionDefault, nil
}

// Grant succeeds only when the user has a registered push subscription
// to deliver to and has not explicitly denied.
func (p *StorePermissions) Grant(userID int64) (bool, error) {
	state, err := p.users.PushPermission(userID)
	if err != nil {
		return false, fmt.Errorf("read push permission: %w", err)
	}
	if state == model.PushPermissionDenied {
		return false, nil
	}
	count, err := p.pushes.CountByUser(userID)
	if err != nil {
		return false, fmt.Errorf("count push subscriptions: %w", err)
	}
	if count == 0 {
		return false, nil
	}
	if err := p.users.SetPushPermission(userID, model.PushPermissionGranted); err != nil {
		return false, fmt.Errorf("store push permission: %w", err)
	}
	return true, nil
}
