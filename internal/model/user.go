package model

import "time"

// Push permission states mirrored from the client runtime.
const (
	PushPermissionDefault = "default"
	PushPermissionGranted = "granted"
	PushPermissionDenied  = "denied"
)

type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	PushPermission string    `json:"push_permission"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
