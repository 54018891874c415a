package share

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"drive-service/internal/errs"
)

type TargetKind string

const (
	KindFile   TargetKind = "file"
	KindFolder TargetKind = "folder"
)

func ParseKind(s string) (TargetKind, error) {
	switch TargetKind(s) {
	case KindFile, KindFolder:
		return TargetKind(s), nil
	}
	return "", fmt.Errorf("unknown target kind %q: %w", s, errs.ErrInvalidArgument)
}

// Permission is ordered: edit includes view.
type Permission int

const (
	PermissionNone Permission = iota
	PermissionView
	PermissionEdit
)

func (p Permission) String() string {
	switch p {
	case PermissionView:
		return "view"
	case PermissionEdit:
		return "edit"
	}
	return "none"
}

func ParsePermission(s string) (Permission, error) {
	switch s {
	case "view":
		return PermissionView, nil
	case "edit":
		return PermissionEdit, nil
	}
	return PermissionNone, fmt.Errorf("unknown permission %q: %w", s, errs.ErrInvalidArgument)
}

// Satisfies reports whether p grants at least required.
func (p Permission) Satisfies(required Permission) bool {
	return required != PermissionNone && p >= required
}

type Target struct {
	Kind TargetKind `json:"kind"`
	ID   uuid.UUID  `json:"id"`
}

func (t Target) String() string {
	return fmt.Sprintf("%s %s", t.Kind, t.ID)
}

type Grant struct {
	Target     Target     `json:"target"`
	GranteeID  uuid.UUID  `json:"grantee_id"`
	Permission Permission `json:"permission"`
	GrantedAt  time.Time  `json:"granted_at"`
}

// Key identifies a grant; there is at most one grant per key.
type Key struct {
	Target    Target
	GranteeID uuid.UUID
}

func (g Grant) Key() Key {
	return Key{Target: g.Target, GranteeID: g.GranteeID}
}
