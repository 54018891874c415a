// Package sharing records capability grants on files and folders.
//
// A grant targets exactly one node; folder grants are not inherited by the
// folder's contents.
package sharing

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"drive-service/internal/errs"
	"drive-service/internal/model/share"
)

// Resolver reports the owning account of a target, or ErrNotFound.
type Resolver interface {
	TargetOwner(target share.Target) (uuid.UUID, error)
}

type Directory struct {
	mu        sync.RWMutex
	resolver  Resolver
	grants    map[share.Target]map[uuid.UUID]share.Grant
	byGrantee map[uuid.UUID]map[share.Target]struct{}
	now       func() time.Time
}

func New(resolver Resolver) *Directory {
	return &Directory{
		resolver:  resolver,
		grants:    make(map[share.Target]map[uuid.UUID]share.Grant),
		byGrantee: make(map[uuid.UUID]map[share.Target]struct{}),
		now:       time.Now,
	}
}

// Grant upserts the grant of target to granteeID. It returns the grant it
// replaced, if any.
func (d *Directory) Grant(target share.Target, granteeID uuid.UUID, perm share.Permission) (*share.Grant, share.Grant, error) {
	if perm != share.PermissionView && perm != share.PermissionEdit {
		return nil, share.Grant{}, fmt.Errorf("permission %d: %w", perm, errs.ErrInvalidArgument)
	}
	owner, err := d.resolver.TargetOwner(target)
	if err != nil {
		return nil, share.Grant{}, err
	}
	if owner == granteeID {
		return nil, share.Grant{}, fmt.Errorf("sharing %s with its owner: %w", target, errs.ErrForbidden)
	}

	g := share.Grant{Target: target, GranteeID: granteeID, Permission: perm, GrantedAt: d.now()}

	d.mu.Lock()
	defer d.mu.Unlock()
	var prev *share.Grant
	if old, ok := d.grants[target][granteeID]; ok {
		prev = &old
	}
	d.putLocked(g)
	return prev, g, nil
}

// Revoke removes a grant. Revoking a grant that does not exist is not an
// error; the removed grant is returned when there was one.
func (d *Directory) Revoke(target share.Target, granteeID uuid.UUID) *share.Grant {
	d.mu.Lock()
	defer d.mu.Unlock()

	g, ok := d.grants[target][granteeID]
	if !ok {
		return nil
	}
	d.deleteLocked(g.Key())
	return &g
}

// Put stores g as is. It restores grants removed by a failed operation.
func (d *Directory) Put(g share.Grant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.putLocked(g)
}

func (d *Directory) ListGrants(target share.Target) ([]share.Grant, error) {
	if _, err := d.resolver.TargetOwner(target); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sorted(d.grants[target]), nil
}

// CanAccess is true when accountID owns target or holds a grant of at
// least required.
func (d *Directory) CanAccess(accountID uuid.UUID, target share.Target, required share.Permission) bool {
	owner, err := d.resolver.TargetOwner(target)
	if err != nil {
		return false
	}
	if owner == accountID {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.grants[target][accountID]
	return ok && g.Permission.Satisfies(required)
}

// SharedWith lists every grant held by granteeID, oldest first.
func (d *Directory) SharedWith(granteeID uuid.UUID) []share.Grant {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []share.Grant
	for target := range d.byGrantee[granteeID] {
		out = append(out, d.grants[target][granteeID])
	}
	sortGrants(out)
	return out
}

// Grants returns the grants on target without resolving it.
func (d *Directory) Grants(target share.Target) []share.Grant {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sorted(d.grants[target])
}

// DropTarget removes every grant on target and returns them.
func (d *Directory) DropTarget(target share.Target) []share.Grant {
	d.mu.Lock()
	defer d.mu.Unlock()

	dropped := sorted(d.grants[target])
	for _, g := range dropped {
		d.deleteLocked(g.Key())
	}
	return dropped
}

func (d *Directory) Restore(grants []share.Grant) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.grants) > 0 {
		return errors.New("restore into a non-empty sharing directory")
	}
	for _, g := range grants {
		if _, err := d.resolver.TargetOwner(g.Target); err != nil {
			return fmt.Errorf("grant on %s: %w", g.Target, err)
		}
		d.putLocked(g)
	}
	return nil
}

func (d *Directory) putLocked(g share.Grant) {
	if d.grants[g.Target] == nil {
		d.grants[g.Target] = make(map[uuid.UUID]share.Grant)
	}
	d.grants[g.Target][g.GranteeID] = g
	if d.byGrantee[g.GranteeID] == nil {
		d.byGrantee[g.GranteeID] = make(map[share.Target]struct{})
	}
	d.byGrantee[g.GranteeID][g.Target] = struct{}{}
}

func (d *Directory) deleteLocked(k share.Key) {
	delete(d.grants[k.Target], k.GranteeID)
	if len(d.grants[k.Target]) == 0 {
		delete(d.grants, k.Target)
	}
	delete(d.byGrantee[k.GranteeID], k.Target)
	if len(d.byGrantee[k.GranteeID]) == 0 {
		delete(d.byGrantee, k.GranteeID)
	}
}

func sorted(m map[uuid.UUID]share.Grant) []share.Grant {
	out := make([]share.Grant, 0, len(m))
	for _, g := range m {
		out = append(out, g)
	}
	sortGrants(out)
	return out
}

func sortGrants(gs []share.Grant) {
	slices.SortFunc(gs, func(a, b share.Grant) int {
		if c := a.GrantedAt.Compare(b.GrantedAt); c != 0 {
			return c
		}
		if c := slices.Compare(a.Target.ID[:], b.Target.ID[:]); c != 0 {
			return c
		}
		return slices.Compare(a.GranteeID[:], b.GranteeID[:])
	})
}
