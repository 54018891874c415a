// Package quotaLedger tracks bytes consumed per account and enforces the
// upload ceiling. Reserve and Release are the only way bytes_used changes.
package quotaLedger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"drive-service/internal/errs"
)

type Usage struct {
	BytesUsed  int64 `json:"bytes_used"`
	QuotaLimit int64 `json:"quota_limit"`
}

// Available is the number of bytes that can still be reserved.
func (u Usage) Available() int64 {
	return max(u.QuotaLimit-u.BytesUsed, 0)
}

type Ledger interface {
	// Open registers an account with its limit and current usage. Opening an
	// account twice overwrites both values.
	Open(ctx context.Context, accountID uuid.UUID, limit, used int64) error
	// Reserve atomically checks used+size <= limit and charges size.
	Reserve(ctx context.Context, accountID uuid.UUID, size int64) error
	// Release returns size bytes, flooring usage at zero.
	Release(ctx context.Context, accountID uuid.UUID, size int64) error
	Usage(ctx context.Context, accountID uuid.UUID) (Usage, error)
	SetLimit(ctx context.Context, accountID uuid.UUID, limit int64) error
	Close(ctx context.Context, accountID uuid.UUID) error
}

func checkSize(size int64) error {
	if size < 0 {
		return fmt.Errorf("negative size %d: %w", size, errs.ErrInvalidArgument)
	}
	return nil
}

func quotaExceeded(accountID uuid.UUID, size int64) error {
	return fmt.Errorf("account %s cannot reserve %d bytes: %w", accountID, size, errs.ErrQuotaExceeded)
}

func unknownAccount(accountID uuid.UUID) error {
	return fmt.Errorf("quota account %s: %w", accountID, errs.ErrNotFound)
}
