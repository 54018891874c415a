package quotaLedger_test

import (
	"context"
	"sync"
	"testing"

	"drive-service/internal/errs"
	"drive-service/internal/service/quotaLedger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLedger(t *testing.T) *quotaLedger.Redis {
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	return quotaLedger.NewRedis(cli)
}

func backends(t *testing.T) map[string]quotaLedger.Ledger {
	return map[string]quotaLedger.Ledger{
		"memory": quotaLedger.NewMemory(),
		"redis":  newRedisLedger(t),
	}
}

func TestLedger_ReserveAndRelease(t *testing.T) {
	for name, ledger := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			acct := uuid.New()
			require.NoError(t, ledger.Open(ctx, acct, 1000, 0))

			require.NoError(t, ledger.Reserve(ctx, acct, 600))
			require.NoError(t, ledger.Reserve(ctx, acct, 400))
			assert.ErrorIs(t, ledger.Reserve(ctx, acct, 1), errs.ErrQuotaExceeded)

			u, err := ledger.Usage(ctx, acct)
			require.NoError(t, err)
			assert.Equal(t, quotaLedger.Usage{BytesUsed: 1000, QuotaLimit: 1000}, u)
			assert.Equal(t, int64(0), u.Available())

			require.NoError(t, ledger.Release(ctx, acct, 400))
			u, _ = ledger.Usage(ctx, acct)
			assert.Equal(t, int64(600), u.BytesUsed)

			// Floored at zero.
			require.NoError(t, ledger.Release(ctx, acct, 5000))
			u, _ = ledger.Usage(ctx, acct)
			assert.Equal(t, int64(0), u.BytesUsed)
		})
	}
}

func TestLedger_Errors(t *testing.T) {
	for name, ledger := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			acct := uuid.New()

			assert.ErrorIs(t, ledger.Reserve(ctx, acct, 1), errs.ErrNotFound)
			assert.ErrorIs(t, ledger.Release(ctx, acct, 1), errs.ErrNotFound)
			assert.ErrorIs(t, ledger.SetLimit(ctx, acct, 1), errs.ErrNotFound)
			_, err := ledger.Usage(ctx, acct)
			assert.ErrorIs(t, err, errs.ErrNotFound)

			require.NoError(t, ledger.Open(ctx, acct, 10, 0))
			assert.ErrorIs(t, ledger.Reserve(ctx, acct, -1), errs.ErrInvalidArgument)
			assert.ErrorIs(t, ledger.Release(ctx, acct, -1), errs.ErrInvalidArgument)

			require.NoError(t, ledger.Close(ctx, acct))
			assert.ErrorIs(t, ledger.Reserve(ctx, acct, 1), errs.ErrNotFound)
		})
	}
}

func TestLedger_SetLimitBelowUsage(t *testing.T) {
	for name, ledger := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			acct := uuid.New()
			require.NoError(t, ledger.Open(ctx, acct, 1000, 800))

			require.NoError(t, ledger.SetLimit(ctx, acct, 500))
			assert.ErrorIs(t, ledger.Reserve(ctx, acct, 1), errs.ErrQuotaExceeded)
			assert.ErrorIs(t, ledger.Reserve(ctx, acct, 0), errs.ErrQuotaExceeded)

			u, err := ledger.Usage(ctx, acct)
			require.NoError(t, err)
			assert.Equal(t, int64(800), u.BytesUsed)
			assert.Equal(t, int64(0), u.Available())
		})
	}
}

func TestLedger_NoOverAdmission(t *testing.T) {
	const (
		n    = 16
		size = int64(1024)
	)
	for name, ledger := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			acct := uuid.New()
			require.NoError(t, ledger.Open(ctx, acct, (n-1)*size, 0))

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				ok, full int
			)
			start := make(chan struct{})
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					err := ledger.Reserve(ctx, acct, size)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						ok++
					case assert.ErrorIs(t, err, errs.ErrQuotaExceeded):
						full++
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, n-1, ok)
			assert.Equal(t, 1, full)
			u, err := ledger.Usage(ctx, acct)
			require.NoError(t, err)
			assert.Equal(t, (n-1)*size, u.BytesUsed)
		})
	}
}
