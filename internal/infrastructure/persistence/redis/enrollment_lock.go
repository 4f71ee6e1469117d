package redis

import (
	"context"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/classmark/classmark-hub/pkg/circuitbreaker"
	"github.com/classmark/classmark-hub/pkg/logger"
	"github.com/google/uuid"
)

// lockStore is the subset of Cache used by EnrollmentLocker.
type lockStore interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, token string) (bool, error)
}

// EnrollmentLocker implements enrollment.Locker with SET NX. Each holder
// writes a random token so a lock that expired and was taken by someone
// else is never released by the previous holder.
//
// The lock only narrows the window between the conflict check and the
// insert. When Redis cannot answer, Acquire proceeds unlocked and the
// enrollment constraints in Postgres still reject duplicates.
type EnrollmentLocker struct {
	store   lockStore
	breaker *circuitbreaker.Breaker
	ttl     time.Duration
	log     *logger.Logger
}

// NewEnrollmentLocker creates a locker.
func NewEnrollmentLocker(store lockStore, breaker *circuitbreaker.Breaker, ttl time.Duration, log *logger.Logger) *EnrollmentLocker {
	if ttl <= 0 {
		ttl = TTLEnrollmentLock
	}
	return &EnrollmentLocker{store: store, breaker: breaker, ttl: ttl, log: log}
}

func noRelease() {}

// Acquire takes the student's lock or fails with shared.ErrEnrollmentBusy.
// Only a held lock or a done ctx is reported as an error.
func (l *EnrollmentLocker) Acquire(ctx context.Context, studentID string) (func(), error) {
	key := EnrollmentLockKey(studentID)
	token := uuid.NewString()

	var ok bool
	err := l.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		ok, err = l.store.SetNX(ctx, key, token, l.ttl)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !rejected(err) {
			l.log.Warn("enrollment lock unavailable, proceeding unlocked", logger.StudentID(studentID), logger.Err(err))
		}
		return noRelease, nil
	}
	if !ok {
		return nil, shared.ErrEnrollmentBusy
	}

	release := func() {
		// The request context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if _, err := l.store.DeleteIfEquals(ctx, key, token); err != nil {
			l.log.Warn("failed to release enrollment lock", logger.StudentID(studentID), logger.Err(err))
		}
	}
	return release, nil
}
