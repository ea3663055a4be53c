package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"estirar/internal/app"
	"estirar/internal/domain/notification"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"
)

// ErrCycleInProgress is returned when another tick holds the cycle lock.
var ErrCycleInProgress = errors.New("a cycle run is already in progress")

// Cycler is the part of app.CycleService the runner drives.
type Cycler interface {
	Tick(ctx context.Context) (*app.CycleResult, error)
	RunMode(ctx context.Context, mode notification.CycleMode) (*app.CycleResult, error)
}

// CycleRunner serializes cycle runs. The mutex covers goroutines of this process
// (cron, HTTP, Telegram), the file lock covers other processes such as the CLI.
type CycleRunner struct {
	cycler  Cycler
	mu      sync.Mutex
	lock    *flock.Flock
	timeout time.Duration
	logger  *logrus.Entry
}

func NewCycleRunner(cycler Cycler, lockPath string, timeout time.Duration, logger *logrus.Entry) *CycleRunner {
	return &CycleRunner{
		cycler:  cycler,
		lock:    flock.New(lockPath),
		timeout: timeout,
		logger:  logger,
	}
}

// Tick runs the calendar-selected mode under the lock.
func (r *CycleRunner) Tick(ctx context.Context) (*app.CycleResult, error) {
	return r.exclusive(ctx, r.cycler.Tick)
}

// RunMode runs an explicit mode under the lock.
func (r *CycleRunner) RunMode(ctx context.Context, mode notification.CycleMode) (*app.CycleResult, error) {
	return r.exclusive(ctx, func(ctx context.Context) (*app.CycleResult, error) {
		return r.cycler.RunMode(ctx, mode)
	})
}

func (r *CycleRunner) exclusive(ctx context.Context, run func(context.Context) (*app.CycleResult, error)) (*app.CycleResult, error) {
	if !r.mu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer r.mu.Unlock()

	locked, err := r.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire cycle lock %s: %w", r.lock.Path(), err)
	}
	if !locked {
		return nil, ErrCycleInProgress
	}
	defer func() {
		if err := r.lock.Unlock(); err != nil {
			r.logger.WithError(err).Warn("Failed to release cycle lock")
		}
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return run(ctx)
}
