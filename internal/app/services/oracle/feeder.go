package oracle

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/openlottery/gamemaster/pkg/logger"
)

// EntropyFeeder periodically feeds fresh entropy into a Source so long-lived
// deployments do not draw from a stale state.
type EntropyFeeder struct {
	source   Source
	interval time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEntropyFeeder creates a feeder. A non-positive interval defaults to one
// minute.
func NewEntropyFeeder(source Source, interval time.Duration, log *logger.Logger) *EntropyFeeder {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logger.NewDefault("entropy-feeder")
	}
	return &EntropyFeeder{source: source, interval: interval, log: log}
}

// Name implements system.Service.
func (f *EntropyFeeder) Name() string { return "entropy-feeder" }

// Start launches the feed loop.
func (f *EntropyFeeder) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.run(runCtx)
	return nil
}

// Stop halts the feed loop and waits for it to exit.
func (f *EntropyFeeder) Stop(ctx context.Context) error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel = nil
	f.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *EntropyFeeder) run(ctx context.Context) {
	defer close(f.done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.feedOnce(ctx)
		}
	}
}

func (f *EntropyFeeder) feedOnce(ctx context.Context) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		f.log.WithError(err).Error("entropy read failed")
		return
	}
	seed := int64(binary.BigEndian.Uint64(buf[:]))
	if err := f.source.Feed(ctx, seed); err != nil {
		f.log.WithError(err).Error("entropy feed failed")
	}
}
