// Package oracle supplies the randomness used to draw winners. The service
// keeps a hash-chained state: reads return the current value, feeds fold new
// entropy into the chain.
package oracle

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"

	"github.com/openlottery/gamemaster/internal/app/events"
	"github.com/openlottery/gamemaster/pkg/logger"
)

// Source produces randomness for settlements.
type Source interface {
	// Rand returns the current randomness value without advancing the state.
	Rand(ctx context.Context) (*big.Int, error)
	// Feed folds a seed into the randomness state.
	Feed(ctx context.Context, seed int64) error
}

// Service is a Source backed by a sha256 hash chain.
type Service struct {
	mu     sync.Mutex
	state  [32]byte
	events events.Log
	log    *logger.Logger
}

// New creates a Service with its state initialized from crypto/rand.
func New(eventLog events.Log, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NewDefault("oracle")
	}
	if eventLog == nil {
		eventLog = events.NoOp{}
	}

	s := &Service{events: eventLog, log: log}
	if _, err := rand.Read(s.state[:]); err != nil {
		return nil, fmt.Errorf("seed oracle: %w", err)
	}
	return s, nil
}

// Rand returns the randomness value derived from the current state.
func (s *Service) Rand(ctx context.Context) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).SetBytes(s.state[:]), nil
}

// Feed mixes the seed into the state. Every feed changes subsequent Rand
// results regardless of the seed value.
func (s *Service) Feed(ctx context.Context, seed int64) error {
	s.mu.Lock()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(seed))
	s.state = sha256.Sum256(append(s.state[:], buf[:]...))
	s.mu.Unlock()

	s.events.Publish(events.Event{Type: events.OracleSeeded})
	s.log.Debug("oracle state advanced")
	return nil
}

// Fixed is a deterministic Source for tests.
type Fixed struct {
	Value *big.Int
}

// Rand returns the fixed value.
func (f *Fixed) Rand(ctx context.Context) (*big.Int, error) {
	if f.Value == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(f.Value), nil
}

// Feed replaces the fixed value with the seed.
func (f *Fixed) Feed(ctx context.Context, seed int64) error {
	f.Value = big.NewInt(seed)
	return nil
}
