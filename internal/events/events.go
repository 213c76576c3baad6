// Package events delivers vault Deposit and Withdraw records downstream.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"

	"github.com/congo-pay/sharevault/internal/asset"
)

const (
	// KindDeposit is emitted once per successful deposit.
	KindDeposit = "deposit"
	// KindWithdraw is emitted once per successful redeem.
	KindWithdraw = "withdraw"
)

// Record is a single vault event. Receiver is empty for deposits, where Owner
// is the share receiver.
type Record struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Caller   common.Address `json:"caller"`
	Receiver common.Address `json:"receiver"`
	Owner    common.Address `json:"owner"`
	Asset    asset.ID       `json:"asset"`
	Amount   sdkmath.Uint   `json:"amount"`
	Shares   sdkmath.Uint   `json:"shares"`
	At       time.Time      `json:"at"`
}

// Emitter delivers committed records.
type Emitter interface {
	Emit(ctx context.Context, records ...Record) error
}

// LogEmitter writes records to the structured logger.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter constructs a logging emitter.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger}
}

// Emit logs each record at info level.
func (e *LogEmitter) Emit(_ context.Context, records ...Record) error {
	if e == nil || e.logger == nil {
		return nil
	}
	for _, r := range records {
		e.logger.Info("vault event",
			slog.String("id", r.ID),
			slog.String("kind", r.Kind),
			slog.String("asset", r.Asset.String()),
			slog.String("caller", r.Caller.Hex()),
			slog.String("owner", r.Owner.Hex()),
			slog.String("amount", r.Amount.String()),
			slog.String("shares", r.Shares.String()),
		)
	}
	return nil
}

// Fanout delivers to every emitter and returns the first error.
type Fanout []Emitter

// Emit forwards records to all emitters.
func (f Fanout) Emit(ctx context.Context, records ...Record) error {
	var first error
	for _, e := range f {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, records...); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Recorder keeps records in memory. Useful for tests.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// Emit appends records.
func (r *Recorder) Emit(_ context.Context, records ...Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return nil
}

// Records returns a copy of everything emitted so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}
