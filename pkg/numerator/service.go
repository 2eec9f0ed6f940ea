// Package numerator provides document auto-numbering.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses UPSERT ... RETURNING for every number.
	// Guarantees sequential numbers without gaps. Suitable for receipts
	// and accounting documents.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory. Much faster,
	// but may produce gaps if the application restarts. Suitable for
	// internal documents.
	StrategyCached
)

// Sequence identifies one numbered document series.
type Sequence struct {
	// Prefix added to all numbers (e.g. "POS", "TRF")
	Prefix string
	// PadWidth is the minimum number width (default 5)
	PadWidth int
	Strategy Strategy
	// RangeSize is how many numbers StrategyCached reserves at once.
	RangeSize int64
}

// SaleSequence numbers sale receipts: POS-2026-00001.
var SaleSequence = Sequence{Prefix: "POS", Strategy: StrategyStrict}

// TransferSequence numbers stock transfers.
var TransferSequence = Sequence{Prefix: "TRF", Strategy: StrategyCached}

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service hands out document numbers. Numbers reset yearly.
type Service struct {
	querier Querier

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

func New(querier Querier) *Service {
	return &Service{
		querier: querier,
		ranges:  make(map[string]*cachedRange),
	}
}

// Next generates the next number in the sequence for the current period.
// Pattern: PREFIX-YEAR-XXXXX (e.g. POS-2026-00001).
func (s *Service) Next(ctx context.Context, seq Sequence) (string, error) {
	return s.NextAt(ctx, seq, time.Now().UTC())
}

// NextAt generates the next number for an explicit period.
func (s *Service) NextAt(ctx context.Context, seq Sequence, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	key := buildKey(seq, period)

	var (
		num int64
		err error
	)
	switch seq.Strategy {
	case StrategyCached:
		num, err = s.nextCached(ctx, key, seq.RangeSize)
	default:
		num, err = s.nextStrict(ctx, key)
	}
	if err != nil {
		return "", err
	}
	return formatNumber(seq, period, num), nil
}

// nextStrict fetches the next number directly from the store using
// UPSERT + RETURNING. current_val is the last value handed out.
func (s *Service) nextStrict(ctx context.Context, key string) (int64, error) {
	var num int64
	err := s.querier.QueryRow(ctx, `
        INSERT INTO sys_sequences (key, current_val)
        VALUES ($1, 1)
        ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
        RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next: %w", err)
	}
	return num, nil
}

// nextCached hands out numbers from a reserved in-memory range, refilling
// from the store when the range is exhausted.
func (s *Service) nextCached(ctx context.Context, key string, rangeSize int64) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, exists := s.ranges[key]
	if !exists {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		size := rangeSize
		if size <= 0 {
			size = 50
		}

		// Bump current_val by the whole range size; the reserved range is
		// (newMax - size, newMax].
		var newMax int64
		err := s.querier.QueryRow(ctx, `
            INSERT INTO sys_sequences (key, current_val)
            VALUES ($1, $2)
            ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
            RETURNING current_val
		`, key, size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}

		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNext seeds the sequence so the next number handed out is value
// (migration helper).
func (s *Service) SetNext(ctx context.Context, seq Sequence, period time.Time, value int64) error {
	key := buildKey(seq, period)
	var result int64
	err := s.querier.QueryRow(ctx, `
        INSERT INTO sys_sequences (key, current_val)
        VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET current_val = $2
        RETURNING current_val
	`, key, value-1).Scan(&result)
	if err != nil {
		return fmt.Errorf("set next: %w", err)
	}
	return nil
}

func buildKey(seq Sequence, period time.Time) string {
	return fmt.Sprintf("%s_%d", seq.Prefix, period.Year())
}

func formatNumber(seq Sequence, period time.Time, num int64) string {
	width := seq.PadWidth
	if width <= 0 {
		width = 5
	}
	return fmt.Sprintf("%s-%d-%0*d", seq.Prefix, period.Year(), width, num)
}
