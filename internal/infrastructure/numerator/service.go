// Package numerator implements core/numerator.Generator on PostgreSQL
// (sys_sequences) and in process memory.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "shopfloor/internal/core/numerator"
)

// Querier is the subset of pgx used for sequence allocation.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierProvider resolves the querier for ctx, joining the caller's
// transaction when there is one. *postgres.TxManager satisfies it through
// an adapter in cmd/server.
type QuerierProvider func(ctx context.Context) Querier

type cachedRange struct {
	current int64
	max     int64
}

// Service allocates numbers from sys_sequences.
type Service struct {
	querier QuerierProvider

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a service bound to a fixed querier.
func New(q Querier) *Service {
	return NewWithProvider(func(context.Context) Querier { return q })
}

// NewWithProvider creates a service that resolves its querier per call.
func NewWithProvider(p QuerierProvider) *Service {
	return &Service{
		querier: p,
		ranges:  make(map[string]*cachedRange),
	}
}

// GetNextNumber implements corenumerator.Generator.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	key := BuildKey(cfg, period)

	var (
		num int64
		err error
	)
	switch opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.nextCached(ctx, key, opts.RangeSize)
	default:
		num, err = s.reserve(ctx, key, 1)
	}
	if err != nil {
		return "", err
	}

	return FormatNumber(cfg, period, num), nil
}

// reserve bumps the sequence by n and returns the new last value.
func (s *Service) reserve(ctx context.Context, key string, n int64) (int64, error) {
	var last int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
		RETURNING current_val
	`, key, n).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("reserve sequence %s: %w", key, err)
	}
	return last, nil
}

func (s *Service) nextCached(ctx context.Context, key string, size int64) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		if size <= 0 {
			size = 50
		}
		last, err := s.reserve(ctx, key, size)
		if err != nil {
			return 0, err
		}
		// Range is (last-size, last].
		rng.current = last - size
		rng.max = last
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber implements corenumerator.Generator.
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	key := BuildKey(cfg, period)

	var result int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, key, value).Scan(&result)

	s.cacheMu.Lock()
	delete(s.ranges, key)
	s.cacheMu.Unlock()

	if err != nil {
		return fmt.Errorf("set sequence %s: %w", key, err)
	}
	return nil
}

// BuildKey creates the sequence key for cfg and period.
func BuildKey(cfg corenumerator.Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

// FormatNumber renders num per cfg.
func FormatNumber(cfg corenumerator.Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// ParseNumber extracts the numeric part from a formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	i := strings.LastIndexByte(formatted, '-')
	if i < 0 {
		return -1
	}
	num, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil {
		return -1
	}
	return num
}
