package numerator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "shopfloor/internal/core/numerator"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if ptr, ok := dest[0].(*int64); ok {
		*ptr = m.val
	}
	return nil
}

// mockQuerier simulates sys_sequences for a single key.
type mockQuerier struct {
	mu    sync.Mutex
	value int64
	calls int
	err   error
}

func (m *mockQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return &mockRow{err: m.err}
	}
	n := args[1].(int64)
	if strings.Contains(sql, "current_val = $2\n") {
		m.value = n
	} else {
		m.value += n
	}
	return &mockRow{val: m.value}
}

var period = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := corenumerator.DefaultConfig(corenumerator.PrefixReport)

	num, err := svc.GetNextNumber(context.Background(), cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "RPT-2026-00001", num)

	num, err = svc.GetNextNumber(context.Background(), cfg, nil, period)
	require.NoError(t, err)
	assert.Equal(t, "RPT-2026-00002", num)
	assert.Equal(t, 2, q.calls)
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := corenumerator.DefaultConfig(corenumerator.PrefixOrder)
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}
	ctx := context.Background()

	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-00001", num)
	assert.Equal(t, int64(10), q.value)

	for i := 0; i < 9; i++ {
		_, err = svc.GetNextNumber(ctx, cfg, opts, period)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, q.calls, "range served from memory")

	num, err = svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-00011", num)
	assert.Equal(t, int64(20), q.value)
}

func TestSetNextNumber_InvalidatesCache(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	cfg := corenumerator.DefaultConfig(corenumerator.PrefixOrder)
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}
	ctx := context.Background()

	_, err := svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)

	require.NoError(t, svc.SetNextNumber(ctx, cfg, period, 100))

	num, err := svc.GetNextNumber(ctx, cfg, opts, period)
	require.NoError(t, err)
	assert.Equal(t, "ORD-2026-00101", num)
}

func TestGetNextNumber_Error(t *testing.T) {
	svc := New(&mockQuerier{err: errors.New("connection refused")})

	_, err := svc.GetNextNumber(context.Background(), corenumerator.DefaultConfig("RPT"), nil, period)
	assert.ErrorContains(t, err, "reserve sequence RPT_2026")
}

func TestMemoryGenerator(t *testing.T) {
	gen := NewMemory()
	cfg := corenumerator.DefaultConfig(corenumerator.PrefixReport)
	ctx := context.Background()

	a, _ := gen.GetNextNumber(ctx, cfg, nil, period)
	b, _ := gen.GetNextNumber(ctx, cfg, nil, period)
	assert.Equal(t, "RPT-2026-00001", a)
	assert.Equal(t, "RPT-2026-00002", b)

	next, _ := gen.GetNextNumber(ctx, cfg, nil, period.AddDate(1, 0, 0))
	assert.Equal(t, "RPT-2027-00001", next)
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, int64(42), ParseNumber("RPT-2026-00042"))
	assert.Equal(t, int64(7), ParseNumber("ORD-00007"))
	assert.Equal(t, int64(-1), ParseNumber("garbage"))
}
