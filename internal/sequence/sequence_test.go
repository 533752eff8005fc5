package sequence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	last map[string]string
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{last: make(map[string]string)}
}

func (s *memoryStore) key(class Class, prefix string) string {
	return string(class) + "/" + prefix
}

func (s *memoryStore) LastNumber(ctx context.Context, class Class, prefix string) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	last, ok := s.last[s.key(class, prefix)]
	return last, ok, nil
}

func (s *memoryStore) SaveLast(ctx context.Context, class Class, prefix, number string) error {
	if s.err != nil {
		return s.err
	}
	s.last[s.key(class, prefix)] = number
	return nil
}

func TestNextStartsSeriesAtOne(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	number, err := Next(ctx, store, ClassInvoice, "INV")
	require.NoError(t, err)
	require.Equal(t, "INV-00001", number)
}

func TestNextIsGaplessAndIncreasing(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	for i := 0; i < 12; i++ {
		number, err := Next(ctx, store, ClassInvoice, "INV")
		require.NoError(t, err)
		require.Equal(t, Format("INV", i+1), number)
	}
}

func TestSeriesAreIndependentPerClassAndPrefix(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	require.NoError(t, store.SaveLast(ctx, ClassInvoice, "INV", "INV-00042"))

	number, err := Next(ctx, store, ClassInvoice, "INV")
	require.NoError(t, err)
	require.Equal(t, "INV-00043", number)

	number, err = Next(ctx, store, ClassDyeingBill, "DYE")
	require.NoError(t, err)
	require.Equal(t, "DYE-00001", number)
}

func TestNextGrowsBeyondPaddingWidth(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	require.NoError(t, store.SaveLast(ctx, ClassInvoice, "INV", "INV-99999"))

	number, err := Next(ctx, store, ClassInvoice, "INV")
	require.NoError(t, err)
	require.Equal(t, "INV-100000", number)
}

func TestNextFailsOnCorruptedLastNumber(t *testing.T) {
	ctx := context.Background()
	cases := []string{
		"INV00001",    // missing dash
		"OLD-00001",   // different prefix
		"INV-ABCDE",   // non-numeric suffix
		"INV-00000",   // zero is never issued
		"INV--00001",  // double dash
		"INV-000-001", // embedded dash
	}
	for _, last := range cases {
		store := newMemoryStore()
		require.NoError(t, store.SaveLast(ctx, ClassInvoice, "INV", last))

		_, err := Next(ctx, store, ClassInvoice, "INV")
		require.ErrorIs(t, err, ErrCorruption, "last %q", last)

		// A failed allocation must not advance the series.
		saved, _, readErr := store.LastNumber(ctx, ClassInvoice, "INV")
		require.NoError(t, readErr)
		require.Equal(t, last, saved)
	}
}

func TestNextPropagatesStoreError(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	store.err = context.DeadlineExceeded

	_, err := Next(ctx, store, ClassInvoice, "INV")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotErrorIs(t, err, ErrCorruption)
}

func TestParse(t *testing.T) {
	n, err := Parse("INV", "INV-00007")
	require.NoError(t, err)
	require.Equal(t, 7, n)

	_, err = Parse("INV", "DYE-00007")
	require.ErrorIs(t, err, ErrCorruption)
}
