package discover

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "lofterscraper/pkg/errors"
)

// lastValid builds a prober for a blog whose pages 1..last list posts.
func lastValid(last int) ProberFunc {
	return func(_ context.Context, page int) bool {
		return page >= 1 && page <= last
	}
}

func TestEndPageUnbounded(t *testing.T) {
	tests := []struct {
		name  string
		last  int
		start int
		want  int
	}{
		{"seven pages", 7, 1, 7},
		{"single page", 1, 1, 1},
		{"exactly seed span beyond start", 33, 1, 33},
		{"one past the seed", 34, 1, 34},
		{"many pages", 1000, 1, 1000},
		{"start in the middle", 500, 120, 500},
		{"start is last", 40, 40, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(lastValid(tt.last))
			end, err := d.EndPage(context.Background(), tt.start, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, end)
		})
	}
}

func TestEndPageBounded(t *testing.T) {
	t.Run("bound is valid after one probe", func(t *testing.T) {
		d := New(lastValid(100))
		end, err := d.EndPage(context.Background(), 1, 10)
		require.NoError(t, err)
		assert.Equal(t, 10, end)
		assert.Equal(t, 1, d.Probes())
	})

	t.Run("bound past the last page", func(t *testing.T) {
		d := New(lastValid(7))
		end, err := d.EndPage(context.Background(), 1, 160)
		require.NoError(t, err)
		assert.Equal(t, 7, end)
	})

	t.Run("bound offset by start", func(t *testing.T) {
		d := New(lastValid(30))
		end, err := d.EndPage(context.Background(), 5, 10)
		require.NoError(t, err)
		assert.Equal(t, 14, end)
	})

	t.Run("single page bound", func(t *testing.T) {
		d := New(lastValid(30))
		end, err := d.EndPage(context.Background(), 3, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, end)
	})
}

func TestEndPageInvalidStartIsFatal(t *testing.T) {
	for _, maxCount := range []int{0, 5} {
		d := New(lastValid(3))
		_, err := d.EndPage(context.Background(), 9, maxCount)
		require.Error(t, err)
		assert.True(t, apperrors.IsFatal(err))
	}

	_, err := New(lastValid(3)).EndPage(context.Background(), 0, 0)
	assert.True(t, apperrors.IsFatal(err))

	_, err = New(lastValid(3)).EndPage(context.Background(), 1, -1)
	assert.True(t, apperrors.IsFatal(err))
}

func TestEndPageNoValidPages(t *testing.T) {
	d := New(lastValid(0))
	_, err := d.EndPage(context.Background(), 1, 0)
	assert.True(t, apperrors.IsFatal(err))
}

func TestEndPageProbeCountIsLogarithmic(t *testing.T) {
	for _, last := range []int{7, 100, 1000, 5000} {
		d := New(lastValid(last))
		end, err := d.EndPage(context.Background(), 1, 0)
		require.NoError(t, err)
		require.Equal(t, last, end)

		bound := 2*int(math.Ceil(math.Log2(float64(last+DefaultSeedSpan)))) + 2
		assert.LessOrEqualf(t, d.Probes(), bound, "last page %d", last)
	}
}

func TestEndPageCeiling(t *testing.T) {
	d := New(lastValid(10000), WithCeiling(200), WithSeedSpan(8))
	end, err := d.EndPage(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 200, end)
}

func TestEndPageSeedSpan(t *testing.T) {
	d := New(lastValid(3), WithSeedSpan(2))
	end, err := d.EndPage(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, end)
}

func TestEndPageFetchErrorsCountAsInvalid(t *testing.T) {
	// Page 6 fails to fetch; the search treats it as the end boundary.
	flaky := ProberFunc(func(_ context.Context, page int) bool {
		return page >= 1 && page <= 20 && page != 6
	})
	d := New(flaky, WithSeedSpan(5))
	end, err := d.EndPage(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, end)
}
