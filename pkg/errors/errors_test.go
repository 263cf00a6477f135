package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"fatal", Fatal("resolve", "bad domain %q", "x y"), KindFatalInput},
		{"fetch", Fetch("http://a", 500, nil), KindTransientFetch},
		{"download", Download("http://a", 0, errors.New("timeout")), KindTransientDownload},
		{"wrapped", fmt.Errorf("outer: %w", Fatal("op", "inner")), KindFatalInput},
		{"plain", errors.New("plain"), ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(Fatal("discover", "start page %d is invalid", 3)))
	assert.False(t, IsFatal(Fetch("http://a", 404, nil)))
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Download("http://img.example/a.jpg", 503, cause)

	assert.Contains(t, err.Error(), "download")
	assert.Contains(t, err.Error(), "http://img.example/a.jpg")
	assert.Contains(t, err.Error(), "503")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 503, StatusCode(err))
	assert.Equal(t, 0, StatusCode(cause))
}

func TestIsSuccessStatus(t *testing.T) {
	assert.True(t, IsSuccessStatus(200))
	assert.True(t, IsSuccessStatus(204))
	assert.False(t, IsSuccessStatus(304))
	assert.False(t, IsSuccessStatus(404))
	assert.False(t, IsSuccessStatus(0))
}

func TestUnavailable(t *testing.T) {
	last := Download("http://img.example/a.jpg", 503, errors.New("unexpected status 503"))
	err := Unavailable("http://img.example/a.jpg", last)

	assert.Equal(t, KindPermanentUnavailable, KindOf(err))
	assert.Equal(t, 503, StatusCode(err))
	assert.False(t, IsFatal(err))
	assert.ErrorIs(t, err, last)

	noStatus := Unavailable("http://img.example/b.jpg", errors.New("connection reset"))
	assert.Equal(t, 0, StatusCode(noStatus))
}
