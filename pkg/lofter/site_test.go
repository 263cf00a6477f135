package lofter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "lofterscraper/pkg/errors"
)

func TestPageURL(t *testing.T) {
	site := NewSite("", "")

	first, err := site.PageURL("someblog", 1)
	require.NoError(t, err)
	assert.Equal(t, "http://someblog.lofter.com/", first)

	third, err := site.PageURL("someblog", 3)
	require.NoError(t, err)
	assert.Equal(t, "http://someblog.lofter.com/?page=3", third)

	_, err = site.PageURL("someblog", 0)
	assert.True(t, apperrors.IsFatal(err))
}

func TestPostPrefix(t *testing.T) {
	site := NewSite("https", "example.org")
	assert.Equal(t, "https://someblog.example.org/post", site.PostPrefix("someblog"))
	assert.Equal(t, "https://someblog.example.org/", site.HomeURL("someblog"))
}

func TestResolve(t *testing.T) {
	site := NewSite("http", "lofter.com")

	tests := []struct {
		name   string
		raw    string
		domain string
		post   string
	}{
		{"bare token", "someblog", "someblog", ""},
		{"host", "someblog.lofter.com", "someblog", ""},
		{"address", "https://someblog.lofter.com/", "someblog", ""},
		{"listing page", "http://someblog.lofter.com/?page=4", "someblog", ""},
		{"upper case host", "HTTP://SomeBlog.LOFTER.com", "someblog", ""},
		{"post", "https://someblog.lofter.com/post/1d2f3a_9b8c7d", "someblog", "http://someblog.lofter.com/post/1d2f3a_9b8c7d"},
		{"post without scheme", "someblog.lofter.com/post/abc_def#comments", "someblog", "http://someblog.lofter.com/post/abc_def"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := site.Resolve(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.domain, target.Domain)
			assert.Equal(t, tt.post, target.Post)
			assert.Equal(t, tt.post != "", target.IsPost())
		})
	}
}

func TestResolveRejectsUnusableInput(t *testing.T) {
	site := NewSite("http", "lofter.com")

	for _, raw := range []string{"", "   ", "http://", "-bad.lofter.com", "some_blog"} {
		_, err := site.Resolve(raw)
		assert.Truef(t, apperrors.IsFatal(err), "input %q", raw)
	}
}
