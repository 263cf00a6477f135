package failurelog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathFor(t *testing.T) {
	path := PathFor("out", "someblog")
	assert.Equal(t, filepath.Join("out", "someblog_failed.txt"), path)
	assert.Equal(t, "someblog", DomainFromPath(path))
	assert.Equal(t, "", DomainFromPath("links.txt"))
}

func TestWriteAndRead(t *testing.T) {
	path := PathFor(filepath.Join(t.TempDir(), "nested"), "someblog")
	links := []string{
		"http://img.example/a.jpg?imageView&thumbnail=1680x0",
		"http://img.example/b.jpg",
	}

	require.NoError(t, Write(path, links))
	assert.NoFileExists(t, path+".tmp")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, links[0]+"\n"+links[1]+"\n", string(data))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, links, got)
}

func TestWriteReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x_failed.txt")
	require.NoError(t, Write(path, []string{"a", "b", "c"}))
	require.NoError(t, Write(path, []string{"d"}))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, got)
}

func TestReadSkipsBlankAndComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("# retried later\n\n  http://a/1.jpg  \nhttp://a/2.jpg"), 0644))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a/1.jpg", "http://a/2.jpg"}, got)
}

func TestReadMissing(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
