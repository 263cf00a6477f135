package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "crawl"}
	addPageFlags(cmd)
	addDownloadFlags(cmd)
	return cmd
}

func TestCommandOverridesOnlyChangedFlags(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags([]string{"-w", "3", "--end", "9", "--timeout", "20s", "--save-failed=false"}))

	flags := commandOverrides(cmd)
	assert.Equal(t, 3, flags["workers"])
	assert.Equal(t, 9, flags["end"])
	assert.Equal(t, 20*time.Second, flags["timeout"])
	assert.Equal(t, false, flags["save-failed"])

	for _, key := range []string{"dir", "start", "max-pages", "replace", "cache-size", "retry-rounds"} {
		assert.NotContains(t, flags, key)
	}
}

func TestCommandOverridesNone(t *testing.T) {
	cmd := newTestCommand()
	require.NoError(t, cmd.ParseFlags(nil))
	assert.Empty(t, commandOverrides(cmd))
}
