package cmdbase_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/emailer/cmd/cmdbase"
)

func TestBoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(file, []byte(`
storage:
  driver: memory
  namespace: test
backends:
  active: noop
`), 0o600))

	t.Run("storage only", func(t *testing.T) {
		b := cmdbase.NewBase("test", "emailer", "test")
		ctx, app, err := b.Boot("test", []string{"-c", file}, false)
		require.NoError(t, err)
		require.NotNil(t, app)
		assert.NotNil(t, ctx)
		cmdbase.Close(ctx, app)
	})

	t.Run("sender requested but not configured", func(t *testing.T) {
		b := cmdbase.NewBase("test", "emailer", "test")
		_, app, err := b.Boot("test", []string{"-config", file}, true)
		assert.Error(t, err)
		assert.Nil(t, app)
	})

	t.Run("missing config file", func(t *testing.T) {
		b := cmdbase.NewBase("test", "emailer", "test")
		_, _, err := b.Boot("test", []string{"-c", filepath.Join(dir, "nope.yml")}, false)
		assert.Error(t, err)
	})

	t.Run("unknown flag", func(t *testing.T) {
		b := cmdbase.NewBase("test", "emailer", "test")
		b.Flags.SetOutput(&bytes.Buffer{})
		_, _, err := b.Boot("test", []string{"-nope"}, false)
		assert.Error(t, err)
	})
}

func TestReadInput(t *testing.T) {
	file := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(file, []byte("a@x.com\n"), 0o600))

	got, err := cmdbase.ReadInput(file)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com\n", got)

	_, err = cmdbase.ReadInput(file + ".missing")
	assert.Error(t, err)
}
