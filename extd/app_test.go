package extd_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/emailer/backend"
	"github.com/yusufsyaifudin/emailer/backend/besmtp"
	"github.com/yusufsyaifudin/emailer/container"
	"github.com/yusufsyaifudin/emailer/extd"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientsvc"
)

func memoryConfig(t *testing.T) container.Config {
	t.Helper()

	cfg, err := container.ParseConfig([]byte(`
storage:
  driver: memory
  namespace: test
backends:
  active: noop
  noop:
    email: me@example.com
    name: Me
campaign:
  delay: 0s
`))
	require.NoError(t, err)
	return cfg
}

func TestNewApp(t *testing.T) {
	ctx := context.Background()

	t.Run("with sender", func(t *testing.T) {
		app, err := extd.NewApp(ctx, memoryConfig(t), true)
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, app.Close())
		}()

		assert.Equal(t, []string{"noop"}, app.Mux.ListProviders(ctx))

		_, err = app.Services.Recipients().Ingest(ctx, recipientsvc.InputIngest{Raw: "a@x.com"})
		require.NoError(t, err)

		list, err := app.Services.Recipients().List(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, list.UnsentCount)
	})

	t.Run("storage only", func(t *testing.T) {
		cfg := memoryConfig(t)
		cfg.Backends.Noop = nil

		app, err := extd.NewApp(ctx, cfg, false)
		require.NoError(t, err)
		assert.Empty(t, app.Mux.ListProviders(ctx))
		assert.NoError(t, app.Close())
	})

	t.Run("active backend not configured", func(t *testing.T) {
		cfg := memoryConfig(t)
		cfg.Backends.Active = "smtp"

		app, err := extd.NewApp(ctx, cfg, true)
		assert.ErrorIs(t, err, backend.ErrProviderNotRegistered)
		assert.Nil(t, app)
	})
}

func TestRegisterBackends(t *testing.T) {
	ctx := context.Background()
	mux := backend.NewMux()

	closers, err := extd.RegisterBackends(ctx, mux, container.ConfigBackends{
		Active: "smtp",
		Noop:   &container.ConfigNoop{Email: "me@example.com"},
		SMTP: &besmtp.Credential{
			ServerHost: "smtp.example.com",
			ServerPort: 587,
			Username:   "me@example.com",
			Password:   "secret",
		},
	})
	require.NoError(t, err)
	assert.Len(t, closers, 1)
	assert.Equal(t, []string{"noop", "smtp"}, mux.ListProviders(ctx))

	sender, err := mux.Use("smtp")
	require.NoError(t, err)

	identity, err := sender.Identity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", identity.Email)
}
