package besmtp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/emailer/backend"
	"github.com/yusufsyaifudin/emailer/backend/besmtp"
)

func TestNewBE(t *testing.T) {
	t.Run("missing credential", func(t *testing.T) {
		be, err := besmtp.NewBE(&besmtp.Config{})
		assert.Nil(t, be)
		assert.Error(t, err)
	})

	t.Run("bad from address", func(t *testing.T) {
		be, err := besmtp.NewBE(&besmtp.Config{
			Credential: &besmtp.Credential{
				ServerHost: "smtp.gmail.com",
				ServerPort: 587,
				Username:   "xxx@gmail.com",
				Password:   "---",
				From:       "not-an-email",
			},
		})
		assert.Nil(t, be)
		assert.Error(t, err)
	})

	t.Run("ok without dialing", func(t *testing.T) {
		be, err := besmtp.NewBE(&besmtp.Config{
			Credential: &besmtp.Credential{
				ServerHost: "smtp.gmail.com",
				ServerPort: 587,
				Username:   "xxx@gmail.com",
				Password:   "---",
			},
		})
		assert.NotNil(t, be)
		assert.NoError(t, err)
		assert.NoError(t, be.Close())
	})
}

func TestBE_Identity(t *testing.T) {
	t.Run("from overrides username", func(t *testing.T) {
		be, err := besmtp.NewBE(&besmtp.Config{
			Credential: &besmtp.Credential{
				ServerHost: "smtp.example.com",
				ServerPort: 587,
				Username:   "apikey",
				Password:   "---",
				From:       "news@example.com",
			},
		})
		require.NoError(t, err)

		identity, err := be.Identity(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, "news@example.com", identity.Email)
	})

	t.Run("username is not email", func(t *testing.T) {
		be, err := besmtp.NewBE(&besmtp.Config{
			Credential: &besmtp.Credential{
				ServerHost: "smtp.example.com",
				ServerPort: 587,
				Username:   "apikey",
				Password:   "---",
			},
		})
		require.NoError(t, err)

		_, err = be.Identity(context.Background())
		assert.ErrorIs(t, err, backend.ErrNoIdentity)
	})
}

func TestBE_Send_MalformedRaw(t *testing.T) {
	be, err := besmtp.NewBE(&besmtp.Config{
		Credential: &besmtp.Credential{
			ServerHost: "127.0.0.1",
			ServerPort: 1,
			Username:   "me@example.com",
			Password:   "---",
		},
	})
	require.NoError(t, err)

	report, err := be.Send(context.Background(), &backend.Message{
		ReferenceID: "ref",
		To:          "kim@example.com",
		Raw:         "+/+/",
	})
	assert.Nil(t, report)
	assert.Error(t, err)
}

func TestBE_Send_DialError(t *testing.T) {
	be, err := besmtp.NewBE(&besmtp.Config{
		Credential: &besmtp.Credential{
			ServerHost: "127.0.0.1",
			ServerPort: 1,
			Username:   "me@example.com",
			Password:   "---",
		},
	})
	require.NoError(t, err)

	report, err := be.Send(context.Background(), &backend.Message{
		ReferenceID: "ref",
		To:          "kim@example.com",
		Raw:         "U3ViamVjdDogaGk",
	})
	assert.Nil(t, report)
	assert.Error(t, err)
}
