package backend

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

var (
	ErrProviderAlreadyRegistered = fmt.Errorf("provider already registered")
	ErrProviderNotRegistered     = fmt.Errorf("provider not registered")
	ErrNoIdentity                = fmt.Errorf("no authenticated sender identity")
)

// Sender is a mail transport which accepts a fully-formed MIME message.
type Sender interface {
	// Identity return the authenticated account used as From address.
	// It returns error wrapping ErrNoIdentity when the transport is not signed in.
	Identity(ctx context.Context) (identity Identity, err error)

	// Send deliver the message. There is no retry, any error means the message is not sent.
	Send(ctx context.Context, msg *Message) (report *Report, err error)
}

// SenderMux used by internal application to route to the specific Sender based on provider name.
type SenderMux interface {
	Use(provider string) (sender Sender, err error)

	// ListProviders will return all available providers registered in this SenderMux
	ListProviders(ctx context.Context) (providers []string)
}

type Identity struct {
	Email string `json:"email" validate:"required"`
	Name  string `json:"name,omitempty"`
}

type Message struct {
	ReferenceID string `validate:"required"`
	To          string `validate:"required"`

	// Raw is the MIME document in base64 URL-safe alphabet without padding.
	Raw string `validate:"required"`
}

// Report is the transport acknowledgement.
type Report struct {
	ReferenceID       string    `json:"reference_id"`
	Provider          string    `json:"provider"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	SentAt            time.Time `json:"sent_at"`
}

// DecodeRaw turns Message.Raw back into MIME bytes.
// Padding is tolerated even though it is never produced by this application.
func DecodeRaw(raw string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return nil, fmt.Errorf("raw message is not base64url: %w", err)
	}

	return b, nil
}
