package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
)

// NoopBackend accepts every valid message without sending it anywhere.
// Sent messages are kept in memory so dry-run can be inspected.
type NoopBackend struct {
	identity Identity
	lock     sync.Mutex
	sent     []Message
}

var _ Sender = (*NoopBackend)(nil)

func NewNoopSender(identity Identity) *NoopBackend {
	identity.Email = strings.TrimSpace(identity.Email)
	return &NoopBackend{
		identity: identity,
		sent:     make([]Message, 0),
	}
}

func (b *NoopBackend) Identity(_ context.Context) (identity Identity, err error) {
	if b.identity.Email == "" {
		err = fmt.Errorf("%w: noop sender has no email configured", ErrNoIdentity)
		return
	}

	identity = b.identity
	return
}

func (b *NoopBackend) Send(ctx context.Context, msg *Message) (report *Report, err error) {
	err = validator.Validate(msg)
	if err != nil {
		err = fmt.Errorf("noop message malformed: %w", err)
		return
	}

	raw, err := DecodeRaw(msg.Raw)
	if err != nil {
		return
	}

	ylog.Debug(ctx, "noop sender: message accepted",
		ylog.KV("reference_id", msg.ReferenceID),
		ylog.KV("to", msg.To),
		ylog.KV("size", len(raw)),
	)

	b.lock.Lock()
	b.sent = append(b.sent, *msg)
	b.lock.Unlock()

	report = &Report{
		ReferenceID: msg.ReferenceID,
		SentAt:      time.Now().UTC(),
	}

	return
}

// Sent return copy of all accepted messages.
func (b *NoopBackend) Sent() []Message {
	b.lock.Lock()
	defer b.lock.Unlock()

	out := make([]Message, len(b.sent))
	copy(out, b.sent)
	return out
}
