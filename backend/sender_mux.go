package backend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/yusufsyaifudin/emailer/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type SenderMultiplexer struct {
	lock   sync.RWMutex
	sender map[string]Sender
}

var _ SenderMux = (*SenderMultiplexer)(nil)

var beMux = NewMux()

// NewMux return an empty multiplexer. Most of the time you want MuxBackend instead.
func NewMux() *SenderMultiplexer {
	return &SenderMultiplexer{
		sender: map[string]Sender{},
	}
}

// MuxBackend return the global multiplexer where Register put the senders.
func MuxBackend() *SenderMultiplexer {
	return beMux
}

func MustRegister(provider string, sender Sender) {
	err := Register(provider, sender)
	if err != nil {
		panic(err)
	}
}

// Register new provider into the global multiplexer
func Register(provider string, sender Sender) (err error) {
	return beMux.Register(provider, sender)
}

func (s *SenderMultiplexer) Register(provider string, sender Sender) (err error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		err = fmt.Errorf("cannot assign empty provider name")
		return
	}

	if provider != strings.ToLower(provider) {
		err = fmt.Errorf("provider name must only contain lower case")
		return
	}

	if !utf8.ValidString(provider) {
		err = fmt.Errorf("provider name must only use utf8 characters")
		return
	}

	if sender == nil {
		err = fmt.Errorf("cannot assign nil sender")
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, exist := s.sender[provider]; exist {
		err = fmt.Errorf("%w '%s'", ErrProviderAlreadyRegistered, provider)
		return
	}

	s.sender[provider] = sender
	return
}

// Use select the registered provider and return Sender that is traced under the provider name.
func (s *SenderMultiplexer) Use(provider string) (sender Sender, err error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	client, exist := s.sender[strings.TrimSpace(provider)]
	if !exist {
		err = fmt.Errorf("%w: '%s'", ErrProviderNotRegistered, provider)
		return
	}

	sender = &tracedSender{provider: provider, next: client}
	return
}

func (s *SenderMultiplexer) ListProviders(_ context.Context) (providers []string) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	providers = make([]string, 0, len(s.sender))
	for provider := range s.sender {
		providers = append(providers, provider)
	}

	sort.Strings(providers)
	return
}

type tracedSender struct {
	provider string
	next     Sender
}

func (t *tracedSender) Identity(ctx context.Context) (identity Identity, err error) {
	return t.next.Identity(ctx)
}

func (t *tracedSender) Send(ctx context.Context, msg *Message) (report *Report, err error) {
	var span trace.Span
	ctx, span = tracer.StartSpan(ctx, "backendmux.Send", trace.WithAttributes(
		attribute.String("provider", t.provider),
	))
	defer span.End()

	if msg == nil {
		err = fmt.Errorf("passed message is nil, we cannot process that")
		return
	}

	report, err = t.next.Send(ctx, msg)
	if err != nil {
		span.RecordError(err)
		return
	}

	if report != nil && report.Provider == "" {
		report.Provider = t.provider
	}

	return
}
