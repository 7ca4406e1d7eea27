package campaignsvc_test

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/emailer/backend"
	"github.com/yusufsyaifudin/emailer/internal/svc/campaignsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/mimesvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientrepo"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/tagsvc"
	"github.com/yusufsyaifudin/emailer/pkg/htmlrender"
	"github.com/yusufsyaifudin/emailer/pkg/kvstore"
	"github.com/yusufsyaifudin/emailer/pkg/uid"
)

// fakeSender fails for emails in failFor and blocks while gate is set.
type fakeSender struct {
	identity backend.Identity
	failFor  map[string]bool
	gate     chan struct{}
	started  chan string

	lock sync.Mutex
	sent []*backend.Message
}

func (f *fakeSender) Identity(_ context.Context) (backend.Identity, error) {
	if f.identity.Email == "" {
		return backend.Identity{}, backend.ErrNoIdentity
	}

	return f.identity, nil
}

func (f *fakeSender) Send(_ context.Context, msg *backend.Message) (*backend.Report, error) {
	if f.started != nil {
		f.started <- msg.To
	}

	if f.gate != nil {
		<-f.gate
	}

	if f.failFor[msg.To] {
		return nil, fmt.Errorf("quota exceeded")
	}

	f.lock.Lock()
	f.sent = append(f.sent, msg)
	f.lock.Unlock()
	return &backend.Report{ReferenceID: msg.ReferenceID, ProviderMessageID: "id-" + msg.To}, nil
}

func (f *fakeSender) messages(t *testing.T) []*mail.Message {
	t.Helper()

	f.lock.Lock()
	defer f.lock.Unlock()

	out := make([]*mail.Message, 0, len(f.sent))
	for _, m := range f.sent {
		raw, err := mimesvc.DecodeRawURL(m.Raw)
		require.NoError(t, err)
		parsed, err := mail.ReadMessage(bytes.NewReader(raw))
		require.NoError(t, err)
		out = append(out, parsed)
	}

	return out
}

type fixedGenerator struct{}

func (fixedGenerator) NextName() tagsvc.Name {
	return tagsvc.Name{First: "Kim", Middle: "Q", Last: "Lee"}
}

func (fixedGenerator) NextAddress() tagsvc.Address {
	return tagsvc.Address{Number: 1, Street: "Main St", City: "Madison", State: "WI", Zip: 53703}
}

func (fixedGenerator) NextToken(kind tagsvc.TokenKind) string {
	return string(kind)
}

type failingRenderer struct{}

func (failingRenderer) Render(_ context.Context, _ htmlrender.InputRender) (htmlrender.Attachment, error) {
	return htmlrender.Attachment{}, fmt.Errorf("%w: chromium crashed", htmlrender.ErrRender)
}

type fixture struct {
	svc        *campaignsvc.DefaultService
	recipients *recipientsvc.DefaultService
	sender     *fakeSender
}

func newFixture(t *testing.T, sender *fakeSender, renderer htmlrender.Renderer, delay time.Duration) fixture {
	t.Helper()
	ctx := context.Background()

	kv, err := kvstore.NewInMemory(kvstore.InMemoryConfig{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = kv.Close()
	})

	repo, err := recipientrepo.NewKV(recipientrepo.KVConfig{KV: kv, Namespace: "test"})
	require.NoError(t, err)

	recipients, err := recipientsvc.New(ctx, recipientsvc.DefaultServiceConfig{
		UIDGen:        uid.NewSonyflake(),
		RecipientRepo: repo,
	})
	require.NoError(t, err)

	if renderer == nil {
		renderer = htmlrender.NewNoop()
	}

	svc, err := campaignsvc.New(campaignsvc.DefaultServiceConfig{
		Recipients: recipients,
		Sender:     sender,
		Renderer:   renderer,
		Tags:       tagsvc.New(tagsvc.Config{Generator: fixedGenerator{}}),
		Builder:    mimesvc.NewBuilder(mimesvc.Config{}),
		Delay:      delay,
	})
	require.NoError(t, err)

	return fixture{svc: svc, recipients: recipients, sender: sender}
}

func (f fixture) ingest(t *testing.T, raw string) {
	t.Helper()
	ctx := context.Background()

	_, err := f.recipients.Ingest(ctx, recipientsvc.InputIngest{Raw: raw})
	require.NoError(t, err)

	_, err = f.svc.LoadUnsent(ctx, campaignsvc.InputLoadUnsent{Limit: campaignsvc.DefaultLoadCount})
	require.NoError(t, err)
}

func validInput() campaignsvc.InputStart {
	return campaignsvc.InputStart{
		Template: campaignsvc.Template{
			SenderName: "Boss",
			Subject:    "Hello #NAME#",
			Body:       "<p>Hi #NAME#, your email is #EMAIL#</p>",
		},
	}
}

func queuedEmails(f fixture) []string {
	out := make([]string, 0)
	for _, e := range f.svc.Queue(context.Background()).Entries {
		out = append(out, e.Email)
	}

	return out
}

func fromName(t *testing.T, m *mail.Message) string {
	t.Helper()
	addr, err := (&mail.AddressParser{WordDecoder: &mime.WordDecoder{}}).Parse(m.Header.Get("From"))
	require.NoError(t, err)
	return addr.Name
}

func TestNew(t *testing.T) {
	svc, err := campaignsvc.New(campaignsvc.DefaultServiceConfig{})
	assert.Nil(t, svc)
	assert.Error(t, err)
}

func TestDefaultService_Start_AllSent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 0)
	f.ingest(t, "email,name\na@x.co,Ann\nb@x.co,\nc@x.co,Cy\n")

	require.NoError(t, f.svc.Start(ctx, validInput()))
	require.NoError(t, f.svc.Wait(ctx))

	status := f.svc.Status(ctx)
	assert.Equal(t, campaignsvc.StateIdle, status.State)
	assert.Equal(t, 3, status.SentCount)
	assert.Equal(t, 3, status.TotalCount)
	assert.Empty(t, status.Error)
	assert.Empty(t, f.svc.Queue(ctx).Entries)

	list, err := f.recipients.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, list.SentCount)

	msgs := f.sender.messages(t)
	require.Len(t, msgs, 3)
	assert.Equal(t, "a@x.co", msgs[0].Header.Get("To"))
	assert.Equal(t, "Boss", fromName(t, msgs[0]))

	subject, err := new(mime.WordDecoder).DecodeHeader(msgs[0].Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Hello Ann", subject)

	// empty name column falls back to generated name
	subject, err = new(mime.WordDecoder).DecodeHeader(msgs[1].Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Hello Kim", subject)
}

func TestDefaultService_Start_AbortOnFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSender{
		identity: backend.Identity{Email: "me@x.co"},
		failFor:  map[string]bool{"b@x.co": true},
	}, nil, 0)
	f.ingest(t, "a@x.co\nb@x.co\nc@x.co\n")

	require.NoError(t, f.svc.Start(ctx, validInput()))
	err := f.svc.Wait(ctx)
	assert.ErrorIs(t, err, campaignsvc.ErrTransport)

	status := f.svc.Status(ctx)
	assert.Equal(t, campaignsvc.StateIdle, status.State)
	assert.Equal(t, 1, status.SentCount)
	assert.Equal(t, 3, status.TotalCount)
	assert.Contains(t, status.Error, "failed to send to b@x.co")

	assert.Equal(t, []string{"b@x.co", "c@x.co"}, queuedEmails(f))

	list, err := f.recipients.List(ctx)
	require.NoError(t, err)
	assert.True(t, list.Records[0].Sent)
	assert.False(t, list.Records[1].Sent)
	assert.False(t, list.Records[2].Sent)

	t.Run("resume skips sent records", func(t *testing.T) {
		f.sender.failFor = nil
		_, err := f.svc.LoadUnsent(ctx, campaignsvc.InputLoadUnsent{Limit: 50})
		require.NoError(t, err)
		assert.Equal(t, []string{"b@x.co", "c@x.co"}, queuedEmails(f))

		require.NoError(t, f.svc.Start(ctx, validInput()))
		require.NoError(t, f.svc.Wait(ctx))

		status := f.svc.Status(ctx)
		assert.Equal(t, 2, status.SentCount)
		assert.Empty(t, status.Error)
	})
}

func TestDefaultService_Start_RenderFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, failingRenderer{}, 0)
	f.ingest(t, "a@x.co\nb@x.co\n")

	in := validInput()
	in.Attachment = campaignsvc.AttachmentPolicy{Enabled: true}
	require.NoError(t, f.svc.Start(ctx, in))

	err := f.svc.Wait(ctx)
	assert.ErrorIs(t, err, campaignsvc.ErrRender)
	assert.Equal(t, 0, f.svc.Status(ctx).SentCount)
	assert.Equal(t, []string{"a@x.co", "b@x.co"}, queuedEmails(f))
}

func TestDefaultService_Start_Rotation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 0)
	f.ingest(t, "a@x.co\nb@x.co\nc@x.co\nd@x.co\n")

	in := validInput()
	in.Rotation = campaignsvc.RotationPolicy{Enabled: true, Interval: 2}
	require.NoError(t, f.svc.Start(ctx, in))
	require.NoError(t, f.svc.Wait(ctx))

	msgs := f.sender.messages(t)
	require.Len(t, msgs, 4)
	assert.Equal(t, "Boss", fromName(t, msgs[0]))
	assert.Equal(t, "Boss", fromName(t, msgs[1]))
	assert.Equal(t, "Kim Lee", fromName(t, msgs[2]))
	assert.Equal(t, "Kim Lee", fromName(t, msgs[3]))
	assert.Equal(t, "Kim Lee", f.svc.Status(ctx).SenderName)
}

func TestDefaultService_Start_RotationCountsPreviousRuns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 0)
	f.ingest(t, "a@x.co\nb@x.co\nc@x.co\n")

	list, err := f.recipients.List(ctx)
	require.NoError(t, err)
	_, err = f.recipients.MarkSent(ctx, recipientsvc.InputMarkSent{ID: list.Records[0].ID})
	require.NoError(t, err)
	_, err = f.svc.LoadUnsent(ctx, campaignsvc.InputLoadUnsent{Limit: 50})
	require.NoError(t, err)

	in := validInput()
	in.Rotation = campaignsvc.RotationPolicy{Enabled: true, Interval: 2}
	require.NoError(t, f.svc.Start(ctx, in))
	require.NoError(t, f.svc.Wait(ctx))

	// cumulative count is 1 then 2, so the second message of this run rotates
	msgs := f.sender.messages(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Boss", fromName(t, msgs[0]))
	assert.Equal(t, "Kim Lee", fromName(t, msgs[1]))
}

func TestDefaultService_Start_RotationDefaultInterval(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 0)

	lines := make([]string, 0, 11)
	for i := 0; i < 11; i++ {
		lines = append(lines, fmt.Sprintf("u%d@x.co", i))
	}
	f.ingest(t, strings.Join(lines, "\n"))

	in := validInput()
	in.Rotation = campaignsvc.RotationPolicy{Enabled: true}
	require.NoError(t, f.svc.Start(ctx, in))
	require.NoError(t, f.svc.Wait(ctx))

	msgs := f.sender.messages(t)
	require.Len(t, msgs, 11)
	assert.Equal(t, "Boss", fromName(t, msgs[9]))
	assert.Equal(t, "Kim Lee", fromName(t, msgs[10]))
}

func TestDefaultService_Start_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("no identity", func(t *testing.T) {
		f := newFixture(t, &fakeSender{}, nil, 0)
		f.ingest(t, "a@x.co\n")
		err := f.svc.Start(ctx, validInput())
		assert.ErrorIs(t, err, campaignsvc.ErrValidation)
		assert.Equal(t, campaignsvc.StateIdle, f.svc.Status(ctx).State)
	})

	t.Run("blank subject", func(t *testing.T) {
		f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 0)
		f.ingest(t, "a@x.co\n")
		in := validInput()
		in.Template.Subject = "   "
		assert.ErrorIs(t, f.svc.Start(ctx, in), campaignsvc.ErrValidation)
	})

	t.Run("blank body", func(t *testing.T) {
		f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 0)
		f.ingest(t, "a@x.co\n")
		in := validInput()
		in.Template.Body = "\n"
		assert.ErrorIs(t, f.svc.Start(ctx, in), campaignsvc.ErrValidation)
	})

	t.Run("empty queue", func(t *testing.T) {
		f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 0)
		assert.ErrorIs(t, f.svc.Start(ctx, validInput()), campaignsvc.ErrValidation)
	})

	t.Run("only malformed entries", func(t *testing.T) {
		f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 0)
		_, err := f.svc.SetQueueFromText(ctx, campaignsvc.InputSetQueueFromText{Text: "nope\nalso nope\n"})
		require.NoError(t, err)
		assert.ErrorIs(t, f.svc.Start(ctx, validInput()), campaignsvc.ErrValidation)
	})

	t.Run("malformed entries are not counted", func(t *testing.T) {
		f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 0)
		_, err := f.svc.SetQueueFromText(ctx, campaignsvc.InputSetQueueFromText{Text: "nope\na@x.co\n"})
		require.NoError(t, err)
		require.NoError(t, f.svc.Start(ctx, validInput()))
		require.NoError(t, f.svc.Wait(ctx))

		status := f.svc.Status(ctx)
		assert.Equal(t, 1, status.TotalCount)
		assert.Equal(t, 1, status.SentCount)
		assert.Equal(t, []string{"nope"}, queuedEmails(f))
	})
}

func TestDefaultService_BusyAndStop(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{
		identity: backend.Identity{Email: "me@x.co"},
		gate:     make(chan struct{}),
		started:  make(chan string, 10),
	}
	f := newFixture(t, sender, nil, 0)
	f.ingest(t, "a@x.co\nb@x.co\nc@x.co\n")

	require.NoError(t, f.svc.Start(ctx, validInput()))
	assert.Equal(t, "a@x.co", <-sender.started)
	assert.Equal(t, campaignsvc.StateSending, f.svc.Status(ctx).State)

	assert.ErrorIs(t, f.svc.Start(ctx, validInput()), campaignsvc.ErrBusy)
	_, err := f.svc.LoadUnsent(ctx, campaignsvc.InputLoadUnsent{Limit: 1})
	assert.ErrorIs(t, err, campaignsvc.ErrBusy)
	_, err = f.svc.SetQueueFromText(ctx, campaignsvc.InputSetQueueFromText{Text: "z@x.co"})
	assert.ErrorIs(t, err, campaignsvc.ErrBusy)
	assert.ErrorIs(t, f.svc.ClearQueue(ctx), campaignsvc.ErrBusy)

	assert.True(t, f.svc.Stop(ctx).WasSending)
	close(sender.gate)
	require.NoError(t, f.svc.Wait(ctx))

	// in-flight message is finished, nothing after it
	status := f.svc.Status(ctx)
	assert.Equal(t, campaignsvc.StateIdle, status.State)
	assert.Equal(t, 1, status.SentCount)
	assert.Equal(t, []string{"b@x.co", "c@x.co"}, queuedEmails(f))
	assert.False(t, f.svc.Stop(ctx).WasSending)
}

func TestDefaultService_StopDuringDelay(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{
		identity: backend.Identity{Email: "me@x.co"},
		started:  make(chan string, 10),
	}
	f := newFixture(t, sender, nil, time.Hour)
	f.ingest(t, "a@x.co\nb@x.co\n")

	require.NoError(t, f.svc.Start(ctx, validInput()))
	<-sender.started
	assert.Eventually(t, func() bool {
		return f.svc.Status(ctx).SentCount == 1
	}, time.Second, 5*time.Millisecond)

	f.svc.Stop(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Wait(waitCtx))
	assert.Equal(t, []string{"b@x.co"}, queuedEmails(f))
}

func TestDefaultService_Delay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 30*time.Millisecond)
	f.ingest(t, "a@x.co\nb@x.co\nc@x.co\n")

	start := time.Now()
	require.NoError(t, f.svc.Start(ctx, validInput()))
	require.NoError(t, f.svc.Wait(ctx))

	// two pauses, none after the last message
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	assert.Equal(t, 3, f.svc.Status(ctx).SentCount)
}

func TestDefaultService_Attachment(t *testing.T) {
	ctx := context.Background()

	t.Run("inline pdf is sent as attachment", func(t *testing.T) {
		f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 0)
		f.ingest(t, "email,name\na@x.co,Ann\n")

		in := validInput()
		in.Template.AttachmentHTML = "<h1>#NAME#</h1>"
		in.Attachment = campaignsvc.AttachmentPolicy{
			Enabled:   true,
			Format:    htmlrender.FormatPDF,
			Placement: mimesvc.PlacementInline,
			Filename:  "invoice-#NAME#",
		}
		require.NoError(t, f.svc.Start(ctx, in))
		require.NoError(t, f.svc.Wait(ctx))

		msgs := f.sender.messages(t)
		require.Len(t, msgs, 1)
		mediaType, _, err := mime.ParseMediaType(msgs[0].Header.Get("Content-Type"))
		require.NoError(t, err)
		assert.Equal(t, "multipart/mixed", mediaType)
	})

	t.Run("inline image uses related", func(t *testing.T) {
		f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 0)
		f.ingest(t, "a@x.co\n")

		in := validInput()
		in.Template.AttachmentHTML = "<h1>card</h1>"
		in.Attachment = campaignsvc.AttachmentPolicy{Enabled: true, Placement: mimesvc.PlacementInline}
		require.NoError(t, f.svc.Start(ctx, in))
		require.NoError(t, f.svc.Wait(ctx))

		msgs := f.sender.messages(t)
		require.Len(t, msgs, 1)
		mediaType, _, err := mime.ParseMediaType(msgs[0].Header.Get("Content-Type"))
		require.NoError(t, err)
		assert.Equal(t, "multipart/related", mediaType)
	})
}

func TestDefaultService_Queue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeSender{identity: backend.Identity{Email: "me@x.co"}}, nil, 0)
	f.ingest(t, "email,name\na@x.co,Ann\nb@x.co,Bob\n")

	t.Run("from text reuses queue then store then synthesizes", func(t *testing.T) {
		before := f.svc.Queue(ctx).Entries
		require.Len(t, before, 2)

		_, err := f.svc.SetQueueFromText(ctx, campaignsvc.InputSetQueueFromText{Text: " b@x.co \n\nnew@x.co\n"})
		require.NoError(t, err)

		out, err := f.svc.SetQueueFromText(ctx, campaignsvc.InputSetQueueFromText{Text: "a@x.co\nb@x.co\nnew@x.co"})
		require.NoError(t, err)
		require.Len(t, out.Entries, 3)

		assert.Equal(t, before[0].ID, out.Entries[0].ID)
		assert.Equal(t, "Ann", out.Entries[0].Attributes["name"])
		assert.Equal(t, before[1].ID, out.Entries[1].ID)
		assert.Equal(t, map[string]string{"email": "new@x.co"}, out.Entries[2].Attributes)
		assert.True(t, strings.HasPrefix(out.Entries[2].ID, "new@x.co-"))
	})

	t.Run("checker list", func(t *testing.T) {
		_, err := f.recipients.IngestChecker(ctx, recipientsvc.InputIngestChecker{Raw: "b@x.co\nseed@x.co\n"})
		require.NoError(t, err)

		out, err := f.svc.LoadChecker(ctx)
		require.NoError(t, err)
		require.Len(t, out.Entries, 2)
		assert.Equal(t, "Bob", out.Entries[0].Attributes["name"])
		assert.Equal(t, map[string]string{"email": "seed@x.co"}, out.Entries[1].Attributes)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, f.svc.ClearQueue(ctx))
		assert.Empty(t, f.svc.Queue(ctx).Entries)
	})

	t.Run("store clear empties queue", func(t *testing.T) {
		_, err := f.svc.LoadUnsent(ctx, campaignsvc.InputLoadUnsent{Limit: 50})
		require.NoError(t, err)
		require.NotEmpty(t, f.svc.Queue(ctx).Entries)

		require.NoError(t, f.recipients.Clear(ctx))
		assert.Empty(t, f.svc.Queue(ctx).Entries)
	})

	t.Run("bad limit", func(t *testing.T) {
		_, err := f.svc.LoadUnsent(ctx, campaignsvc.InputLoadUnsent{})
		assert.ErrorIs(t, err, campaignsvc.ErrValidation)
	})
}
