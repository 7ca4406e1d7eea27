package campaignsvc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yusufsyaifudin/emailer/backend"
	"github.com/yusufsyaifudin/emailer/internal/svc/mimesvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/tagsvc"
	"github.com/yusufsyaifudin/emailer/pkg/htmlrender"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
)

type DefaultServiceConfig struct {
	Recipients recipientsvc.Service `validate:"required"`
	Sender     backend.Sender       `validate:"required"`
	Renderer   htmlrender.Renderer  `validate:"required"`
	Tags       *tagsvc.Engine       `validate:"required"`
	Builder    *mimesvc.Builder     `validate:"required"`

	// Delay is the pause between two messages. Zero means no pause.
	Delay time.Duration `validate:"min=0"`

	// RotationInterval is used when rotation is enabled without explicit interval.
	RotationInterval int              `validate:"min=0"`
	Now              func() time.Time `validate:"-"`
}

type DefaultService struct {
	Config DefaultServiceConfig

	lock     sync.Mutex
	queue    []QueueEntry
	progress Progress
	stop     chan struct{}
	done     chan struct{}
	runErr   error
}

var _ Service = (*DefaultService)(nil)

// run is the immutable input of one sending run.
type run struct {
	entries     []QueueEntry
	template    Template
	attachment  AttachmentPolicy
	rotation    RotationPolicy
	identity    backend.Identity
	alreadySent int
	stop        <-chan struct{}
	done        chan<- struct{}
}

func New(dep DefaultServiceConfig) (*DefaultService, error) {
	if err := validator.Validate(dep); err != nil {
		return nil, err
	}

	if dep.Now == nil {
		dep.Now = time.Now
	}

	if dep.RotationInterval == 0 {
		dep.RotationInterval = DefaultRotationInterval
	}

	svc := &DefaultService{
		Config:   dep,
		queue:    make([]QueueEntry, 0),
		progress: Progress{State: StateIdle},
	}

	// clearing the store always empties the queue, even mid-run: the loop then stops as exhausted
	dep.Recipients.OnClear(func(ctx context.Context) {
		svc.lock.Lock()
		svc.queue = make([]QueueEntry, 0)
		svc.lock.Unlock()
		ylog.Info(ctx, "queue cleared following recipient store clear")
	})

	return svc, nil
}

// Start checks every precondition and then runs the loop in background.
// It returns as soon as the loop is started.
func (d *DefaultService) Start(ctx context.Context, input InputStart) (err error) {
	err = validator.Validate(input)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	if strings.TrimSpace(input.Template.Subject) == "" || strings.TrimSpace(input.Template.Body) == "" {
		err = fmt.Errorf("%w: subject and body cannot be empty", ErrValidation)
		return
	}

	identity, err := d.Config.Sender.Identity(ctx)
	if err != nil {
		err = fmt.Errorf("%w: sender is not signed in: %s", ErrValidation, err)
		return
	}

	if !validator.IsEmail(identity.Email) {
		err = fmt.Errorf("%w: sender identity '%s' is not a valid email", ErrValidation, identity.Email)
		return
	}

	stats, err := d.Config.Recipients.List(ctx)
	if err != nil {
		err = fmt.Errorf("cannot read recipient store: %w", err)
		return
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if d.progress.State == StateSending {
		err = ErrBusy
		return
	}

	entries := make([]QueueEntry, 0, len(d.queue))
	for _, e := range d.queue {
		if !validator.IsEmail(e.Email) {
			continue
		}

		entries = append(entries, copyEntry(e))
	}

	if len(entries) == 0 {
		err = fmt.Errorf("%w: recipient list is empty or contains no valid emails", ErrValidation)
		return
	}

	rotation := input.Rotation
	if rotation.Enabled && rotation.Interval == 0 {
		rotation.Interval = d.Config.RotationInterval
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	r := run{
		entries:     entries,
		template:    input.Template,
		attachment:  normalizeAttachment(ctx, input.Attachment),
		rotation:    rotation,
		identity:    identity,
		alreadySent: stats.SentCount,
		stop:        stop,
		done:        done,
	}

	d.stop = stop
	d.done = done
	d.runErr = nil
	d.progress = Progress{
		State:      StateSending,
		SentCount:  0,
		TotalCount: len(entries),
		SenderName: input.Template.SenderName,
		StartedAt:  d.Config.Now(),
	}

	ylog.Info(ctx, "campaign started",
		ylog.KV("total", len(entries)),
		ylog.KV("from", identity.Email),
		ylog.KV("already_sent", stats.SentCount),
	)

	// request scoped cancellation must not stop the run, only Stop does
	go d.loop(context.WithoutCancel(ctx), r)
	return
}

// Stop is cooperative: the in-flight message is finished first.
func (d *DefaultService) Stop(ctx context.Context) (out OutStop) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.progress.State != StateSending {
		return
	}

	select {
	case <-d.stop:
	default:
		close(d.stop)
	}

	ylog.Info(ctx, "campaign stop requested")
	out.WasSending = true
	return
}

// Wait blocks until the current run ends and returns its error, nil when there is no run.
func (d *DefaultService) Wait(ctx context.Context) (err error) {
	d.lock.Lock()
	done := d.done
	d.lock.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	return d.runErr
}

func (d *DefaultService) Status(ctx context.Context) (out Progress) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.progress
}

func (d *DefaultService) loop(ctx context.Context, r run) {
	defer close(r.done)

	senderName := r.template.SenderName
	var runErr error
	stopped := false

	for i, entry := range r.entries {
		if isStopped(r.stop) {
			stopped = true
			break
		}

		remaining, queued := d.lookupQueue(entry.ID)
		if remaining == 0 {
			ylog.Info(ctx, "queue became empty, stopping")
			break
		}

		if !queued {
			ylog.Debug(ctx, "entry no longer queued, skipping", ylog.KV("email", entry.Email))
			continue
		}

		cumulative := r.alreadySent + i
		if r.rotation.Enabled && r.rotation.Interval > 0 && cumulative > 0 && cumulative%r.rotation.Interval == 0 {
			senderName = d.Config.Tags.GenerateRandomDisplayName(tagsvc.KindFName)
			d.lock.Lock()
			d.progress.SenderName = senderName
			d.lock.Unlock()
			ylog.Info(ctx, "sender name rotated", ylog.KV("sent_so_far", cumulative), ylog.KV("sender_name", senderName))
		}

		nameTemplate := r.template.SenderName
		if r.rotation.Enabled {
			nameTemplate = senderName
		}

		report, err := d.sendOne(ctx, r, entry, nameTemplate)
		if err != nil {
			runErr = fmt.Errorf("failed to send to %s: %w", entry.Email, err)
			ylog.Error(ctx, "campaign aborted", ylog.KV("email", entry.Email), ylog.KV("error", err))
			break
		}

		d.lock.Lock()
		d.progress.SentCount++
		d.queue = removeEntry(d.queue, entry.ID)
		d.lock.Unlock()

		_, err = d.Config.Recipients.MarkSent(ctx, recipientsvc.InputMarkSent{ID: entry.ID})
		if err != nil {
			// the message is already delivered, so the run continues
			ylog.Warn(ctx, "cannot persist sent flag", ylog.KV("id", entry.ID), ylog.KV("error", err))
		}

		ylog.Info(ctx, "message sent",
			ylog.KV("email", entry.Email),
			ylog.KV("provider", report.Provider),
			ylog.KV("provider_message_id", report.ProviderMessageID),
		)

		if i == len(r.entries)-1 {
			break
		}

		if !d.pause(r.stop) {
			stopped = true
			break
		}
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	d.runErr = runErr
	d.progress.State = StateIdle
	d.progress.FinishedAt = d.Config.Now()
	if runErr != nil {
		d.progress.Error = runErr.Error()
	}

	ylog.Info(ctx, "campaign finished",
		ylog.KV("sent", d.progress.SentCount),
		ylog.KV("total", d.progress.TotalCount),
		ylog.KV("stopped", stopped),
	)
}

// sendOne renders and sends exactly one message.
func (d *DefaultService) sendOne(ctx context.Context, r run, entry QueueEntry, nameTemplate string) (report *backend.Report, err error) {
	tags := d.Config.Tags.BuildTagMap(entry.Attributes, entry.Email)

	fromName := tagsvc.RenderTemplate(nameTemplate, tags)
	if strings.TrimSpace(fromName) == "" {
		fromName = r.identity.Name
	}

	subject := tagsvc.RenderTemplate(r.template.Subject, tags)
	body := tagsvc.RenderTemplate(r.template.Body, tags)

	var attachment *htmlrender.Attachment
	if r.attachment.Enabled {
		filename := strings.TrimSpace(tagsvc.RenderTemplate(r.attachment.Filename, tags))
		if filename == "" {
			filename = DefaultFilename
		}

		rendered, _err := d.Config.Renderer.Render(ctx, htmlrender.InputRender{
			HTML:     tagsvc.RenderTemplate(r.template.AttachmentHTML, tags),
			Format:   r.attachment.Format,
			Filename: filename,
		})
		if _err != nil {
			err = fmt.Errorf("%w: %s", ErrRender, _err)
			return
		}

		attachment = &rendered
	}

	raw, err := d.Config.Builder.Build(mimesvc.InputBuild{
		To:         entry.Email,
		Subject:    subject,
		Body:       body,
		FromName:   fromName,
		FromEmail:  r.identity.Email,
		Attachment: attachment,
		Placement:  r.attachment.Placement,
	})
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrRender, err)
		return
	}

	report, err = d.Config.Sender.Send(ctx, &backend.Message{
		ReferenceID: entry.ID,
		To:          entry.Email,
		Raw:         mimesvc.EncodeRawURL(raw),
	})
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrTransport, err)
		return
	}

	if report == nil {
		report = &backend.Report{ReferenceID: entry.ID}
	}

	return
}

// pause return false when stop is requested during the delay.
func (d *DefaultService) pause(stop <-chan struct{}) bool {
	if d.Config.Delay <= 0 {
		return !isStopped(stop)
	}

	timer := time.NewTimer(d.Config.Delay)
	defer timer.Stop()

	select {
	case <-stop:
		return false
	case <-timer.C:
		return true
	}
}

// lookupQueue return queue length and whether id is still queued.
func (d *DefaultService) lookupQueue(id string) (remaining int, queued bool) {
	d.lock.Lock()
	defer d.lock.Unlock()

	for _, e := range d.queue {
		if e.ID == id {
			return len(d.queue), true
		}
	}

	return len(d.queue), false
}

func isStopped(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}

// normalizeAttachment fills defaults and turns inline pdf into a file attachment.
func normalizeAttachment(ctx context.Context, p AttachmentPolicy) AttachmentPolicy {
	if p.Format == "" {
		p.Format = htmlrender.FormatImage
	}

	if p.Placement == "" {
		p.Placement = mimesvc.PlacementAttachment
	}

	if p.Format == htmlrender.FormatPDF && p.Placement == mimesvc.PlacementInline {
		ylog.Debug(ctx, "pdf cannot be inline, sending it as attachment")
		p.Placement = mimesvc.PlacementAttachment
	}

	return p
}
