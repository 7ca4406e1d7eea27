package recipientsvc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yusufsyaifudin/emailer/internal/svc/recipientrepo"
	"github.com/yusufsyaifudin/emailer/pkg/tracer"
	"github.com/yusufsyaifudin/emailer/pkg/uid"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
)

type DefaultServiceConfig struct {
	UIDGen        uid.UID            `validate:"required"`
	RecipientRepo recipientrepo.Repo `validate:"required"`
	Now           func() time.Time   `validate:"-"`
}

// DefaultService keeps the whole list in memory and writes through into the repo.
type DefaultService struct {
	Config DefaultServiceConfig

	lock    sync.RWMutex
	headers []string
	records []recipientrepo.Record
	checker []string
	hooks   []ClearHook
}

var _ Service = (*DefaultService)(nil)

// New loads previously persisted data. Unreadable data is logged and treated as empty.
func New(ctx context.Context, dep DefaultServiceConfig) (*DefaultService, error) {
	if err := validator.Validate(dep); err != nil {
		return nil, err
	}

	if dep.Now == nil {
		dep.Now = time.Now
	}

	svc := &DefaultService{
		Config:  dep,
		headers: make([]string, 0),
		records: make([]recipientrepo.Record, 0),
		checker: make([]string, 0),
	}

	loaded, err := dep.RecipientRepo.Load(ctx)
	if err != nil {
		ylog.Warn(ctx, "previous recipient data cannot be fully loaded, starting with what is readable", ylog.KV("error", err))
	}

	svc.headers = loaded.Headers
	svc.records = loaded.Records
	svc.checker = loaded.CheckerEmails

	ylog.Info(ctx, "recipient store loaded",
		ylog.KV("records", len(svc.records)),
		ylog.KV("checker_emails", len(svc.checker)),
	)
	return svc, nil
}

// Ingest replaces every stored record. On error nothing is changed.
func (d *DefaultService) Ingest(ctx context.Context, input InputIngest) (out OutIngest, err error) {
	ctx, span := tracer.StartSpan(ctx, "recipientsvc.Ingest")
	defer span.End()

	err = validator.Validate(input)
	if err != nil {
		err = fmt.Errorf("%w: input is empty", ErrIngest)
		return
	}

	table, err := parseTable(input.Raw)
	if err != nil {
		return
	}

	now := d.Config.Now().UnixMilli()
	records := make([]recipientrepo.Record, 0, len(table.Rows))
	for _, row := range table.Rows {
		nextID, _err := d.Config.UIDGen.NextID()
		if _err != nil {
			err = fmt.Errorf("cannot get next id: %w", _err)
			return
		}

		records = append(records, recipientrepo.Record{
			ID:         fmt.Sprintf("%s-%d-%d", row[columnEmail], now, nextID),
			Attributes: row,
			Sent:       false,
		})
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	err = d.Config.RecipientRepo.Save(ctx, recipientrepo.InputSave{
		Records: records,
		Headers: table.Headers,
	})
	if err != nil {
		err = fmt.Errorf("persist ingested recipients: %w", err)
		return
	}

	d.records = records
	d.headers = table.Headers

	ylog.Info(ctx, "recipients ingested", ylog.KV("records", len(records)), ylog.KV("headers", table.Headers))

	out = OutIngest{
		Headers: copyStrings(table.Headers),
		Records: recordsFromRepo(records),
	}
	return
}

// MarkSent is idempotent. In-memory flag stays set even when persisting fails.
func (d *DefaultService) MarkSent(ctx context.Context, input InputMarkSent) (out OutMarkSent, err error) {
	err = validator.Validate(input)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	idx := -1
	for i, r := range d.records {
		if r.ID == input.ID {
			idx = i
			break
		}
	}

	if idx < 0 {
		return
	}

	out.Found = true
	if d.records[idx].Sent {
		return
	}

	d.records[idx].Sent = true
	err = d.save(ctx)
	if err != nil {
		err = fmt.Errorf("persist sent flag of %s: %w", input.ID, err)
		return
	}

	return
}

func (d *DefaultService) Clear(ctx context.Context) (err error) {
	d.lock.Lock()
	err = d.Config.RecipientRepo.Clear(ctx)
	if err != nil {
		d.lock.Unlock()
		err = fmt.Errorf("clear recipient store: %w", err)
		return
	}

	d.records = make([]recipientrepo.Record, 0)
	d.headers = make([]string, 0)
	hooks := append([]ClearHook{}, d.hooks...)
	d.lock.Unlock()

	ylog.Info(ctx, "recipient store cleared")

	// hooks run outside the lock so they may call back into this service
	for _, hook := range hooks {
		hook(ctx)
	}

	return
}

// SelectUnsent takes the first Limit unsent records in stored order,
// then drops the ones without email. Result may be shorter than Limit.
func (d *DefaultService) SelectUnsent(ctx context.Context, input InputSelectUnsent) (out OutSelectUnsent, err error) {
	err = validator.Validate(input)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	d.lock.RLock()
	defer d.lock.RUnlock()

	out.Records = make([]Record, 0, input.Limit)
	scanned := 0
	for _, r := range d.records {
		if scanned >= input.Limit {
			break
		}

		if r.Sent {
			continue
		}

		scanned++
		if r.Email() == "" {
			ylog.Warn(ctx, "skipping record without email", ylog.KV("id", r.ID), ylog.KV("data", r.Attributes))
			continue
		}

		out.Records = append(out.Records, recordFromRepo(r))
	}

	return
}

func (d *DefaultService) List(ctx context.Context) (out OutList, err error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	out = OutList{
		Headers: copyStrings(d.headers),
		Records: recordsFromRepo(d.records),
	}

	for _, r := range d.records {
		if r.Sent {
			out.SentCount++
			continue
		}

		out.UnsentCount++
	}

	return
}

// FindByEmail return the last record with this email, the same one a lookup table keyed by email would keep.
func (d *DefaultService) FindByEmail(ctx context.Context, input InputFindByEmail) (out OutFindByEmail, err error) {
	err = validator.Validate(input)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	d.lock.RLock()
	defer d.lock.RUnlock()

	for i := len(d.records) - 1; i >= 0; i-- {
		if d.records[i].Email() == input.Email {
			out = OutFindByEmail{
				Found:  true,
				Record: recordFromRepo(d.records[i]),
			}
			return
		}
	}

	return
}

// IngestChecker replaces the checker list with every valid email line in Raw.
func (d *DefaultService) IngestChecker(ctx context.Context, input InputIngestChecker) (out OutIngestChecker, err error) {
	err = validator.Validate(input)
	if err != nil {
		err = fmt.Errorf("%w: input is empty", ErrIngest)
		return
	}

	emails := parseEmailList(input.Raw)
	if len(emails) == 0 {
		err = fmt.Errorf("%w: no valid email addresses", ErrIngest)
		return
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	err = d.Config.RecipientRepo.SaveChecker(ctx, recipientrepo.InputSaveChecker{Emails: emails})
	if err != nil {
		err = fmt.Errorf("persist checker emails: %w", err)
		return
	}

	d.checker = emails
	ylog.Info(ctx, "checker emails ingested", ylog.KV("emails", len(emails)))

	out.Emails = copyStrings(emails)
	return
}

func (d *DefaultService) CheckerEmails(ctx context.Context) (out OutCheckerEmails, err error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	out.Emails = copyStrings(d.checker)
	return
}

func (d *DefaultService) OnClear(fn ClearHook) {
	if fn == nil {
		return
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	d.hooks = append(d.hooks, fn)
}

// save must be called with lock held.
func (d *DefaultService) save(ctx context.Context) error {
	return d.Config.RecipientRepo.Save(ctx, recipientrepo.InputSave{
		Records: d.records,
		Headers: d.headers,
	})
}
