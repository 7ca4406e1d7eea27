package campaignsvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/yusufsyaifudin/emailer/internal/svc/recipientsvc"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
)

// LoadUnsent replaces the queue with up to Limit unsent stored records.
func (d *DefaultService) LoadUnsent(ctx context.Context, input InputLoadUnsent) (out OutQueue, err error) {
	err = validator.Validate(input)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	if err = d.ensureIdle(); err != nil {
		return
	}

	selected, err := d.Config.Recipients.SelectUnsent(ctx, recipientsvc.InputSelectUnsent{Limit: input.Limit})
	if err != nil {
		return
	}

	entries := make([]QueueEntry, 0, len(selected.Records))
	for _, r := range selected.Records {
		entries = append(entries, entryFromRecord(r))
	}

	out, err = d.replaceQueue(ctx, entries)
	return
}

// LoadChecker queues every checker email, using stored data when the email is known.
func (d *DefaultService) LoadChecker(ctx context.Context) (out OutQueue, err error) {
	if err = d.ensureIdle(); err != nil {
		return
	}

	checker, err := d.Config.Recipients.CheckerEmails(ctx)
	if err != nil {
		return
	}

	entries := make([]QueueEntry, 0, len(checker.Emails))
	for _, email := range checker.Emails {
		entry, _err := d.fromStoreOrNew(ctx, email)
		if _err != nil {
			err = _err
			return
		}

		entries = append(entries, entry)
	}

	out, err = d.replaceQueue(ctx, entries)
	return
}

// SetQueueFromText rebuilds the queue from one email per line. Invalid lines are kept,
// they are filtered out only when a run starts.
func (d *DefaultService) SetQueueFromText(ctx context.Context, input InputSetQueueFromText) (out OutQueue, err error) {
	if err = d.ensureIdle(); err != nil {
		return
	}

	d.lock.Lock()
	existing := make(map[string]QueueEntry, len(d.queue))
	for _, e := range d.queue {
		existing[e.Email] = copyEntry(e)
	}
	d.lock.Unlock()

	entries := make([]QueueEntry, 0)
	for _, line := range strings.Split(input.Text, "\n") {
		email := strings.TrimSpace(line)
		if email == "" {
			continue
		}

		if e, ok := existing[email]; ok {
			entries = append(entries, e)
			continue
		}

		entry, _err := d.fromStoreOrNew(ctx, email)
		if _err != nil {
			err = _err
			return
		}

		entries = append(entries, entry)
	}

	out, err = d.replaceQueue(ctx, entries)
	return
}

func (d *DefaultService) ClearQueue(ctx context.Context) (err error) {
	_, err = d.replaceQueue(ctx, make([]QueueEntry, 0))
	return
}

func (d *DefaultService) Queue(ctx context.Context) (out OutQueue) {
	d.lock.Lock()
	defer d.lock.Unlock()

	out.Entries = make([]QueueEntry, 0, len(d.queue))
	for _, e := range d.queue {
		out.Entries = append(out.Entries, copyEntry(e))
	}

	return
}

func (d *DefaultService) replaceQueue(ctx context.Context, entries []QueueEntry) (out OutQueue, err error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.progress.State == StateSending {
		err = ErrBusy
		return
	}

	d.queue = entries
	ylog.Debug(ctx, "queue replaced", ylog.KV("entries", len(entries)))

	out.Entries = make([]QueueEntry, 0, len(entries))
	for _, e := range entries {
		out.Entries = append(out.Entries, copyEntry(e))
	}

	return
}

func (d *DefaultService) ensureIdle() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.progress.State == StateSending {
		return ErrBusy
	}

	return nil
}

// fromStoreOrNew synthesizes an ad-hoc entry carrying only the email when the store has no record.
func (d *DefaultService) fromStoreOrNew(ctx context.Context, email string) (QueueEntry, error) {
	found, err := d.Config.Recipients.FindByEmail(ctx, recipientsvc.InputFindByEmail{Email: email})
	if err != nil {
		return QueueEntry{}, err
	}

	if found.Found {
		return entryFromRecord(found.Record), nil
	}

	return QueueEntry{
		ID:         fmt.Sprintf("%s-%d", email, d.Config.Now().UnixMilli()),
		Email:      email,
		Attributes: map[string]string{"email": email},
	}, nil
}

func entryFromRecord(r recipientsvc.Record) QueueEntry {
	return QueueEntry{
		ID:         r.ID,
		Email:      r.Email(),
		Attributes: r.Attributes,
	}
}

func copyEntry(e QueueEntry) QueueEntry {
	attrs := make(map[string]string, len(e.Attributes))
	for k, v := range e.Attributes {
		attrs[k] = v
	}

	e.Attributes = attrs
	return e
}

// removeEntry drops only the first entry with id, ad-hoc entries may share one.
func removeEntry(queue []QueueEntry, id string) []QueueEntry {
	out := make([]QueueEntry, 0, len(queue))
	removed := false
	for _, e := range queue {
		if !removed && e.ID == id {
			removed = true
			continue
		}

		out = append(out, e)
	}

	return out
}
