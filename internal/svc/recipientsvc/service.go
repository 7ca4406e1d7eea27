package recipientsvc

import (
	"context"
	"errors"
)

var (
	ErrIngest     = errors.New("ingest error")
	ErrValidation = errors.New("validation error")
)

// Service is the durable recipient list. Every mutation is persisted before it returns.
type Service interface {
	Ingest(ctx context.Context, input InputIngest) (out OutIngest, err error)
	MarkSent(ctx context.Context, input InputMarkSent) (out OutMarkSent, err error)
	Clear(ctx context.Context) (err error)
	SelectUnsent(ctx context.Context, input InputSelectUnsent) (out OutSelectUnsent, err error)

	List(ctx context.Context) (out OutList, err error)
	FindByEmail(ctx context.Context, input InputFindByEmail) (out OutFindByEmail, err error)
	IngestChecker(ctx context.Context, input InputIngestChecker) (out OutIngestChecker, err error)
	CheckerEmails(ctx context.Context) (out OutCheckerEmails, err error)

	// OnClear registers fn which is called after Clear succeed.
	OnClear(fn ClearHook)
}

type ClearHook func(ctx context.Context)

// Record always carry "email" attribute, but it may be empty for malformed row.
type Record struct {
	ID         string
	Attributes map[string]string
	Sent       bool
}

func (r Record) Email() string {
	return r.Attributes[columnEmail]
}

type InputIngest struct {
	Raw string `validate:"required"`
}

type OutIngest struct {
	Headers []string
	Records []Record
}

type InputMarkSent struct {
	ID string `validate:"required"`
}

type OutMarkSent struct {
	// Found is false for ad-hoc queue entry which has no stored record.
	Found bool
}

type InputSelectUnsent struct {
	Limit int `validate:"min=1"`
}

type OutSelectUnsent struct {
	Records []Record
}

type OutList struct {
	Headers     []string
	Records     []Record
	SentCount   int
	UnsentCount int
}

type InputFindByEmail struct {
	Email string `validate:"required"`
}

type OutFindByEmail struct {
	Found  bool
	Record Record
}

type InputIngestChecker struct {
	Raw string `validate:"required"`
}

type OutIngestChecker struct {
	Emails []string
}

type OutCheckerEmails struct {
	Emails []string
}
