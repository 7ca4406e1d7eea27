package campaignsvc

import (
	"context"
	"errors"
	"time"

	"github.com/yusufsyaifudin/emailer/internal/svc/mimesvc"
	"github.com/yusufsyaifudin/emailer/pkg/htmlrender"
)

var (
	ErrValidation = errors.New("validation error")
	ErrRender     = errors.New("render error")
	ErrTransport  = errors.New("transport error")
	ErrBusy       = errors.New("campaign is sending")
)

const (
	DefaultDelay            = time.Second
	DefaultRotationInterval = 10
	DefaultLoadCount        = 50
	DefaultFilename         = "attachment"
)

type State string

const (
	StateIdle    State = "idle"
	StateSending State = "sending"
)

// Service sends the queue one message at a time.
// Queue mutation is rejected with ErrBusy while a run is in progress.
type Service interface {
	Start(ctx context.Context, input InputStart) (err error)
	Stop(ctx context.Context) (out OutStop)
	Wait(ctx context.Context) (err error)
	Status(ctx context.Context) (out Progress)

	LoadUnsent(ctx context.Context, input InputLoadUnsent) (out OutQueue, err error)
	LoadChecker(ctx context.Context) (out OutQueue, err error)
	SetQueueFromText(ctx context.Context, input InputSetQueueFromText) (out OutQueue, err error)
	ClearQueue(ctx context.Context) (err error)
	Queue(ctx context.Context) (out OutQueue)
}

// QueueEntry is a working copy of a recipient, ID equals stored record id when it comes from the store.
type QueueEntry struct {
	ID         string
	Email      string
	Attributes map[string]string
}

// Template fields may contain #TAG# placeholders.
type Template struct {
	SenderName     string `validate:"-"`
	Subject        string `validate:"-"`
	Body           string `validate:"-"`
	AttachmentHTML string `validate:"-"`
}

type AttachmentPolicy struct {
	Enabled   bool              `validate:"-"`
	Format    htmlrender.Format `validate:"omitempty,oneof=image pdf"`
	Placement mimesvc.Placement `validate:"omitempty,oneof=inline attachment"`

	// Filename is a template without extension.
	Filename string `validate:"-"`
}

type RotationPolicy struct {
	Enabled  bool `validate:"-"`
	Interval int  `validate:"min=0"`
}

type InputStart struct {
	Template   Template
	Attachment AttachmentPolicy
	Rotation   RotationPolicy
}

type OutStop struct {
	// WasSending is false when there was nothing to stop.
	WasSending bool
}

// Progress is reset on every Start.
type Progress struct {
	State      State
	SentCount  int
	TotalCount int
	Error      string
	SenderName string
	StartedAt  time.Time
	FinishedAt time.Time
}

type InputLoadUnsent struct {
	Limit int `validate:"min=1"`
}

type InputSetQueueFromText struct {
	Text string `validate:"-"`
}

type OutQueue struct {
	Entries []QueueEntry
}
