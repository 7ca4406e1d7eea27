package httptyped

import (
	"time"

	"github.com/yusufsyaifudin/emailer/internal/svc/campaignsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientsvc"
)

type RecipientEntity struct {
	ID   string            `json:"id"`
	Data map[string]string `json:"data"`
	Sent bool              `json:"sent"`
}

func RecipientEntityFromSvc(r recipientsvc.Record) RecipientEntity {
	return RecipientEntity{
		ID:   r.ID,
		Data: r.Attributes,
		Sent: r.Sent,
	}
}

func RecipientEntitiesFromSvc(in []recipientsvc.Record) []RecipientEntity {
	out := make([]RecipientEntity, 0, len(in))
	for _, r := range in {
		out = append(out, RecipientEntityFromSvc(r))
	}

	return out
}

type QueueEntryEntity struct {
	ID    string            `json:"id"`
	Email string            `json:"email"`
	Data  map[string]string `json:"data"`
}

func QueueEntitiesFromSvc(in []campaignsvc.QueueEntry) []QueueEntryEntity {
	out := make([]QueueEntryEntity, 0, len(in))
	for _, e := range in {
		out = append(out, QueueEntryEntity{
			ID:    e.ID,
			Email: e.Email,
			Data:  e.Attributes,
		})
	}

	return out
}

type ProgressEntity struct {
	State      string     `json:"state"`
	SentCount  int        `json:"sent_count"`
	TotalCount int        `json:"total_count"`
	Error      string     `json:"error,omitempty"`
	SenderName string     `json:"sender_name,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

func ProgressEntityFromSvc(p campaignsvc.Progress) ProgressEntity {
	out := ProgressEntity{
		State:      string(p.State),
		SentCount:  p.SentCount,
		TotalCount: p.TotalCount,
		Error:      p.Error,
		SenderName: p.SenderName,
	}

	if !p.StartedAt.IsZero() {
		t := p.StartedAt.UTC()
		out.StartedAt = &t
	}

	if !p.FinishedAt.IsZero() {
		t := p.FinishedAt.UTC()
		out.FinishedAt = &t
	}

	return out
}
