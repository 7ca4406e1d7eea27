package recipientrepo

import (
	"context"
	"errors"
)

var (
	ErrValidation = errors.New("validation error")
)

// Record is one ingested recipient. Json tag is the persisted format.
type Record struct {
	ID         string            `json:"id" validate:"required"`
	Attributes map[string]string `json:"data"`
	Sent       bool              `json:"sent"`
}

// Email return the addressable identity, may be empty for malformed row.
func (r Record) Email() string {
	return r.Attributes["email"]
}

// Repo is durable storage for the recipient list, its header row and checker email list.
type Repo interface {
	Load(ctx context.Context) (out OutLoad, err error)
	Save(ctx context.Context, in InputSave) (err error)
	SaveChecker(ctx context.Context, in InputSaveChecker) (err error)
	Clear(ctx context.Context) (err error)
}

// OutLoad contains whatever could be read. Missing key yields empty list.
type OutLoad struct {
	Records       []Record
	Headers       []string
	CheckerEmails []string
}

type InputSave struct {
	Records []Record `validate:"dive"`
	Headers []string `validate:"-"`
}

type InputSaveChecker struct {
	Emails []string `validate:"dive,simplemail"`
}
