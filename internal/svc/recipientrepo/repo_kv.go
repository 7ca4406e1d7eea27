package recipientrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/yusufsyaifudin/emailer/pkg/kvstore"
	"github.com/yusufsyaifudin/emailer/pkg/tracer"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"go.uber.org/multierr"
)

const (
	keyRecords = "bulk_data"
	keyHeaders = "bulk_headers"
	keyChecker = "checker_emails"
)

type KVConfig struct {
	KV kvstore.KV `validate:"required"`

	// Namespace separates several campaigns sharing one store, i.e: "default".
	Namespace string `validate:"required,alphanum"`
}

type KVRepo struct {
	kv kvstore.KV
	ns string
}

var _ Repo = (*KVRepo)(nil)

func NewKV(cfg KVConfig) (*KVRepo, error) {
	err := validator.Validate(cfg)
	if err != nil {
		err = fmt.Errorf("recipient repo config: %w", err)
		return nil, err
	}

	return &KVRepo{
		kv: cfg.KV,
		ns: cfg.Namespace,
	}, nil
}

// Load reads every key independently. Errors are combined and returned next to
// the partial result, so the caller can treat unreadable data as empty.
func (k *KVRepo) Load(ctx context.Context) (out OutLoad, err error) {
	ctx, span := tracer.StartSpan(ctx, "recipientrepo.KVRepo.Load")
	defer span.End()

	out = OutLoad{
		Records:       make([]Record, 0),
		Headers:       make([]string, 0),
		CheckerEmails: make([]string, 0),
	}

	var records []Record
	if _err := k.get(ctx, keyRecords, &records); _err != nil {
		err = multierr.Append(err, _err)
	} else if records != nil {
		out.Records = records
	}

	var headers []string
	if _err := k.get(ctx, keyHeaders, &headers); _err != nil {
		err = multierr.Append(err, _err)
	} else if headers != nil {
		out.Headers = headers
	}

	var checker []string
	if _err := k.get(ctx, keyChecker, &checker); _err != nil {
		err = multierr.Append(err, _err)
	} else if checker != nil {
		out.CheckerEmails = checker
	}

	return
}

func (k *KVRepo) Save(ctx context.Context, in InputSave) (err error) {
	ctx, span := tracer.StartSpan(ctx, "recipientrepo.KVRepo.Save")
	defer span.End()

	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	if in.Records == nil {
		in.Records = make([]Record, 0)
	}

	if in.Headers == nil {
		in.Headers = make([]string, 0)
	}

	err = k.kv.Set(ctx, k.key(keyRecords), in.Records)
	if err != nil {
		err = fmt.Errorf("save recipients: %w", err)
		return
	}

	err = k.kv.Set(ctx, k.key(keyHeaders), in.Headers)
	if err != nil {
		err = fmt.Errorf("save headers: %w", err)
		return
	}

	return
}

func (k *KVRepo) SaveChecker(ctx context.Context, in InputSaveChecker) (err error) {
	err = validator.Validate(in)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrValidation, err)
		return
	}

	if in.Emails == nil {
		in.Emails = make([]string, 0)
	}

	err = k.kv.Set(ctx, k.key(keyChecker), in.Emails)
	if err != nil {
		err = fmt.Errorf("save checker emails: %w", err)
	}

	return
}

// Clear removes recipients and headers. Checker list is kept.
func (k *KVRepo) Clear(ctx context.Context) (err error) {
	err = k.kv.Delete(ctx, k.key(keyRecords), k.key(keyHeaders))
	if err != nil {
		err = fmt.Errorf("clear recipients: %w", err)
	}

	return
}

func (k *KVRepo) get(ctx context.Context, key string, out interface{}) error {
	err := k.kv.GetAs(ctx, k.key(key), out)
	if errors.Is(err, kvstore.ErrKeyNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}

	return nil
}

func (k *KVRepo) key(name string) string {
	return fmt.Sprintf("%s:%s", k.ns, name)
}
