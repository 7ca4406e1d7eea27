package extd

import (
	"context"
	"fmt"
	"io"

	"github.com/yusufsyaifudin/emailer/backend"
	"github.com/yusufsyaifudin/emailer/backend/begmail"
	"github.com/yusufsyaifudin/emailer/backend/beses"
	"github.com/yusufsyaifudin/emailer/backend/besmtp"
	"github.com/yusufsyaifudin/emailer/container"
	"github.com/yusufsyaifudin/ylog"
)

// RegisterBackends registers every configured backend into mux.
// Closers of backends holding connection are returned so caller can release them.
func RegisterBackends(ctx context.Context, mux *backend.SenderMultiplexer, conf container.ConfigBackends) (closers []io.Closer, err error) {
	closers = make([]io.Closer, 0)

	if conf.Noop != nil {
		err = mux.Register("noop", backend.NewNoopSender(backend.Identity{
			Email: conf.Noop.Email,
			Name:  conf.Noop.Name,
		}))
		if err != nil {
			err = fmt.Errorf("register backend noop failed: %w", err)
			return
		}
	}

	if conf.Gmail != nil {
		beGmail, _err := begmail.NewBE(ctx, *conf.Gmail)
		if _err != nil {
			err = fmt.Errorf("be gmail failed: %w", _err)
			return
		}

		err = mux.Register("gmail", beGmail)
		if err != nil {
			err = fmt.Errorf("register backend gmail failed: %w", err)
			return
		}
	}

	if conf.SMTP != nil {
		beSmtp, _err := besmtp.NewBE(&besmtp.Config{Credential: conf.SMTP})
		if _err != nil {
			err = fmt.Errorf("be smtp failed: %w", _err)
			return
		}

		closers = append(closers, beSmtp)
		err = mux.Register("smtp", beSmtp)
		if err != nil {
			err = fmt.Errorf("register backend smtp failed: %w", err)
			return
		}
	}

	if conf.SES != nil {
		beSes, _err := beses.NewBE(ctx, *conf.SES)
		if _err != nil {
			err = fmt.Errorf("be ses failed: %w", _err)
			return
		}

		err = mux.Register("ses", beSes)
		if err != nil {
			err = fmt.Errorf("register backend ses failed: %w", err)
			return
		}
	}

	ylog.Info(ctx, "backends registered", ylog.KV("providers", mux.ListProviders(ctx)))
	return
}
