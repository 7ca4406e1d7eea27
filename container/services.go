package container

import (
	"context"
	"fmt"

	"github.com/yusufsyaifudin/emailer/backend"
	"github.com/yusufsyaifudin/emailer/internal/svc/campaignsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/mimesvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientrepo"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/tagsvc"
	"github.com/yusufsyaifudin/emailer/pkg/htmlrender"
	"github.com/yusufsyaifudin/emailer/pkg/uid"
)

type Services interface {
	UIDGen() uid.UID
	Recipients() recipientsvc.Service
	Campaign() campaignsvc.Service
	Tags() *tagsvc.Engine
}

type ServicesImpl struct {
	uidGen     uid.UID
	recipients *recipientsvc.DefaultService
	campaign   *campaignsvc.DefaultService
	tags       *tagsvc.Engine
}

var _ Services = (*ServicesImpl)(nil)

func SetupServices(ctx context.Context, conf Config, repo recipientrepo.Repo, sender backend.Sender) (svc *ServicesImpl, err error) {
	if repo == nil {
		err = fmt.Errorf("nil recipient repository on services preparation")
		return
	}

	if sender == nil {
		err = fmt.Errorf("nil sender on services preparation")
		return
	}

	uidGen := uid.NewSonyflake()

	// ** Recipient store, loads persisted data at once
	recipients, err := recipientsvc.New(ctx, recipientsvc.DefaultServiceConfig{
		UIDGen:        uidGen,
		RecipientRepo: repo,
	})
	if err != nil {
		err = fmt.Errorf("services cannot prepare recipient service: %w", err)
		return
	}

	renderer, err := SetupRenderer(conf.Renderer)
	if err != nil {
		err = fmt.Errorf("services cannot prepare renderer: %w", err)
		return
	}

	tags := tagsvc.New(tagsvc.Config{})

	// ** Campaign send loop
	campaign, err := campaignsvc.New(campaignsvc.DefaultServiceConfig{
		Recipients:       recipients,
		Sender:           sender,
		Renderer:         renderer,
		Tags:             tags,
		Builder:          mimesvc.NewBuilder(mimesvc.Config{}),
		Delay:            conf.CampaignDelay(),
		RotationInterval: conf.Campaign.RotationInterval,
	})
	if err != nil {
		err = fmt.Errorf("services cannot prepare campaign service: %w", err)
		return
	}

	svc = &ServicesImpl{
		uidGen:     uidGen,
		recipients: recipients,
		campaign:   campaign,
		tags:       tags,
	}

	return svc, nil
}

func SetupRenderer(conf ConfigRenderer) (htmlrender.Renderer, error) {
	switch conf.Driver {
	case "gotenberg":
		if conf.Gotenberg == nil {
			return nil, fmt.Errorf("renderer driver gotenberg needs gotenberg section")
		}

		return htmlrender.NewGotenberg(htmlrender.GotenbergConfig{
			BaseURL: conf.Gotenberg.URL,
			Timeout: conf.Gotenberg.Timeout,
		})

	case "noop", "":
		return htmlrender.NewNoop(), nil

	default:
		return nil, fmt.Errorf("not supported renderer driver '%s'", conf.Driver)
	}
}

func (s *ServicesImpl) UIDGen() uid.UID {
	return s.uidGen
}

func (s *ServicesImpl) Recipients() recipientsvc.Service {
	return s.recipients
}

func (s *ServicesImpl) Campaign() campaignsvc.Service {
	return s.campaign
}

func (s *ServicesImpl) Tags() *tagsvc.Engine {
	return s.tags
}
