package api

import (
	"context"
	"log"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/emailer/cmd/cmdbase"
	"github.com/yusufsyaifudin/emailer/container"
	"github.com/yusufsyaifudin/emailer/extd"
	"github.com/yusufsyaifudin/ylog"
)

type Cmd struct {
	*cmdbase.Base
}

func NewCmd(appName, appVersion string) func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &Cmd{
			Base: cmdbase.NewBase("api", appName, appVersion),
		}
		return cmd, nil
	}
}

var _ cli.Command = (*Cmd)(nil)
var _ cli.CommandFactory = NewCmd("", "")

func (c *Cmd) Help() string {
	return `Usage: emailer api [-c config.yml]

  Start HTTP control server to manage recipients, queue and campaign run.`
}

func (c *Cmd) Synopsis() string {
	return "Start HTTP control server"
}

func (c *Cmd) Run(args []string) int {
	err := c.Flags.Parse(args)
	if err != nil {
		log.Printf("error parsing config argument: %s", err)
		return cmdbase.ExitErr
	}

	ctx := extd.SetupLog(context.Background(), "api")

	cfg, err := container.LoadConfig(c.ConfigFile)
	if err != nil {
		ylog.Error(ctx, "error load config", ylog.KV("error", err))
		return cmdbase.ExitErr
	}

	err = extd.RunServer(ctx, extd.ServerConfig{
		AppName:    c.AppName,
		AppVersion: c.AppVersion,
		Config:     cfg,
	})
	if err != nil {
		return cmdbase.ExitErr
	}

	return cmdbase.ExitSuccess
}
