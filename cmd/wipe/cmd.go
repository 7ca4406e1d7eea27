package wipe

import (
	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/emailer/cmd/cmdbase"
	"github.com/yusufsyaifudin/ylog"
)

type Cmd struct {
	*cmdbase.Base
	yes bool
}

func NewCmd(appName, appVersion string) func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &Cmd{
			Base: cmdbase.NewBase("clear", appName, appVersion),
		}
		cmd.Flags.BoolVar(&cmd.yes, "yes", false, "Confirm removing all recipients")
		return cmd, nil
	}
}

var _ cli.Command = (*Cmd)(nil)

func (c *Cmd) Help() string {
	return `Usage: emailer clear -yes [-c config.yml]

  Remove every stored recipient and its sent flag. Checker emails are kept.`
}

func (c *Cmd) Synopsis() string {
	return "Remove all stored recipients"
}

func (c *Cmd) Run(args []string) int {
	ctx, app, err := c.Boot("clear", args, false)
	if err != nil {
		return cmdbase.ExitErr
	}

	defer cmdbase.Close(ctx, app)

	if !c.yes {
		c.Printf("refusing to clear without -yes\n")
		return cmdbase.ExitErr
	}

	err = app.Services.Recipients().Clear(ctx)
	if err != nil {
		ylog.Error(ctx, "clear failed", ylog.KV("error", err))
		return cmdbase.ExitErr
	}

	c.Printf("all recipients removed\n")
	return cmdbase.ExitSuccess
}
