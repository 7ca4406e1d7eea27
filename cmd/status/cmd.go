package status

import (
	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/emailer/cmd/cmdbase"
	"github.com/yusufsyaifudin/ylog"
)

type Cmd struct {
	*cmdbase.Base
	verbose bool
}

func NewCmd(appName, appVersion string) func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &Cmd{
			Base: cmdbase.NewBase("status", appName, appVersion),
		}
		cmd.Flags.BoolVar(&cmd.verbose, "v", false, "Print every recipient with its sent flag")
		return cmd, nil
	}
}

var _ cli.Command = (*Cmd)(nil)

func (c *Cmd) Help() string {
	return `Usage: emailer status [-v] [-c config.yml]

  Show sent and unsent count of the stored recipient list.`
}

func (c *Cmd) Synopsis() string {
	return "Show stored recipient progress"
}

func (c *Cmd) Run(args []string) int {
	ctx, app, err := c.Boot("status", args, false)
	if err != nil {
		return cmdbase.ExitErr
	}

	defer cmdbase.Close(ctx, app)

	out, err := app.Services.Recipients().List(ctx)
	if err != nil {
		ylog.Error(ctx, "cannot list recipients", ylog.KV("error", err))
		return cmdbase.ExitErr
	}

	c.Printf("total: %d, sent: %d, unsent: %d\n", len(out.Records), out.SentCount, out.UnsentCount)
	if !c.verbose {
		return cmdbase.ExitSuccess
	}

	for _, r := range out.Records {
		mark := " "
		if r.Sent {
			mark = "x"
		}

		c.Printf("[%s] %s %s\n", mark, r.ID, r.Email())
	}

	return cmdbase.ExitSuccess
}
