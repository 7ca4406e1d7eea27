package checker

import (
	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/emailer/cmd/cmdbase"
	"github.com/yusufsyaifudin/emailer/internal/svc/recipientsvc"
	"github.com/yusufsyaifudin/ylog"
)

type Cmd struct {
	*cmdbase.Base
	file string
}

func NewCmd(appName, appVersion string) func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &Cmd{
			Base: cmdbase.NewBase("checker", appName, appVersion),
		}
		cmd.Flags.StringVar(&cmd.file, "file", "", "One email per line file, - for stdin")
		cmd.Flags.StringVar(&cmd.file, "f", "", "Alias for file")
		return cmd, nil
	}
}

var _ cli.Command = (*Cmd)(nil)

func (c *Cmd) Help() string {
	return `Usage: emailer checker -f seeds.txt [-c config.yml]

  Replace the checker email list. Without -file the stored list is printed.`
}

func (c *Cmd) Synopsis() string {
	return "Replace or show checker emails"
}

func (c *Cmd) Run(args []string) int {
	ctx, app, err := c.Boot("checker", args, false)
	if err != nil {
		return cmdbase.ExitErr
	}

	defer cmdbase.Close(ctx, app)

	recipients := app.Services.Recipients()
	if c.file == "" {
		out, err := recipients.CheckerEmails(ctx)
		if err != nil {
			ylog.Error(ctx, "cannot read checker emails", ylog.KV("error", err))
			return cmdbase.ExitErr
		}

		for _, email := range out.Emails {
			c.Printf("%s\n", email)
		}

		return cmdbase.ExitSuccess
	}

	raw, err := cmdbase.ReadInput(c.file)
	if err != nil {
		ylog.Error(ctx, "cannot read checker file", ylog.KV("error", err))
		return cmdbase.ExitErr
	}

	out, err := recipients.IngestChecker(ctx, recipientsvc.InputIngestChecker{Raw: raw})
	if err != nil {
		c.Printf("checker ingest failed: %s\n", err)
		return cmdbase.ExitErr
	}

	c.Printf("stored %d checker emails\n", len(out.Emails))
	return cmdbase.ExitSuccess
}
