package ingest

import (
	"strings"

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
			Base: cmdbase.NewBase("ingest", appName, appVersion),
		}
		cmd.Flags.StringVar(&cmd.file, "file", "", "CSV, TSV or one email per line file, - for stdin")
		cmd.Flags.StringVar(&cmd.file, "f", "", "Alias for file")
		return cmd, nil
	}
}

var _ cli.Command = (*Cmd)(nil)

func (c *Cmd) Help() string {
	return `Usage: emailer ingest -f recipients.csv [-c config.yml]

  Replace the stored recipient list. The first line is the header and must
  contain "email" column, otherwise every line is read as one email.`
}

func (c *Cmd) Synopsis() string {
	return "Replace stored recipients from a file"
}

func (c *Cmd) Run(args []string) int {
	ctx, app, err := c.Boot("ingest", args, false)
	if err != nil {
		return cmdbase.ExitErr
	}

	defer cmdbase.Close(ctx, app)

	if c.file == "" {
		c.Printf("missing -file\n")
		return cmdbase.ExitErr
	}

	raw, err := cmdbase.ReadInput(c.file)
	if err != nil {
		ylog.Error(ctx, "cannot read recipient file", ylog.KV("error", err))
		return cmdbase.ExitErr
	}

	out, err := app.Services.Recipients().Ingest(ctx, recipientsvc.InputIngest{Raw: raw})
	if err != nil {
		ylog.Error(ctx, "ingest failed", ylog.KV("error", err))
		c.Printf("ingest failed: %s\n", err)
		return cmdbase.ExitErr
	}

	c.Printf("stored %d recipients, columns: %s\n", len(out.Records), strings.Join(out.Headers, ", "))
	return cmdbase.ExitSuccess
}
