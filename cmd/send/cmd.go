package send

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/emailer/cmd/cmdbase"
	"github.com/yusufsyaifudin/emailer/internal/svc/campaignsvc"
	"github.com/yusufsyaifudin/emailer/internal/svc/mimesvc"
	"github.com/yusufsyaifudin/emailer/pkg/htmlrender"
	"github.com/yusufsyaifudin/ylog"
)

const progressInterval = time.Second

type Cmd struct {
	*cmdbase.Base

	senderName     string
	subject        string
	bodyFile       string
	attachmentFile string
	format         string
	placement      string
	filename       string
	limit          int
	useChecker     bool
	rotate         bool
	rotateInterval int
}

func NewCmd(appName, appVersion string) func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &Cmd{
			Base: cmdbase.NewBase("send", appName, appVersion),
		}

		f := cmd.Flags
		f.StringVar(&cmd.senderName, "sender-name", "", "Sender display name, may contain tags")
		f.StringVar(&cmd.subject, "subject", "", "Subject template")
		f.StringVar(&cmd.bodyFile, "body", "", "HTML body template file")
		f.StringVar(&cmd.attachmentFile, "attachment", "", "HTML attachment template file, empty means no attachment")
		f.StringVar(&cmd.format, "format", string(htmlrender.FormatImage), "Attachment format: image or pdf")
		f.StringVar(&cmd.placement, "placement", string(mimesvc.PlacementAttachment), "Attachment placement: inline or attachment")
		f.StringVar(&cmd.filename, "filename", campaignsvc.DefaultFilename, "Attachment file name template without extension")
		f.IntVar(&cmd.limit, "limit", campaignsvc.DefaultLoadCount, "Number of unsent recipients to queue")
		f.BoolVar(&cmd.useChecker, "checker", false, "Queue the checker emails instead of unsent recipients")
		f.BoolVar(&cmd.rotate, "rotate", false, "Rotate sender name with random first name")
		f.IntVar(&cmd.rotateInterval, "rotate-interval", 0, "Rotate every N sent messages, 0 uses config")
		return cmd, nil
	}
}

var _ cli.Command = (*Cmd)(nil)

func (c *Cmd) Help() string {
	return `Usage: emailer send -subject "Hi #NAME#" -body body.html [options] [-c config.yml]

  Queue unsent recipients (or checker emails with -checker) and send them one
  by one with the active backend. Ctrl+C stops after the in-flight message.`
}

func (c *Cmd) Synopsis() string {
	return "Send a campaign to queued recipients"
}

func (c *Cmd) Run(args []string) int {
	ctx, app, err := c.Boot("send", args, true)
	if err != nil {
		return cmdbase.ExitErr
	}

	defer cmdbase.Close(ctx, app)

	input, err := c.input()
	if err != nil {
		c.Printf("%s\n", err)
		return cmdbase.ExitErr
	}

	campaign := app.Services.Campaign()

	var queue campaignsvc.OutQueue
	if c.useChecker {
		queue, err = campaign.LoadChecker(ctx)
	} else {
		queue, err = campaign.LoadUnsent(ctx, campaignsvc.InputLoadUnsent{Limit: c.limit})
	}

	if err != nil {
		ylog.Error(ctx, "cannot build queue", ylog.KV("error", err))
		c.Printf("cannot build queue: %s\n", err)
		return cmdbase.ExitErr
	}

	c.Printf("queued %d recipients\n", len(queue.Entries))

	err = campaign.Start(ctx, input)
	if err != nil {
		c.Printf("cannot start: %s\n", err)
		return cmdbase.ExitErr
	}

	err = c.follow(ctx, campaign)
	progress := campaign.Status(ctx)
	c.Printf("done: %d/%d sent\n", progress.SentCount, progress.TotalCount)
	if err != nil {
		c.Printf("stopped: %s\n", err)
		return cmdbase.ExitErr
	}

	return cmdbase.ExitSuccess
}

// follow prints progress until the run ends, first interrupt signal requests stop.
func (c *Cmd) follow(ctx context.Context, campaign campaignsvc.Service) error {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)

	done := make(chan error, 1)
	go func() {
		done <- campaign.Wait(ctx)
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-done:
			return err

		case <-signalChan:
			c.Printf("stopping after in-flight message...\n")
			campaign.Stop(ctx)

		case <-ticker.C:
			p := campaign.Status(ctx)
			c.Printf("sent %d/%d as %q\n", p.SentCount, p.TotalCount, p.SenderName)
		}
	}
}

func (c *Cmd) input() (in campaignsvc.InputStart, err error) {
	if c.subject == "" || c.bodyFile == "" {
		err = fmt.Errorf("-subject and -body are required")
		return
	}

	body, err := cmdbase.ReadInput(c.bodyFile)
	if err != nil {
		return
	}

	in = campaignsvc.InputStart{
		Template: campaignsvc.Template{
			SenderName: c.senderName,
			Subject:    c.subject,
			Body:       body,
		},
		Rotation: campaignsvc.RotationPolicy{
			Enabled:  c.rotate,
			Interval: c.rotateInterval,
		},
	}

	if c.attachmentFile == "" {
		return
	}

	html, err := cmdbase.ReadInput(c.attachmentFile)
	if err != nil {
		return
	}

	in.Template.AttachmentHTML = html
	in.Attachment = campaignsvc.AttachmentPolicy{
		Enabled:   true,
		Format:    htmlrender.Format(c.format),
		Placement: mimesvc.Placement(c.placement),
		Filename:  c.filename,
	}

	return
}
