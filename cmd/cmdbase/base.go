package cmdbase

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/yusufsyaifudin/emailer/container"
	"github.com/yusufsyaifudin/emailer/extd"
	"github.com/yusufsyaifudin/ylog"
)

const (
	ExitSuccess = 0
	ExitErr     = 1
)

// Base holds flags every command shares: -config and its alias -c.
type Base struct {
	Flags      *flag.FlagSet
	AppName    string
	AppVersion string
	ConfigFile string

	// Out is where command result is printed, default to stdout.
	Out io.Writer
}

func NewBase(name, appName, appVersion string) *Base {
	b := &Base{
		Flags:      flag.NewFlagSet(name, flag.ContinueOnError),
		AppName:    appName,
		AppVersion: appVersion,
		Out:        os.Stdout,
	}

	b.Flags.StringVar(&b.ConfigFile, "config", container.DefaultConfigFile, "Config file to load")
	b.Flags.StringVar(&b.ConfigFile, "c", container.DefaultConfigFile, "Alias for config file to load")
	return b
}

// Boot parses args, sets up the logger and builds the App.
// The returned App must be closed by the caller.
func (b *Base) Boot(command string, args []string, withSender bool) (ctx context.Context, app *extd.App, err error) {
	err = b.Flags.Parse(args)
	if err != nil {
		err = fmt.Errorf("error parsing argument: %w", err)
		return
	}

	ctx = extd.SetupLog(context.Background(), command)

	cfg, err := container.LoadConfig(b.ConfigFile)
	if err != nil {
		ylog.Error(ctx, "error load config", ylog.KV("error", err))
		return
	}

	app, err = extd.NewApp(ctx, cfg, withSender)
	if err != nil {
		ylog.Error(ctx, "error prepare app", ylog.KV("error", err))
		return
	}

	return
}

// Close closes app and logs the failure.
func Close(ctx context.Context, app *extd.App) {
	if _err := app.Close(); _err != nil {
		ylog.Error(ctx, "error close app", ylog.KV("error", _err))
	}
}

func (b *Base) Printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(b.Out, format, args...)
}

// ReadInput reads whole file, "-" means stdin.
func ReadInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return string(b), nil
}
