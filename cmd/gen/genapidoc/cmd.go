package genapidoc

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/mitchellh/cli"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/emailer/cmd/cmdbase"
	"github.com/yusufsyaifudin/emailer/extd"
	"github.com/yusufsyaifudin/openapidoc/utils"
	"github.com/yusufsyaifudin/ylog"
)

const defaultOutDir = "assets/apidoc"

type Cmd struct {
	Flags      *flag.FlagSet
	AppName    string
	AppVersion string
	Out        io.Writer

	outDir    string
	serverURL string
}

func NewCmd(appName, appVersion string) func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &Cmd{
			Flags:      flag.NewFlagSet("gen", flag.ContinueOnError),
			AppName:    appName,
			AppVersion: appVersion,
			Out:        os.Stdout,
		}

		cmd.Flags.StringVar(&cmd.outDir, "out", defaultOutDir, "Directory to write swagger.json and swagger.yaml")
		cmd.Flags.StringVar(&cmd.serverURL, "server", "http://localhost:8080", "Server URL written in the document")
		return cmd, nil
	}
}

var _ cli.Command = (*Cmd)(nil)

func (c *Cmd) Help() string {
	return `Usage: emailer gen [-out assets/apidoc] [-server http://localhost:8080]

  Generate OpenAPI document of the HTTP control API as json and yaml.`
}

func (c *Cmd) Synopsis() string {
	return "Generate OpenAPI document of the HTTP API"
}

func (c *Cmd) Run(args []string) int {
	if err := c.Flags.Parse(args); err != nil {
		return cmdbase.ExitErr
	}

	ctx := extd.SetupLog(context.Background(), "gen")

	files, err := c.generate(ctx)
	if err != nil {
		ylog.Error(ctx, "cannot generate api doc", ylog.KV("error", err))
		return cmdbase.ExitErr
	}

	for _, f := range files {
		_, _ = fmt.Fprintf(c.Out, "written %s\n", f)
	}

	return cmdbase.ExitSuccess
}

func (c *Cmd) generate(ctx context.Context) (files []string, err error) {
	doc, err := Build(ctx, BuildConfig{
		Title:     c.AppName,
		Version:   c.AppVersion,
		ServerURL: c.serverURL,
	}, Routes())
	if err != nil {
		return
	}

	j, err := doc.MarshalJSON()
	if err != nil {
		err = fmt.Errorf("cannot marshal openapi3 doc: %w", err)
		return
	}

	var i interface{}
	err = json.Unmarshal(j, &i)
	if err != nil {
		err = fmt.Errorf("cannot unmarshal openapi3 doc: %w", err)
		return
	}

	y, err := utils.YamlMarshalIndent(i)
	if err != nil {
		err = fmt.Errorf("cannot marshal YAML openapi3 doc: %w", err)
		return
	}

	err = os.MkdirAll(c.outDir, 0o755)
	if err != nil {
		err = fmt.Errorf("cannot create directory %s: %w", c.outDir, err)
		return
	}

	contents := map[string][]byte{
		"swagger.json": j,
		"swagger.yaml": y,
	}

	for _, name := range []string{"swagger.json", "swagger.yaml"} {
		fileName := filepath.Join(c.outDir, name)
		err = renameio.WriteFile(fileName, contents[name], 0o644)
		if err != nil {
			err = fmt.Errorf("cannot write %s: %w", fileName, err)
			return
		}

		files = append(files, fileName)
	}

	return
}
