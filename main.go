package main

import (
	"log"
	"os"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/emailer/cmd/api"
	"github.com/yusufsyaifudin/emailer/cmd/checker"
	"github.com/yusufsyaifudin/emailer/cmd/gen/genapidoc"
	"github.com/yusufsyaifudin/emailer/cmd/ingest"
	"github.com/yusufsyaifudin/emailer/cmd/send"
	"github.com/yusufsyaifudin/emailer/cmd/status"
	"github.com/yusufsyaifudin/emailer/cmd/wipe"
)

func main() {
	const appName, appVersion = "emailer", "1.0.0"

	apiCmd := api.NewCmd(appName, appVersion)

	c := cli.NewCLI(appName, appVersion)
	c.Args = os.Args[1:]
	c.Autocomplete = true
	c.Commands = map[string]cli.CommandFactory{
		"":        apiCmd, // default command if no subcommand defined
		"api":     apiCmd,
		"ingest":  ingest.NewCmd(appName, appVersion),
		"checker": checker.NewCmd(appName, appVersion),
		"send":    send.NewCmd(appName, appVersion),
		"status":  status.NewCmd(appName, appVersion),
		"clear":   wipe.NewCmd(appName, appVersion),
		"gen":     genapidoc.NewCmd(appName, appVersion),
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}

	os.Exit(exitStatus)
}
