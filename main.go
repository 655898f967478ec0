package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"gitlab.com/navguard/clicmds"
)

func main() {
	app := cli.NewApp()
	app.Name = "navguard"
	app.Version = "0.1"
	app.Usage = "Navigation arbitration and content script tooling"
	app.Commands = []*cli.Command{
		{
			Name:    "resolve",
			Aliases: []string{"r"},
			Usage:   "run a url through the redirect resolver",
			Action:  clicmds.Resolve,
			Flags:   clicmds.ResolveFlags(),
		},
		{
			Name:    "scripts",
			Aliases: []string{"s"},
			Usage:   "dump the computed script set for a page",
			Action:  clicmds.Scripts,
			Flags:   clicmds.ScriptsFlags(),
		},
	}
	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
