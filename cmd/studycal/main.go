package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
	"go.uber.org/automaxprocs/maxprocs"

	appLog "studycal/internal/log"
)

const (
	appName    = "studycal"
	appVersion = "0.1.0"
)

func main() {
	if _, err := maxprocs.Set(); err != nil {
		appLog.Error("failed to set GOMAXPROCS", err)
	}

	app := cli.NewApp()
	app.Name = appName
	app.Usage = "calendar, task and subscription backend for students"
	app.Version = appVersion
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:   "config",
			Usage:  "Path to the YAML config file",
			Value:  "./studycal.yaml",
			EnvVar: "STUDYCAL_CONFIG",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Output debug messages",
		},
	}
	app.Commands = []cli.Command{
		serveCmd,
		importCmd,
		exportCmd,
		gridCmd,
		refreshCmd,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
