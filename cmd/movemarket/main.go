package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "movemarket",
		Usage: "Moving marketplace API server",
		Commands: []*cli.Command{
			serveCommand,
			seedCommand,
			reqcodeCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("application failed")
	}
}
