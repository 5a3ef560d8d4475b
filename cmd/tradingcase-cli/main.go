package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

const version = "1.0.0"

var (
	configPath string
	logLevel   string
)

func main() {
	_ = godotenv.Load()

	app := cli.NewApp()
	app.Name = "tradingcase-cli"
	app.Version = version
	app.Usage = "run and compare daily moving-average backtests"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "config/tradingcase.yaml",
			Usage:       "path to the YAML configuration; a missing default file is ignored",
			EnvVars:     []string{"TRADINGCASE_CONFIG"},
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Value:       "warn",
			Usage:       "log level for engine and data source messages",
			Destination: &logLevel,
		},
	}
	app.Commands = []*cli.Command{
		runCommand,
		compareCommand,
		strategiesCommand,
		historyCommand,
		remoteCommand,
		{
			Name:  "version",
			Usage: "print the CLI version",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "tradingcase-cli %s\n", version)
				return nil
			},
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
