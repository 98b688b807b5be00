// Package main runs the botflow gateway: bot sessions, workflow execution and
// the bot control API in one process.
package main

import (
	"context"
	"os"

	"github.com/dukex/botflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("botflow")

	cmd := &cli.Command{
		Name:                  "botflow",
		Usage:                 "Run Telegram bots driven by workflow graphs",
		EnableShellCompletion: true,
		Commands: []*cli.Command{
			RunCommand(),
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("botflow exited with error", "error", err)
		os.Exit(1)
	}
}
