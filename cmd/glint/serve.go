package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/glintd/glint/internal/config"
	"github.com/glintd/glint/internal/daemon"
	"github.com/glintd/glint/internal/workerpool"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "serve status requests on stdin/stdout until EOF",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool := workerpool.Init(config.Glint.NumThreads)
		d := daemon.New(daemon.Options{
			Pool:              pool,
			DirtyMaxIndexSize: config.Glint.DirtyMaxIndexSize,
		})
		logrus.WithField("threads", pool.NumThreads()).Info("serving status requests")
		return d.Run(cmd.Context(), os.Stdin, os.Stdout)
	},
}
