package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/junkd0g/bubbleflow/internal/generate"
	"github.com/junkd0g/bubbleflow/internal/server"
)

func newServeCmd() *cobra.Command {
	d := server.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the session API: upload two snapshots, pick columns, colors,
categories and points, then download charts or stream frames over a websocket.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().Duration("session-ttl", d.SessionTTL, "Idle time before a session is dropped")
	cmd.Flags().Duration("sweep-interval", d.SweepInterval, "How often expired sessions are removed")
	cmd.Flags().Int("workers", 0, "Render workers (default number of CPUs)")
	cmd.Flags().Bool("json-logs", false, "Log JSON lines instead of console output")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	v, err := newViper(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(v)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen := generate.New(v.GetInt("workers"), logger)
	srv := server.New(gen, logger, server.Options{
		SessionTTL:    v.GetDuration("session-ttl"),
		SweepInterval: v.GetDuration("sweep-interval"),
	})
	return srv.ListenAndServe(ctx, v.GetString("addr"))
}
