package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AlibekovAA/authcore/internal/common/bootstrap"
	srv "github.com/AlibekovAA/authcore/internal/common/server"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewAuthApp(ctx, cfg, log)
	if err != nil {
		log.Errorf("failed to start auth service: %v", err)
		return err
	}

	server := srv.NewServer(srv.NewServerConfig(cfg.HTTPPort, cfg.RequestTimeout), app.Handler())
	hooks := []srv.ShutdownHook{
		func(context.Context) error {
			log.Infof("auth service: releasing resources")
			app.Close()
			return nil
		},
	}

	return srv.StartWithGracefulShutdownAndHooks(ctx, server, log, "auth", hooks)
}
