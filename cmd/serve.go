package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"picbrand/internal/camera"
	"picbrand/internal/drive"
	"picbrand/internal/effects"
	"picbrand/internal/events"
	"picbrand/internal/gallery"
	"picbrand/internal/printer"
	"picbrand/internal/server"
	"picbrand/internal/storage"
)

func newServeCmd(a *app) *cobra.Command {
	var watchDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the folder watcher and the control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			logger := a.logger
			if watchDir != "" {
				cfg.WatchDir = watchDir
			}

			lock := flock.New(cfg.LockFile)
			ok, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !ok {
				return errors.New("another picbrand instance is already running")
			}
			defer lock.Unlock() //nolint:errcheck

			// Portfolio, Drive and kafka are optional; the watcher works without them.
			var portfolio server.PortfolioStore
			db, err := storage.NewStorage(ctx, cfg.Database)
			if err != nil {
				logger.Error("database unavailable, portfolio endpoints disabled", zap.Error(err))
			} else {
				defer db.Close()
				portfolio = storage.NewPortfolio(db.DB, db.Dialect, logger)
			}

			var uploader gallery.Uploader
			driveClient, err := drive.New(ctx, cfg.Drive, logger)
			if err != nil {
				logger.Error("drive authentication failed, uploads disabled", zap.Error(err))
			} else {
				defer driveClient.Close()
				uploader = driveClient
			}

			publisher := events.NewPublisher(cfg.Kafka)
			defer publisher.Close()

			prn := printer.New(cfg.Printer, logger)
			cam := camera.New(cfg.Camera, logger)

			g := gallery.New(gallery.Deps{
				Effects:  effects.NewApplier(logger, effects.WithContinueOnError(cfg.ContinueOnError)),
				Uploader: uploader,
				Printer:  prn,
				Camera:   cam,
				Events:   publisher,
				Logger:   logger,
			})
			runCtx, stopGallery := context.WithCancel(ctx)
			go g.Run(runCtx)
			defer func() {
				stopGallery()
				<-g.Done()
			}()

			if ingest := events.NewIngest(cfg.Kafka, g.Incoming(), logger); ingest != nil {
				go ingest.Run(runCtx)
			}

			if cfg.WatchDir != "" {
				if err := g.Watch(cfg.WatchDir); err != nil {
					logger.Error("initial watch failed", zap.String("dir", cfg.WatchDir), zap.Error(err))
				}
			}

			srv := server.NewServer(cfg, g, server.Deps{
				Portfolio: portfolio,
				Printer:   prn,
				Cameras:   cam,
				Events:    publisher,
				Logger:    logger,
			})

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("control api: %w", err)
				}
			}
			srv.Stop()
			return nil
		},
	}

	cmd.Flags().StringVarP(&watchDir, "watch", "w", "", "folder to watch at startup")
	return cmd
}
