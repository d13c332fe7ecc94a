package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"picbrand/internal/camera"
	"picbrand/internal/drive"
	"picbrand/internal/effects"
	"picbrand/internal/events"
	"picbrand/internal/gallery"
	"picbrand/internal/printer"
	"picbrand/internal/storage"
	"picbrand/internal/watcher"
)

// collectImages expands directory arguments into the images they hold.
// Plain file arguments are kept as given.
func collectImages(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && watcher.IsImagePath(e.Name()) {
				out = append(out, filepath.Join(arg, e.Name()))
			}
		}
	}
	return out, nil
}

// withGallery runs a short-lived gallery seeded with paths. Queued events
// are flushed before it returns.
func withGallery(ctx context.Context, a *app, deps gallery.Deps, paths []string, fn func(*gallery.Gallery) error) error {
	deps.Logger = a.logger
	if deps.Events == nil {
		publisher := events.NewPublisher(a.cfg.Kafka)
		defer publisher.Close()
		deps.Events = publisher
	}

	ctx, cancel := context.WithCancel(ctx)
	g := gallery.New(deps)
	go g.Run(ctx)
	defer func() {
		cancel()
		<-g.Done()
	}()

	for _, p := range paths {
		if err := g.Enqueue(ctx, p); err != nil {
			return err
		}
	}
	return fn(g)
}

func newApplyCmd(a *app) *cobra.Command {
	var (
		filter          string
		continueOnError bool
	)

	cmd := &cobra.Command{
		Use:   "apply <image|dir>...",
		Short: "Apply an effect to images, writing suffixed siblings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := collectImages(args)
			if err != nil {
				return err
			}
			keepGoing := a.cfg.ContinueOnError || continueOnError
			deps := gallery.Deps{
				Effects: effects.NewApplier(a.logger, effects.WithContinueOnError(keepGoing)),
			}

			return withGallery(cmd.Context(), a, deps, paths, func(g *gallery.Gallery) error {
				results, err := g.ApplyEffect(cmd.Context(), filter)
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					status := "ok"
					if r.Err != nil {
						status = r.Err.Error()
					}
					rows = append(rows, []string{r.Source, r.Output, status})
				}
				if len(rows) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Source", "Output", "Status"}, rows))
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "effect name, one of: "+fmt.Sprint(effects.Names()))
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "keep going when an image fails")
	_ = cmd.MarkFlagRequired("filter")
	return cmd
}

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <image|dir>...",
		Short: "Upload images to Google Drive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := collectImages(args)
			if err != nil {
				return err
			}
			client, err := drive.New(cmd.Context(), a.cfg.Drive, a.logger)
			if err != nil {
				return err
			}
			defer client.Close()

			return withGallery(cmd.Context(), a, gallery.Deps{Uploader: client}, paths, func(g *gallery.Gallery) error {
				pending, err := g.Pending(cmd.Context())
				if err != nil {
					return err
				}
				ids, err := g.Upload(cmd.Context())
				rows := make([][]string, 0, len(ids))
				for i, id := range ids {
					rows = append(rows, []string{pending[i], id})
				}
				if len(rows) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Image", "Drive ID"}, rows))
				}
				return err
			})
		},
	}
}

func newAuthCmd(a *app) *cobra.Command {
	auth := &cobra.Command{
		Use:   "auth",
		Short: "Authorize external services",
	}
	auth.AddCommand(&cobra.Command{
		Use:   "drive",
		Short: "Run the Google Drive consent flow and store the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return drive.Authorize(cmd.Context(), a.cfg.Drive, a.logger, func(url string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in a browser to grant access:\n\n  %s\n\n", url)
			})
		},
	})
	return auth
}

func newPrintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "print <image|dir>...",
		Short: "Print the most recent of the given images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := collectImages(args)
			if err != nil {
				return err
			}
			prn := printer.New(a.cfg.Printer, a.logger)

			return withGallery(cmd.Context(), a, gallery.Deps{Printer: prn}, paths, func(g *gallery.Gallery) error {
				job, err := g.PrintLast(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "submitted job %s\n", job)
				return nil
			})
		},
	}
}

func newPrinterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "printer",
		Short: "Show the printer jobs are sent to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := printer.New(a.cfg.Printer, a.logger).Selected(cmd.Context())
			if errors.Is(err, printer.ErrNoDefaultPrinter) {
				fmt.Fprintln(cmd.OutOrStdout(), "no default printer configured")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), name)
			return nil
		},
	}
}

func newCamerasCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cameras",
		Short: "List the camera devices that open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := camera.New(a.cfg.Camera, a.logger).Probe()
			if err != nil {
				return err
			}
			if len(found) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no camera available")
				return nil
			}
			rows := make([][]string, 0, len(found))
			for _, idx := range found {
				rows = append(rows, []string{strconv.Itoa(idx)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Index"}, rows, 0))
			return nil
		},
	}
}

// captureInto takes one photo through a gallery so it is announced like any
// other discovered image.
func captureInto(ctx context.Context, a *app, deps gallery.Deps, dir string) (string, error) {
	var path string
	err := withGallery(ctx, a, deps, nil, func(g *gallery.Gallery) error {
		var err error
		path, err = g.Capture(ctx, dir)
		return err
	})
	return path, err
}

func newCaptureCmd(a *app) *cobra.Command {
	var (
		dir  string
		auto bool
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Take a photo with the camera",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.CaptureDir
			}
			cam := camera.New(a.cfg.Camera, a.logger)
			if auto {
				if _, err := cam.Select(); err != nil {
					return err
				}
			}
			path, err := captureInto(cmd.Context(), a, gallery.Deps{Camera: cam}, dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "directory the photo is written to")
	cmd.Flags().BoolVar(&auto, "auto", false, "use the first camera that opens")
	return cmd
}

func openPortfolio(ctx context.Context, a *app) (*storage.Storage, *storage.Portfolio, error) {
	db, err := storage.NewStorage(ctx, a.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, storage.NewPortfolio(db.DB, db.Dialect, a.logger), nil
}

func newPortfolioCmd(a *app) *cobra.Command {
	portfolio := &cobra.Command{
		Use:   "portfolio",
		Short: "Query and update the portfolio tables",
	}

	portfolio.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "List sent and impressed image ids, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, p, err := openPortfolio(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer db.Close()

			ids := p.FetchPendingIDs(cmd.Context())
			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				rows = append(rows, []string{strconv.FormatInt(id, 10)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Image ID"}, rows, 0))
			return nil
		},
	})

	portfolio.AddCommand(&cobra.Command{
		Use:   "touch <image-id>",
		Short: "Reset and set the impressed flag of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid image id %q: %w", args[0], err)
			}
			db, p, err := openPortfolio(cmd.Context(), a)
			if err != nil {
				return err
			}
			defer db.Close()

			p.TouchImpressed(cmd.Context(), id)
			a.logger.Info("portfolio touched", zap.Int64("image_id", id))
			return nil
		},
	})
	return portfolio
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the portfolio tables in a development database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.NewStorage(cmd.Context(), a.cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			return storage.Migrate(db.DB, db.Dialect, a.logger)
		},
	}
}
