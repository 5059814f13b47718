package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/ripkitten-co/addressd"
	"github.com/ripkitten-co/addressd/batches"
	"github.com/ripkitten-co/addressd/internal/config"
	"github.com/ripkitten-co/addressd/internal/httpapi"
	"github.com/ripkitten-co/addressd/internal/logging"
	"github.com/ripkitten-co/addressd/queue"
)

func main() {
	root := &cobra.Command{
		Use:           "addressd",
		Short:         "Batch address validation and recognition service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().AddFlagSet(commonFlags())

	root.AddCommand(serveCmd(), workerCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func commonFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("addressd", pflag.ContinueOnError)
	fs.String("env-file", "", "path to a .env file to load before reading the environment")
	return fs
}

func setup(cmd *cobra.Command) (*config.Config, *addressd.Store, error) {
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := godotenv.Overload(envFile); err != nil {
			return nil, nil, fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Load(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	store, err := addressd.New(cmd.Context(), cfg.Database.URL,
		addressd.WithPoolSize(cfg.Database.MinConns, cfg.Database.MaxConns))
	if err != nil {
		return nil, nil, err
	}
	if err := store.Ping(cmd.Context()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return cfg, store, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, store, err := setup(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			validation := batches.NewController(store, batches.ValidationPipeline{})
			recognition := batches.NewController(store, batches.RecognitionPipeline{})
			dispatcher := queue.New(store)

			handler := httpapi.NewHandler(validation, recognition, dispatcher)

			srv := &http.Server{
				Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
				Handler:      handler.Routes(),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			ctx, stop := signalContext()
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				slog.Info("http server listening", "addr", srv.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			slog.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background batch workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, store, err := setup(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			validation := batches.NewController(store, batches.ValidationPipeline{})
			recognition := batches.NewController(store, batches.RecognitionPipeline{})

			daemon := queue.NewDaemon(store,
				queue.WithWorkers(cfg.Worker.Count),
				queue.WithPollInterval(cfg.Worker.PollInterval),
				queue.WithMaxAttempts(cfg.Worker.MaxAttempts),
			)
			daemon.Handle(batches.ValidationPipeline{}.JobName(), validation.Process)
			daemon.Handle(batches.RecognitionPipeline{}.JobName(), recognition.Process)

			ctx, stop := signalContext()
			defer stop()

			slog.Info("worker daemon running", "workers", cfg.Worker.Count)
			daemon.Run(ctx)
			slog.Info("worker daemon stopped")
			return nil
		},
	}
}
