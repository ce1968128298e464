package commands

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"

	"github.com/goliatone/go-noticast/adapters/gocommand"
	"github.com/goliatone/go-noticast/adapters/gojob"
	"github.com/goliatone/go-noticast/assets"
	httptransport "github.com/goliatone/go-noticast/transport/http"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and, when enabled, the mail worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, settings, runtimeNeeds{dispatch: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			opts := []httptransport.Option{
				httptransport.WithLogger(rt.logger.GetLogger("http")),
				httptransport.WithAssets(rt.assets, assets.DefaultRoutePath),
			}
			if settings.App.HTTP.TrustStageHeader {
				opts = append(opts, httptransport.WithTrustedStageHeader())
			}

			// The worker must drain before rt.Close tears down its collaborators.
			workerCtx, stopWorker := context.WithCancel(ctx)
			var workers sync.WaitGroup
			defer func() {
				stopWorker()
				workers.Wait()
			}()

			queueCfg := settings.App.Queue
			if queueCfg.Enabled {
				memory := gojob.NewMemoryQueue()
				opts = append(opts, httptransport.WithMailQueue(gojob.NewMailEnqueuer(memory)))
				worker := gojob.NewMailWorker(memory, gocommand.MailProcessor{},
					gojob.WithLogger(rt.logger.GetLogger("worker")),
					gojob.WithHook(gojob.NewLoggingHook(rt.logger.GetLogger("worker"))),
					gojob.WithPollInterval(queueCfg.PollInterval),
					gojob.WithRetryPolicy(gojob.RetryPolicy{MaxAttempts: queueCfg.MaxAttempts, DeadLetterOnMax: true}),
				)
				workers.Add(1)
				go func() {
					defer workers.Done()
					if err := worker.Run(workerCtx); err != nil {
						rt.logger.Error("mail worker stopped", "error", err)
					}
				}()
			}

			server := httptransport.New(rt.router, opts...)
			listenAddr := addr
			if listenAddr == "" {
				listenAddr = settings.App.HTTP.Addr
			}

			errCh := make(chan error, 1)
			go func() {
				rt.logger.Info("noticast listening", "addr", listenAddr, "stage", rt.service.Config().Stage)
				errCh <- server.Listen(listenAddr)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.App.HTTP.ShutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}
