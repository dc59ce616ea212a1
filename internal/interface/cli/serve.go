package cli

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kalinpl/dreamlog/internal/infrastructure/di"
)

// newServeCmd runs the pipeline workers: the outbox dispatcher and the
// task scheduler, plus the optional metrics endpoint.
func newServeCmd() *cobra.Command {
	var mockAI bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the processing pipeline",
		Long:  "Runs the outbox event dispatcher and the durable task scheduler\nuntil interrupted. Unfinished work is picked up again on restart.",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := di.NewContainer(globalConfig, globalLogger, di.Options{MockAI: mockAI})
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var metricsSrv *http.Server
			if addr := globalConfig.MetricsAddr(); addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(c.Registry(), promhttp.HandlerOpts{}))
				metricsSrv = &http.Server{Addr: addr, Handler: mux}
				go func() {
					globalLogger.Info("metrics listening on %s", addr)
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						globalLogger.Error("metrics server: %v", err)
					}
				}()
			}

			globalLogger.Info("pipeline starting: db=%s workers=%d", globalConfig.DBPath(), globalConfig.WorkerCount())

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				c.Dispatcher().Run(ctx)
			}()
			go func() {
				defer wg.Done()
				c.Scheduler().Run(ctx)
			}()

			<-ctx.Done()
			globalLogger.Info("shutting down")
			wg.Wait()

			if metricsSrv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = metricsSrv.Shutdown(shutdownCtx)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&mockAI, "mock-ai", false, "use the deterministic mock AI collaborator")
	return cmd
}
