package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/surgeo/internal/api"
	"github.com/sells-group/surgeo/internal/bisg"
	"github.com/sells-group/surgeo/internal/monitoring"
	"github.com/sells-group/surgeo/internal/registry"
)

var (
	servePort    int
	servePreload []string
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP estimation server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		reg, err := registry.Open(ctx, cfg.Data, cfg.Model)
		if err != nil {
			return err
		}
		defer reg.Close()

		if err := preload(ctx, reg, servePreload); err != nil {
			return err
		}

		collector := monitoring.NewCollector(reg, nil)
		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}
		s := api.NewServer(reg, collector, cfg.Server, cfg.Model.Precision)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           s.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// preload builds the named models up front so the first request does not
// pay for table loading. Names use the "type" or "type/level" form.
func preload(ctx context.Context, reg *registry.Registry, names []string) error {
	for _, name := range names {
		spec, err := parseSpec(name)
		if err != nil {
			return err
		}
		if _, err := reg.Model(ctx, spec); err != nil {
			return eris.Wrapf(err, "preload %s", name)
		}
		zap.L().Info("model preloaded", zap.String("model", spec.String()))
	}
	return nil
}

// parseSpec parses "surgeo", "surgeo/tract" and similar.
func parseSpec(s string) (bisg.Spec, error) {
	typ, level, _ := strings.Cut(s, "/")
	kind, err := bisg.ParseKind(typ)
	if err != nil {
		return bisg.Spec{}, err
	}
	spec := bisg.Spec{Kind: kind}
	if spec.UsesGeo() {
		if spec.Level, err = bisg.ParseGeoLevel(level); err != nil {
			return bisg.Spec{}, err
		}
	} else if level != "" {
		return bisg.Spec{}, eris.Errorf("model %q takes no geography level", typ)
	}
	return spec, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringSliceVar(&servePreload, "preload", nil, "models to build at startup, e.g. surgeo,bifsg/tract")
	rootCmd.AddCommand(serveCmd)
}
