package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/wfs-clickmap/internal/core/config"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/executor"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/health"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/httpclient"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/model"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/observability"
	"github.com/mohammed-shakir/wfs-clickmap/internal/core/server"
	"github.com/mohammed-shakir/wfs-clickmap/internal/logger"
	"github.com/mohammed-shakir/wfs-clickmap/internal/mapengine"
	"github.com/mohammed-shakir/wfs-clickmap/internal/mapview"
	"github.com/mohammed-shakir/wfs-clickmap/internal/queryevents"
	"github.com/mohammed-shakir/wfs-clickmap/internal/session"
	"github.com/mohammed-shakir/wfs-clickmap/internal/web"
)

var Version = "dev"

// errFailedQuery makes `query` exit non-zero after the popup was printed.
var errFailedQuery = errors.New("query failed")

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errFailedQuery) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var cfgFile string
	root := &cobra.Command{
		Use:           "clickmap",
		Short:         "WMS map with click-to-query WFS",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML file overriding environment config")

	load := func() (config.Config, error) {
		cfg := config.FromEnv()
		if cfgFile == "" {
			return cfg, nil
		}
		return config.LoadFile(cfgFile, cfg)
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, stdout)
		},
	})

	var x, y, res float64
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Run one click query and print the popup text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return query(cmd.Context(), cfg, stderr, cmd.OutOrStdout(), model.ClickEvent{
				Coordinate: [2]float64{x, y},
				Resolution: res,
			})
		},
	}
	queryCmd.Flags().Float64Var(&x, "x", 0, "click x in the map CRS")
	queryCmd.Flags().Float64Var(&y, "y", 0, "click y in the map CRS")
	queryCmd.Flags().Float64Var(&res, "resolution", 0, "map units per pixel, default from MAP_ZOOM")
	_ = queryCmd.MarkFlagRequired("x")
	_ = queryCmd.MarkFlagRequired("y")
	queryCmd.SetOut(stdout)
	root.AddCommand(queryCmd)

	return root
}

func buildLogger(cfg config.Config, component string, out io.Writer) *slog.Logger {
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Component: component,
		Version:   Version,
	}, out)
	return logger.NewSlog(&zl)
}

func controllerConfig(cfg config.Config) mapview.Config {
	return mapview.Config{
		WFSURL:    cfg.WFSURL,
		TypeName:  cfg.WFSTypeName,
		SRS:       cfg.WFSSRS,
		WMSURL:    cfg.WMSURL,
		WMSLayers: cfg.WMSLayers,
	}
}

// initialView centers the map on the configured lon/lat in web mercator.
func initialView(cfg config.Config) mapengine.View {
	c := project.WGS84.ToMercator(orb.Point{cfg.MapCenterLon, cfg.MapCenterLat})
	return mapengine.View{
		Center:     [2]float64{c[0], c[1]},
		Zoom:       cfg.MapZoom,
		Resolution: mapengine.ResolutionForZoom(cfg.MapZoom),
	}
}

func serve(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	appLog := buildLogger(cfg, "clickmap", logOut)
	observability.ExposeBuildInfo(Version)
	appLog.Info("starting clickmap",
		"addr", cfg.Addr,
		"version", Version,
		"wms", cfg.WMSURL,
		"wfs", cfg.WFSURL,
		"typename", cfg.WFSTypeName)

	fetcher := executor.New(appLog, httpclient.NewOutbound(cfg.WFSTimeout))

	var opts []mapview.Option
	if cfg.Events.Enabled {
		pub, err := queryevents.NewPublisher(appLog, cfg.Events.BrokerList(), cfg.Events.Topic, cfg.Events.H3Res, cfg.Events.QueueSize)
		if err != nil {
			return err
		}
		defer func() {
			if err := pub.Close(); err != nil {
				appLog.Warn("query events close failed", "err", err)
			}
		}()
		opts = append(opts, mapview.WithSink(pub))
		appLog.Info("query events enabled", "topic", cfg.Events.Topic)
	}

	reg := session.New(cfg.SessionMax, cfg.SessionTTL,
		session.NewFactory(controllerConfig(cfg), initialView(cfg), fetcher, appLog, opts...))
	defer reg.Close()

	index, err := web.Index(web.Page{})
	if err != nil {
		return fmt.Errorf("render index: %w", err)
	}

	checks := []health.Check{
		{Name: "wfs", Fn: func() error {
			if cfg.WFSURL == "" {
				return errors.New("WFS_URL not set")
			}
			return nil
		}},
		{Name: "wms", Fn: func() error {
			if cfg.WMSURL == "" {
				return errors.New("WMS_URL not set")
			}
			return nil
		}},
	}

	if err := server.Run(ctx, cfg, appLog, server.Deps{Sessions: reg, Index: index, Checks: checks}); err != nil {
		appLog.Error("server exited with error", "err", err)
		return err
	}
	appLog.Info("server stopped")
	return nil
}

// query runs a single cycle against a headless engine.
func query(ctx context.Context, cfg config.Config, logOut, out io.Writer, ev model.ClickEvent) error {
	appLog := buildLogger(cfg, "clickmap-query", logOut)
	fetcher := executor.New(appLog, httpclient.NewOutbound(cfg.WFSTimeout))

	eng := mapengine.New(initialView(cfg))
	ctrl := mapview.New(controllerConfig(cfg), eng, fetcher, appLog)
	defer ctrl.Close()

	outcome := ctrl.HandleClick(ctx, ev)
	fmt.Fprintln(out, mapview.PlainText(eng.OverlayContent()))
	if outcome.Kind == model.OutcomeFailure {
		return errFailedQuery
	}
	return nil
}
