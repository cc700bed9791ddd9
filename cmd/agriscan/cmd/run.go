package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agriscan/agriscan-go/internal/api"
	"github.com/agriscan/agriscan-go/internal/config"
	"github.com/agriscan/agriscan-go/internal/logger"
	"github.com/agriscan/agriscan-go/internal/pipeline"
	"github.com/agriscan/agriscan-go/internal/sensor"
	"github.com/agriscan/agriscan-go/internal/soil"
	"github.com/agriscan/agriscan-go/internal/storage/sqlite"
)

var referencePath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sampling daemon and local API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(false)
	},
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run against the synthetic sensor with relaxed calibration thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon(true)
	},
}

func init() {
	runCmd.Flags().StringVar(&referencePath, "reference", "", "crop/soil reference table (JSON)")
	simulateCmd.Flags().StringVar(&referencePath, "reference", "", "crop/soil reference table (JSON)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(simulateCmd)
}

func runDaemon(simulate bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if simulate {
		cfg.SimulationMode = true
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "agriscan")
	if err != nil {
		return err
	}
	defer log.Sync()

	prefs, err := config.LoadPreferences(prefsPath)
	if err != nil {
		return err
	}

	ref := soil.DefaultReference()
	if referencePath != "" {
		loaded, err := soil.LoadReference(referencePath)
		if err != nil {
			log.Warn("reference table unusable, using defaults", zap.Error(err))
		} else {
			ref = loaded
		}
	}

	store, err := sqlite.NewFileStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	var reader sensor.Reader
	switch {
	case cfg.SimulationMode:
		reader = sensor.NewSyntheticReader()
		log.Info("simulation mode: synthetic sensor active")
	case cfg.ADCPath != "":
		reader = &sensor.FileReader{ADCPath: cfg.ADCPath, TempPath: cfg.TempPath}
	default:
		reader = sensor.NewSyntheticReader()
		log.Warn("adc_path not configured, falling back to synthetic sensor")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	pipe := pipeline.New(pipeline.Options{
		Config:      cfg,
		Preferences: prefs,
		Reader:      reader,
		Store:       store,
		Logger:      log,
		Metrics:     pipeline.NewMetrics(registry),
		Reference:   ref,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(pipe, store, prefs, prefsPath, registry, log)
	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("http api listening", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		errCh <- pipe.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("fatal", zap.Error(err))
			stop()
			httpSrv.Close()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	return nil
}
