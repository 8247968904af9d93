package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/myconet/internal/analysis"
	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/datastore"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/httpcontroller"
	"github.com/tphakala/myconet/internal/logger"
	"github.com/tphakala/myconet/internal/model"
	"github.com/tphakala/myconet/internal/observability"
)

// Command creates the serve command which runs the dashboard.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Myco-Net dashboard",
		Long:  "Load the trained models and serve the plant health and fungal network dashboard until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the dashboard")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Telemetry.Listen, "listen", viper.GetString("telemetry.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// Run serves the dashboard until ctx is cancelled.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("main")

	set, err := model.LoadArtifacts(model.PathsFromSettings(&settings.Model))
	if err != nil {
		if errors.Is(err, model.ErrArtifactsMissing) {
			fmt.Fprintln(os.Stderr, model.MissingArtifactsMessage)
		}
		return err
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	m.MycoNet.SetModelLoaded(model.PlantHealth, true)
	m.MycoNet.SetModelLoaded(model.FungalNetwork, true)

	analyzer, err := analysis.NewAnalyzer(set, settings.Data.Fungal.SurviveLabel,
		analysis.WithRecorder(m.MycoNet),
		analysis.WithLocation(settings.Location()))
	if err != nil {
		return err
	}

	ds := datastore.New(settings)
	datastore.SetMetrics(ds, m.Datastore)
	if err := ds.Open(); err != nil {
		// The dashboard still works, accuracy falls back to the bundles.
		log.Warn("datastore unavailable", logger.Error(err))
		ds = datastore.NopStore{}
	}
	defer func() {
		if err := ds.Close(); err != nil {
			log.Warn("failed to close datastore", logger.Error(err))
		}
	}()
	exportTrainingMetrics(ctx, ds, m)

	var wg sync.WaitGroup
	if settings.Telemetry.Enabled && settings.Telemetry.Listen != "" {
		endpoint, err := observability.NewEndpoint(settings, m)
		if err != nil {
			return err
		}
		endpoint.Start(ctx, &wg)
	}

	server, err := httpcontroller.New(settings, analyzer, ds, m)
	if err != nil {
		return err
	}

	log.Info("Myco-Net dashboard ready",
		logger.String("port", settings.WebServer.Port),
		logger.Time("plant_trained_at", set.Plant.TrainedAt),
		logger.Time("fungal_trained_at", set.Fungal.TrainedAt))

	err = server.Start(ctx)
	wg.Wait()
	return err
}

// exportTrainingMetrics publishes the latest recorded run of each model.
func exportTrainingMetrics(ctx context.Context, ds datastore.Interface, m *observability.Metrics) {
	for _, name := range []string{model.PlantHealth, model.FungalNetwork} {
		run, err := ds.LatestTrainingRun(ctx, name)
		if err != nil {
			continue
		}
		m.MycoNet.RecordTraining(name, time.Duration(run.DurationMs)*time.Millisecond, run.Accuracy)
	}
}
