package train

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/dataset"
	"github.com/tphakala/myconet/internal/datastore"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/logger"
	"github.com/tphakala/myconet/internal/model"
	"github.com/tphakala/myconet/internal/training"
)

// Command creates the train command which fits both models from the raw CSV
// tables and writes the artifacts used by serve and predict.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the plant health and fungal network models",
		Long:  "Train both random forests from the configured CSV tables, save the model artifacts and print the evaluation reports.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), cmd.OutOrStdout(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the train command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Data.Plant.Path, "plant-data", viper.GetString("data.plant.path"), "Path to the plant health CSV")
	cmd.Flags().StringVar(&settings.Data.Fungal.Path, "fungal-data", viper.GetString("data.fungal.path"), "Path to the fungal network CSV")
	cmd.Flags().IntVar(&settings.Training.Trees, "trees", viper.GetInt("training.trees"), "Number of trees per forest")
	cmd.Flags().Uint64Var(&settings.Training.Seed, "seed", viper.GetUint64("training.seed"), "Random seed for splitting and fitting")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// Run trains both models, saves the artifacts, prints the reports to out and
// records one training run per model.
func Run(ctx context.Context, out io.Writer, settings *conf.Settings) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := training.GetLogger()
	trainer := training.New(settings.Data, settings.Training)

	plant, err := trainer.TrainPlant(ctx)
	if err != nil {
		return sourceError(out, err, settings.Data.Plant.Path)
	}
	fungal, err := trainer.TrainFungal(ctx)
	if err != nil {
		return sourceError(out, err, settings.Data.Fungal.Path)
	}

	paths := model.PathsFromSettings(&settings.Model)
	set := &model.Set{Plant: plant.Bundle, Fungal: fungal.Bundle, Encoders: fungal.Encoders}
	if err := model.SaveArtifacts(paths, set); err != nil {
		return err
	}
	log.Info("model artifacts saved", logger.String("dir", settings.Model.Dir))

	for _, res := range []*training.Result{plant, &fungal.Result} {
		fmt.Fprintln(out, res.Report.String())
	}
	fmt.Fprintf(out, "Models saved to %s\n", settings.Model.Dir)

	recordRuns(ctx, settings, plant, &fungal.Result)
	return nil
}

// sourceError prints the user-facing message for a missing training table.
func sourceError(out io.Writer, err error, path string) error {
	if errors.Is(err, dataset.ErrSourceMissing) {
		fmt.Fprintf(out, "Data file not found: %s\n", path)
	}
	return err
}

// recordRuns stores the runs in the datastore. A failing store does not fail
// the training, the artifacts are already on disk.
func recordRuns(ctx context.Context, settings *conf.Settings, results ...*training.Result) {
	log := datastore.GetLogger()

	ds := datastore.New(settings)
	if err := ds.Open(); err != nil {
		log.Warn("could not open datastore, training runs not recorded", logger.Error(err))
		return
	}
	defer func() {
		if err := ds.Close(); err != nil {
			log.Warn("failed to close datastore", logger.Error(err))
		}
	}()

	for _, res := range results {
		run, err := datastore.NewTrainingRun(res)
		if err != nil {
			log.Warn("could not encode training run", logger.String("model", res.Bundle.Name), logger.Error(err))
			continue
		}
		if err := ds.SaveTrainingRun(ctx, run); err != nil {
			log.Warn("could not record training run", logger.String("model", res.Bundle.Name), logger.Error(err))
		}
	}
}
