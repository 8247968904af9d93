package predict

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/k3a/html2text"
	"github.com/spf13/cobra"

	"github.com/tphakala/myconet/internal/analysis"
	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/httpcontroller"
	"github.com/tphakala/myconet/internal/model"
)

// Command creates the predict command for one-off predictions from the
// command line.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run a single prediction",
		Long:  "Score one plant sensor reading or one fungal network observation with the trained models.",
	}

	cmd.AddCommand(plantCommand(settings), fungalCommand(settings))
	return cmd
}

func plantCommand(settings *conf.Settings) *cobra.Command {
	values := make([]float64, len(analysis.PlantFields))

	cmd := &cobra.Command{
		Use:   "plant",
		Short: "Assess plant health from sensor values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var reading analysis.SensorReading
			reading.SetValues(values)
			return RunPlant(cmd.Context(), cmd.OutOrStdout(), settings, reading)
		},
	}

	for i, f := range analysis.PlantFields {
		cmd.Flags().Float64Var(&values[i], flagName(f), 0, f.Label)
		_ = cmd.MarkFlagRequired(flagName(f))
	}
	return cmd
}

func fungalCommand(settings *conf.Settings) *cobra.Command {
	var reading analysis.FungalReading
	numeric := []*float64{&reading.AMF, &reading.PHNImp, &reading.NSCImp, &reading.LIGImp}

	cmd := &cobra.Command{
		Use:   "fungal",
		Short: "Assess fungal network survival",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunFungal(cmd.Context(), cmd.OutOrStdout(), settings, reading)
		},
	}

	cmd.Flags().StringVar(&reading.Species, "species", "", "Plant species, one of the trained species")
	cmd.Flags().StringVar(&reading.Light, "light", "", "Light condition, one of the trained conditions")
	cmd.Flags().StringVar(&reading.Microbe, "microbe", "", "Microbial community, one of the trained communities")
	for i, f := range analysis.FungalFields {
		cmd.Flags().Float64Var(numeric[i], flagName(f), 0, f.Label)
	}
	for _, name := range analysis.FungalInputNames() {
		_ = cmd.MarkFlagRequired(strings.ReplaceAll(name, "_", "-"))
	}
	return cmd
}

// flagName turns a form key like soil_moisture into soil-moisture.
func flagName(f analysis.Field) string {
	return strings.ReplaceAll(f.Name, "_", "-")
}

// RunPlant scores a plant reading and prints the result card as text.
func RunPlant(ctx context.Context, out io.Writer, settings *conf.Settings, reading analysis.SensorReading) error {
	a, err := loadAnalyzer(settings)
	if err != nil {
		return err
	}
	res, err := a.AnalyzePlant(orBackground(ctx), reading)
	if err != nil {
		return err
	}
	return printCard(out, "plantResultCard", res)
}

// RunFungal scores a fungal observation and prints the result card as text.
// Categorical values must name a class seen at training time.
func RunFungal(ctx context.Context, out io.Writer, settings *conf.Settings, reading analysis.FungalReading) error {
	a, err := loadAnalyzer(settings)
	if err != nil {
		return err
	}
	res, err := a.AnalyzeFungal(orBackground(ctx), reading)
	if err != nil {
		return err
	}
	return printCard(out, "fungalResultCard", res)
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func loadAnalyzer(settings *conf.Settings) (*analysis.Analyzer, error) {
	set, err := model.LoadArtifacts(model.PathsFromSettings(&settings.Model))
	if err != nil {
		if errors.Is(err, model.ErrArtifactsMissing) {
			fmt.Fprintln(os.Stderr, model.MissingArtifactsMessage)
		}
		return nil, err
	}
	return analysis.NewAnalyzer(set, settings.Data.Fungal.SurviveLabel,
		analysis.WithLocation(settings.Location()))
}

// printCard renders a dashboard result card and writes it as plain text.
func printCard(out io.Writer, name string, result any) error {
	renderer, err := httpcontroller.NewTemplateRenderer(nil)
	if err != nil {
		return err
	}
	html, err := renderer.RenderString(name, result)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, strings.TrimSpace(html2text.HTML2Text(html)))
	return err
}
