package history

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/tphakala/myconet/internal/analysis"
	"github.com/tphakala/myconet/internal/errors"
)

// ExportFilename is the download name of the history CSV.
const ExportFilename = "myco_net_test_history.csv"

// ExportHeader lists the CSV columns.
var ExportHeader = []string{
	"Timestamp", "Plant_Status", "Plant_Confidence", "Soil_Moisture", "Nitrogen_Level", "Soil_pH",
	"Fungal_Risk", "Fungal_Confidence", "AMF_Colonization", "NSC_Level", "Microbe_Type",
}

// WriteCSV writes one row per entry, in the given order, after the header.
func WriteCSV(w io.Writer, entries []*Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return exportError(err)
	}
	for _, e := range entries {
		row := []string{
			e.SavedAt.Format(analysis.TimeLayout),
			e.Plant.Status,
			formatFloat(e.Plant.Confidence),
			formatFloat(e.Plant.SoilMoisture),
			formatFloat(e.Plant.Nitrogen),
			formatFloat(e.Plant.SoilPH),
			e.Fungal.RiskLevel,
			formatFloat(e.Fungal.Confidence),
			formatFloat(e.Fungal.AMFColonization),
			formatFloat(e.Fungal.NSCLevel),
			e.Fungal.MicrobeType,
		}
		if err := cw.Write(row); err != nil {
			return exportError(err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return exportError(err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func exportError(err error) error {
	return errors.New(err).
		Component("history").
		Category(errors.CategoryFileIO).
		Context("operation", "export_csv").
		Build()
}
