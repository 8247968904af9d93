package analysis

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tphakala/myconet/internal/errors"
)

// Field describes one numeric input of the dashboard forms: its bounds,
// default and help text.
type Field struct {
	Name    string  // form and JSON key
	Column  string  // training CSV column
	Label   string  // display label
	Group   string  // form section
	Min     float64 // inclusive lower bound
	Max     float64 // inclusive upper bound
	Default float64
	Step    float64
	Help    string
}

// PlantFields lists the sensor inputs in the order of SensorReading.Values.
var PlantFields = []Field{
	{Name: "soil_moisture", Column: "Soil_Moisture", Label: "Soil Moisture (%)", Group: "Environmental Sensors", Max: 100, Default: 45, Step: 0.1, Help: "Optimal range: 30-60%"},
	{Name: "ambient_temperature", Column: "Ambient_Temperature", Label: "Ambient Temperature (°C)", Group: "Environmental Sensors", Max: 50, Default: 25, Step: 0.1, Help: "Optimal range: 20-30°C"},
	{Name: "soil_temperature", Column: "Soil_Temperature", Label: "Soil Temperature (°C)", Group: "Environmental Sensors", Max: 50, Default: 22, Step: 0.1, Help: "Optimal range: 18-24°C"},
	{Name: "humidity", Column: "Humidity", Label: "Humidity (%)", Group: "Environmental Sensors", Max: 100, Default: 60, Step: 0.1, Help: "Optimal range: 50-70%"},
	{Name: "light_intensity", Column: "Light_Intensity", Label: "Light Intensity (lux)", Group: "Environmental Sensors", Max: 100000, Default: 50000, Step: 100},
	{Name: "soil_ph", Column: "Soil_pH", Label: "Soil pH", Group: "Soil Composition", Max: 14, Default: 6.5, Step: 0.1, Help: "Optimal range: 6.0-7.0"},
	{Name: "nitrogen", Column: "Nitrogen_Level", Label: "Nitrogen Level (ppm)", Group: "Soil Composition", Max: 100, Default: 45, Step: 0.1, Help: "Optimal range: 40-60 ppm"},
	{Name: "phosphorus", Column: "Phosphorus_Level", Label: "Phosphorus Level (ppm)", Group: "Soil Composition", Max: 100, Default: 35, Step: 0.1, Help: "Optimal range: 30-50 ppm"},
	{Name: "potassium", Column: "Potassium_Level", Label: "Potassium Level (ppm)", Group: "Soil Composition", Max: 100, Default: 40, Step: 0.1, Help: "Optimal range: 35-55 ppm"},
	{Name: "chlorophyll", Column: "Chlorophyll_Content", Label: "Chlorophyll Content", Group: "Soil Composition", Max: 100, Default: 65, Step: 0.1},
	{Name: "electrochemical_signal", Column: "Electrochemical_Signal", Label: "Electrochemical Signal", Group: "Bio-signals", Min: -100, Max: 100, Default: 10, Step: 0.1},
}

// FungalFields lists the numeric fungal inputs in model order.
var FungalFields = []Field{
	{Name: "amf", Column: "AMF", Label: "AMF Colonization (%)", Group: "Fungal Metrics", Max: 100, Default: 65, Step: 0.1},
	{Name: "phn_imp", Column: "PHN_Imp", Label: "PHN_Imp (Water Stress Proxy)", Group: "Environmental Factors", Max: 1, Default: 0.5, Step: 0.01},
	{Name: "nsc_imp", Column: "NSC_Imp", Label: "NSC_Imp (Non-Structural Carbohydrate Proxy)", Group: "Fungal Metrics", Max: 1, Default: 0.5, Step: 0.01},
	{Name: "lig_imp", Column: "LIG_Imp", Label: "LIG_Imp (Lignin Content Proxy)", Group: "Fungal Metrics", Max: 1, Default: 0.5, Step: 0.01},
}

// SensorReading is one set of plant sensor values.
type SensorReading struct {
	SoilMoisture          float64 `json:"soil_moisture" form:"soil_moisture" validate:"min=0,max=100"`
	AmbientTemperature    float64 `json:"ambient_temperature" form:"ambient_temperature" validate:"min=0,max=50"`
	SoilTemperature       float64 `json:"soil_temperature" form:"soil_temperature" validate:"min=0,max=50"`
	Humidity              float64 `json:"humidity" form:"humidity" validate:"min=0,max=100"`
	LightIntensity        float64 `json:"light_intensity" form:"light_intensity" validate:"min=0,max=100000"`
	SoilPH                float64 `json:"soil_ph" form:"soil_ph" validate:"min=0,max=14"`
	Nitrogen              float64 `json:"nitrogen" form:"nitrogen" validate:"min=0,max=100"`
	Phosphorus            float64 `json:"phosphorus" form:"phosphorus" validate:"min=0,max=100"`
	Potassium             float64 `json:"potassium" form:"potassium" validate:"min=0,max=100"`
	Chlorophyll           float64 `json:"chlorophyll" form:"chlorophyll" validate:"min=0,max=100"`
	ElectrochemicalSignal float64 `json:"electrochemical_signal" form:"electrochemical_signal" validate:"min=-100,max=100"`
}

// DefaultSensorReading returns the values the plant form starts with. They
// are never substituted for inputs missing from a submitted reading.
func DefaultSensorReading() SensorReading {
	var r SensorReading
	r.SetValues(defaults(PlantFields))
	return r
}

// Values returns the reading in model feature order.
func (r SensorReading) Values() []float64 {
	return []float64{
		r.SoilMoisture, r.AmbientTemperature, r.SoilTemperature, r.Humidity, r.LightIntensity,
		r.SoilPH, r.Nitrogen, r.Phosphorus, r.Potassium, r.Chlorophyll, r.ElectrochemicalSignal,
	}
}

// SetValues assigns values given in model feature order.
func (r *SensorReading) SetValues(v []float64) {
	r.SoilMoisture, r.AmbientTemperature, r.SoilTemperature, r.Humidity, r.LightIntensity = v[0], v[1], v[2], v[3], v[4]
	r.SoilPH, r.Nitrogen, r.Phosphorus, r.Potassium, r.Chlorophyll = v[5], v[6], v[7], v[8], v[9]
	r.ElectrochemicalSignal = v[10]
}

// FungalReading is one set of fungal network observations.
type FungalReading struct {
	Species string  `json:"species" form:"species" validate:"required"`
	Light   string  `json:"light" form:"light" validate:"required"`
	Microbe string  `json:"microbe" form:"microbe" validate:"required"`
	AMF     float64 `json:"amf" form:"amf" validate:"min=0,max=100"`
	PHNImp  float64 `json:"phn_imp" form:"phn_imp" validate:"min=0,max=1"`
	NSCImp  float64 `json:"nsc_imp" form:"nsc_imp" validate:"min=0,max=1"`
	LIGImp  float64 `json:"lig_imp" form:"lig_imp" validate:"min=0,max=1"`
}

// DefaultFungalReading returns the numeric form defaults. The categorical
// fields default to the first class of each encoder, chosen by the caller.
func DefaultFungalReading() FungalReading {
	d := defaults(FungalFields)
	return FungalReading{AMF: d[0], PHNImp: d[1], NSCImp: d[2], LIGImp: d[3]}
}

// Numeric returns the numeric fields in model order.
func (r FungalReading) Numeric() []float64 {
	return []float64{r.AMF, r.PHNImp, r.NSCImp, r.LIGImp}
}

func defaults(fields []Field) []float64 {
	out := make([]float64, len(fields))
	for i, f := range fields {
		out[i] = f.Default
	}
	return out
}

// FungalCategoricals are the encoded inputs of a fungal reading.
var FungalCategoricals = []string{"species", "light", "microbe"}

// PlantInputNames lists the keys a complete plant reading carries.
func PlantInputNames() []string {
	return fieldNames(PlantFields)
}

// FungalInputNames lists the keys a complete fungal reading carries.
func FungalInputNames() []string {
	return append(slices.Clone(FungalCategoricals), fieldNames(FungalFields)...)
}

func fieldNames(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

// RequireInputs fails with a validation error naming every input in names
// that has reports absent. Readings are scored only when fully specified.
func RequireInputs(has func(name string) bool, names []string) error {
	var missing []string
	for _, n := range names {
		if !has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.Newf("incomplete reading: missing %s", strings.Join(missing, ", ")).
		Component("analysis").
		Category(errors.CategoryValidation).
		Build()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateReading checks a SensorReading or FungalReading against its bounds.
// The returned error has category validation and lists every failing field.
func ValidateReading(reading any) error {
	err := validate.Struct(reading)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be >= %s", fe.Field(), fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be <= %s", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.Newf("invalid reading: %s", strings.Join(msgs, "; ")).
		Component("analysis").
		Category(errors.CategoryValidation).
		Build()
}
