// conf/validate.go

package conf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateDataSettings,
		validateTrainingSettings,
		validateModelSettings,
		validateWebServerSettings,
		validateOutputSettings,
		validateTelemetrySettings,
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateDataSettings checks that both training tables are described
func validateDataSettings(settings *Settings) error {
	var errs []string

	plant := settings.Data.Plant
	if plant.Path == "" {
		errs = append(errs, "plant data path must not be empty")
	}
	if plant.Label == "" {
		errs = append(errs, "plant label column must not be empty")
	}

	fungal := settings.Data.Fungal
	if fungal.Path == "" {
		errs = append(errs, "fungal data path must not be empty")
	}
	if fungal.Label == "" {
		errs = append(errs, "fungal label column must not be empty")
	}
	if fungal.Species == "" || fungal.Light == "" || fungal.Microbe == "" {
		errs = append(errs, "fungal species, light and microbe columns must be set")
	}
	if len(fungal.Numeric) == 0 {
		errs = append(errs, "fungal numeric columns must not be empty")
	}

	return joinErrors(errs)
}

// validateTrainingSettings checks the forest hyperparameters
func validateTrainingSettings(settings *Settings) error {
	var errs []string
	t := settings.Training

	if t.Trees < 1 {
		errs = append(errs, "training trees must be at least 1")
	}
	if t.TestFraction < 0 || t.TestFraction >= 1 {
		errs = append(errs, "training test fraction must be in [0, 1)")
	}
	if err := ValidateMaxFeatures(t.MaxFeatures); err != nil {
		errs = append(errs, err.Error())
	}
	if t.MaxDepth < 0 {
		errs = append(errs, "training max depth must be at least 0")
	}
	if t.MinSamplesSplit < 2 {
		errs = append(errs, "training min samples split must be at least 2")
	}
	if t.MinSamplesLeaf < 1 {
		errs = append(errs, "training min samples leaf must be at least 1")
	}
	if t.Workers < 0 {
		errs = append(errs, "training workers must be at least 0")
	}

	return joinErrors(errs)
}

// ValidateMaxFeatures accepts sqrt, log2, all or a positive integer.
func ValidateMaxFeatures(value string) error {
	switch strings.ToLower(value) {
	case "sqrt", "log2", "all":
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fmt.Errorf("training max features must be sqrt, log2, all or a positive integer, got %q", value)
	}
	return nil
}

// validateModelSettings checks that every artifact has a file name
func validateModelSettings(settings *Settings) error {
	m := settings.Model
	if m.Dir == "" {
		return errors.New("model directory must not be empty")
	}
	for name, file := range map[string]string{
		"plant":   m.Plant,
		"fungal":  m.Fungal,
		"species": m.Species,
		"light":   m.Light,
		"microbe": m.Microbe,
	} {
		if file == "" {
			return fmt.Errorf("model %s file name must not be empty", name)
		}
	}
	return nil
}

// validateWebServerSettings validates the WebServer-specific settings
func validateWebServerSettings(settings *Settings) error {
	var errs []string
	ws := settings.WebServer

	if ws.Enabled {
		port, err := strconv.Atoi(ws.Port)
		if err != nil || port < 1 || port > 65535 {
			errs = append(errs, fmt.Sprintf("webserver port %q must be a number between 1 and 65535", ws.Port))
		}
	}
	if ws.AutoTLS && ws.Host == "" {
		errs = append(errs, "webserver host must be set when autotls is enabled")
	}
	if ws.RateLimit < 0 {
		errs = append(errs, "webserver rate limit must be at least 0")
	}
	if ws.SessionTTL <= 0 {
		errs = append(errs, "webserver session ttl must be positive")
	}

	return joinErrors(errs)
}

// validateOutputSettings rejects ambiguous datastore configuration
func validateOutputSettings(settings *Settings) error {
	out := settings.Output
	if out.SQLite.Enabled && out.MySQL.Enabled {
		return errors.New("only one of sqlite and mysql output can be enabled")
	}
	if out.SQLite.Enabled && out.SQLite.Path == "" {
		return errors.New("sqlite path must not be empty")
	}
	if out.MySQL.Enabled && (out.MySQL.Host == "" || out.MySQL.Database == "") {
		return errors.New("mysql host and database must be set")
	}
	return nil
}

// validateTelemetrySettings validates telemetry endpoints
func validateTelemetrySettings(settings *Settings) error {
	var errs []string
	tel := settings.Telemetry

	if tel.Enabled && tel.Listen == "" {
		errs = append(errs, "telemetry listen address must be set when telemetry is enabled")
	}
	if tel.Sentry.Enabled && tel.Sentry.DSN == "" {
		errs = append(errs, "sentry dsn must be set when sentry is enabled")
	}

	return joinErrors(errs)
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}
