package analysis

import (
	"fmt"
	"strconv"
)

// Plant health statuses produced by the plant model.
const (
	StatusHealthy        = "Healthy"
	StatusModerateStress = "Moderate Stress"
	StatusHighStress     = "High Stress"
)

// Fungal risk levels.
const (
	RiskLow  = "Low Risk"
	RiskHigh = "High Risk"
)

// Severity drives the colour of result cards and sidebar badges.
type Severity string

const (
	SeverityHealthy  Severity = "healthy"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Overall assessments of a combined result.
const (
	OverallOptimal    = "Optimal Health"
	OverallCritical   = "Critical Attention Needed"
	OverallMonitoring = "Monitoring Required"
)

// Assessment is the combined reading of both analyses.
type Assessment struct {
	Overall         string   `json:"overall"`
	Severity        Severity `json:"severity"`
	Summary         string   `json:"summary"`
	Recommendations []string `json:"recommendations"`
}

// PlantSeverity maps a plant status to a severity. Anything that is neither
// healthy nor moderately stressed is critical.
func PlantSeverity(status string) Severity {
	switch status {
	case StatusHealthy:
		return SeverityHealthy
	case StatusModerateStress:
		return SeverityWarning
	default:
		return SeverityCritical
	}
}

// RiskSeverity maps a fungal risk level to a severity.
func RiskSeverity(risk string) Severity {
	if risk == RiskLow {
		return SeverityHealthy
	}
	return SeverityWarning
}

// plantAdvice returns the headline and recommendations for a plant result.
func plantAdvice(status string, moisture, nitrogen, ph float64) (string, []string) {
	switch PlantSeverity(status) {
	case SeverityHealthy:
		return "Your plants are in good condition! Maintain current practices.", nil
	case SeverityWarning:
		return "Recommendations:", []string{
			fmt.Sprintf("Increase irrigation (current: %s%%)", FormatValue(moisture)),
			fmt.Sprintf("Add nitrogen-rich fertilizer (current: %s ppm)", FormatValue(nitrogen)),
			fmt.Sprintf("Monitor soil pH levels (current: %s)", FormatValue(ph)),
		}
	default:
		return "Immediate action required:", []string{
			fmt.Sprintf("Urgent irrigation needed (current: %s%%)", FormatValue(moisture)),
			fmt.Sprintf("Apply emergency fertilizer (current nitrogen: %s ppm)", FormatValue(nitrogen)),
			fmt.Sprintf("Check soil pH and adjust if needed (current: %s)", FormatValue(ph)),
		}
	}
}

// fungalAdvice returns the survival verdict and message for a risk level.
func fungalAdvice(risk string) (survival, message string) {
	if risk == RiskLow {
		return "LIKELY TO SURVIVE", "The fungal network appears strong and supportive of plant health."
	}
	return "AT RISK", "The fungal network may be compromised. Immediate action is recommended."
}

// Combine merges a plant and a fungal result into one assessment.
func Combine(plant *PlantResult, fungal *FungalResult) Assessment {
	switch {
	case plant.Status == StatusHealthy && fungal.RiskLevel == RiskLow:
		return Assessment{
			Overall:  OverallOptimal,
			Severity: SeverityHealthy,
			Summary:  "Your plants are healthy now and likely to remain so.",
			Recommendations: []string{
				"Maintain current practices",
				"Continue regular monitoring",
				"No immediate action needed",
			},
		}
	case plant.Status == StatusHighStress || fungal.RiskLevel == RiskHigh:
		return Assessment{
			Overall:  OverallCritical,
			Severity: SeverityCritical,
			Summary:  "Immediate intervention is required.",
			Recommendations: []string{
				"Immediate intervention required",
				"Adjust irrigation and fertilization",
				"Consider soil amendments",
				"Monitor closely for changes",
			},
		}
	default:
		return Assessment{
			Overall:  OverallMonitoring,
			Severity: SeverityWarning,
			Summary:  "Some parameters need attention.",
			Recommendations: []string{
				"Monitor specific parameters",
				"Consider slight adjustments to practices",
				"Schedule follow-up assessment",
			},
		}
	}
}

// FormatValue renders a reading the way the dashboard shows raw inputs:
// shortest representation, with ".0" kept on whole numbers.
func FormatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v == float64(int64(v)) {
		s += ".0"
	}
	return s
}
