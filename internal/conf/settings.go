package conf

import (
	"time"

	"github.com/tphakala/myconet/internal/logger"
)

// PlantDataSettings describes the plant health training table.
type PlantDataSettings struct {
	Path  string   // path to the raw plant health CSV
	Label string   // label column, e.g. Plant_Health_Status
	Drop  []string // identifier columns removed before training
}

// FungalDataSettings describes the fungal network training table.
type FungalDataSettings struct {
	Path         string   // path to the raw fungal network CSV
	Label        string   // survival label column
	SurviveLabel string   // label value meaning the network survived
	Species      string   // plant species column
	Light        string   // light condition column
	Microbe      string   // microbial community column
	Numeric      []string // numeric proxy columns in model order
}

// DataSettings groups the training data sources.
type DataSettings struct {
	Plant  PlantDataSettings
	Fungal FungalDataSettings
}

// TrainingSettings contains random forest hyperparameters.
type TrainingSettings struct {
	Trees           int     // number of trees per forest
	Seed            uint64  // master random seed
	TestFraction    float64 // held-out share for evaluation
	MaxFeatures     string  // sqrt, log2, all or a positive integer
	MaxDepth        int     // 0 = unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	Workers         int // concurrent tree fits, 0 = GOMAXPROCS
}

// ModelSettings locates the persisted model artifacts.
type ModelSettings struct {
	Dir     string // artifact directory
	Plant   string // plant health model bundle file
	Fungal  string // fungal network model bundle file
	Species string // species encoder file
	Light   string // light condition encoder file
	Microbe string // microbial community encoder file
}

// WebServerSettings contains settings for the dashboard server.
type WebServerSettings struct {
	Enabled       bool          // true to enable web server
	Port          string        // port for web server
	Debug         bool          // true to enable echo debug mode
	AutoTLS       bool          // true to obtain certificates with ACME
	Host          string        // public host name, required for AutoTLS
	RateLimit     float64       // JSON API requests per second, 0 disables
	SessionSecret string        // cookie signing secret
	SessionTTL    time.Duration // idle lifetime of a dashboard session
}

// SQLiteSettings contains settings for the SQLite training run store.
type SQLiteSettings struct {
	Enabled bool   // true to enable sqlite output
	Path    string // path to sqlite database
}

// MySQLSettings contains settings for the MySQL training run store.
type MySQLSettings struct {
	Enabled  bool   // true to enable mysql output
	Username string // username for mysql database
	Password string // password for mysql database
	Database string // database name for mysql database
	Host     string // host for mysql database
	Port     string // port for mysql database
}

// OutputSettings selects the training run store.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// SentrySettings configures error reporting.
type SentrySettings struct {
	Enabled bool
	DSN     string
}

// TelemetrySettings controls the Prometheus endpoint and Sentry reporting.
type TelemetrySettings struct {
	Enabled bool   // true to expose /metrics
	Listen  string // address for the standalone metrics listener
	Sentry  SentrySettings
}

// Settings contains all configuration options for the Myco-Net application.
type Settings struct {
	Debug bool // true to enable debug mode

	Main struct {
		Name     string               // name of the application instance
		TimeZone string               `mapstructure:"timezone"` // timezone used for timestamps
		Log      logger.LoggingConfig // central logger configuration
	}

	Data      DataSettings
	Training  TrainingSettings
	Model     ModelSettings
	WebServer WebServerSettings
	Output    OutputSettings
	Telemetry TelemetrySettings
}

// Location returns the configured timezone, falling back to local time.
func (s *Settings) Location() *time.Location {
	switch s.Main.TimeZone {
	case "", "Local":
		return time.Local
	}
	loc, err := time.LoadLocation(s.Main.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}
