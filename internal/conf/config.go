// config.go: settings struct and functions to load and save application settings.
package conf

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig contains settings for log files.
type LogConfig struct {
	Enabled bool   // true to enable this log
	Path    string // path to log file
}

// MainSettings contains main application settings.
type MainSettings struct {
	Name string    // name of this node, can be used to identify the source of notes
	Log  LogConfig // main log settings
}

// SQLiteSettings contains settings for the SQLite database.
type SQLiteSettings struct {
	Enabled bool   // true to enable SQLite
	Path    string // path to the SQLite database file
}

// MySQLSettings contains settings for the MySQL database.
type MySQLSettings struct {
	Enabled  bool   // true to enable MySQL
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL host
	Port     string // MySQL port
}

// OutputSettings contains database output settings.
type OutputSettings struct {
	SQLite SQLiteSettings // SQLite output settings
	MySQL  MySQLSettings  // MySQL output settings
}

// ComparisonSettings controls the prediction-vs-actual comparison job.
type ComparisonSettings struct {
	IntervalMinutes      int // how often the comparison job runs
	ReadyBufferMinutes   int // skip predictions younger than this, actuals lag real time
	LookbackHours        int // how far back to look for pending predictions
	MatchToleranceMinutes int // max distance between target time and actual sample
	ExactMatchSeconds    int // delta below this short-circuits the per-record search
	MissedTimeoutHours   int // pending records older than this become missed
	BatchSize            int // max candidate records per run
}

// RetentionSettings controls how long comparison records are kept.
type RetentionSettings struct {
	UnmatchedDays int // retention for missed and stuck pending records
	CompletedDays int // retention for completed records
}

// AggregationSettings controls the statistics layer.
type AggregationSettings struct {
	MinSamplesForBadge  int // matched samples required before a badge is awarded
	MinSamplesPerEntity int // samples required for top/bottom performer ranking
	CacheTTLMinutes     int // TTL for memoized aggregate results
}

// DriftSettings controls the drift monitor.
type DriftSettings struct {
	WindowDays       int     // rolling window for live MAE
	WarningPercent   float64 // drift percent above which status is warning
	CriticalPercent  float64 // drift percent above which status is critical
	MinDriftPercent  float64 // minimum drift magnitude before retraining is recommended
	MaeCeiling       float64 // absolute live MAE that triggers retraining on its own
	CoverageFloor    float64 // coverage percent below which retraining is recommended
	MapeCeiling      float64 // MAPE above which retraining is recommended
	DefaultModelVersion string // model version assumed when the registry is empty
}

// CorrelationSettings controls the feature-error correlator.
type CorrelationSettings struct {
	HighErrorThreshold float64 // absolute error at or above this is "high error"
	MinSamplesPerValue int     // feature values with fewer samples are ignored
	TopValues          int     // how many problem values to surface per feature
}

// AccuracySettings groups all accuracy-tracking settings.
type AccuracySettings struct {
	Comparison  ComparisonSettings  // comparison job settings
	Retention   RetentionSettings   // record retention settings
	Aggregation AggregationSettings // statistics settings
	Drift       DriftSettings       // drift monitor settings
	Correlation CorrelationSettings // feature-error correlator settings
}

// MQTTSettings contains settings for drift alert publishing.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT alerts
	Broker   string // MQTT broker URL
	Topic    string // topic for drift alerts
	Username string // MQTT username
	Password string // MQTT password
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus telemetry endpoint
	Listen  string // IP address and port to listen on
}

// WebServerSettings contains settings for the read-side HTTP API.
type WebServerSettings struct {
	Enabled bool   // true to enable the HTTP API
	Port    string // port to listen on
}

// Settings contains all application settings.
type Settings struct {
	Debug bool // true to enable debug log output

	Main      MainSettings      // main application settings
	Output    OutputSettings    // database settings
	Accuracy  AccuracySettings  // accuracy tracking settings
	MQTT      MQTTSettings      // drift alert settings
	Telemetry TelemetrySettings // telemetry settings
	WebServer WebServerSettings // HTTP API settings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter, defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes a config file with default values to the first
// default config path and loads it.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("error unmarshaling defaults: %w", err)
	}

	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling default settings to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, yamlData, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	log.Printf("Created default config file at %s", configPath)
	return viper.ReadInConfig()
}

// Setting returns the current settings instance, initializing it if necessary.
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetDefaultConfigPaths returns the list of paths where the config file is searched.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}
	return []string{
		".",
		filepath.Join(homeDir, ".config", "waitwatch"),
	}, nil
}
