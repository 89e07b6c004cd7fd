// conf/validate.go

package conf

import (
	"fmt"
	"strconv"
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

	if err := validateOutputSettings(&settings.Output); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateComparisonSettings(&settings.Accuracy.Comparison); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateRetentionSettings(&settings.Accuracy.Retention); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateDriftSettings(&settings.Accuracy.Drift); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}

	return nil
}

func validateOutputSettings(settings *OutputSettings) error {
	if settings.SQLite.Enabled && settings.MySQL.Enabled {
		return fmt.Errorf("only one database output can be enabled at a time")
	}
	if !settings.SQLite.Enabled && !settings.MySQL.Enabled {
		return fmt.Errorf("at least one database output must be enabled")
	}
	if settings.SQLite.Enabled && settings.SQLite.Path == "" {
		return fmt.Errorf("SQLite path must not be empty")
	}
	return nil
}

func validateComparisonSettings(settings *ComparisonSettings) error {
	if settings.MatchToleranceMinutes <= 0 {
		return fmt.Errorf("match tolerance must be positive, got %d", settings.MatchToleranceMinutes)
	}
	if settings.ReadyBufferMinutes < 0 {
		return fmt.Errorf("ready buffer must not be negative, got %d", settings.ReadyBufferMinutes)
	}
	if settings.LookbackHours <= 0 {
		return fmt.Errorf("lookback must be positive, got %d", settings.LookbackHours)
	}
	if settings.MissedTimeoutHours <= 0 {
		return fmt.Errorf("missed timeout must be positive, got %d", settings.MissedTimeoutHours)
	}
	if settings.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", settings.BatchSize)
	}
	return nil
}

func validateRetentionSettings(settings *RetentionSettings) error {
	if settings.UnmatchedDays <= 0 || settings.CompletedDays <= 0 {
		return fmt.Errorf("retention horizons must be positive")
	}
	if settings.UnmatchedDays > settings.CompletedDays {
		return fmt.Errorf("unmatched retention (%d days) must not exceed completed retention (%d days)",
			settings.UnmatchedDays, settings.CompletedDays)
	}
	return nil
}

func validateDriftSettings(settings *DriftSettings) error {
	if settings.WindowDays <= 0 {
		return fmt.Errorf("drift window must be positive, got %d", settings.WindowDays)
	}
	if settings.WarningPercent >= settings.CriticalPercent {
		return fmt.Errorf("drift warning threshold (%.1f%%) must be below critical threshold (%.1f%%)",
			settings.WarningPercent, settings.CriticalPercent)
	}
	return nil
}

func validateWebServerSettings(settings *WebServerSettings) error {
	if !settings.Enabled {
		return nil
	}
	port, err := strconv.Atoi(settings.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid web server port: %s", settings.Port)
	}
	return nil
}
