package backend

import (
	"errors"
	"fmt"

	"regdash/internal/config"
)

// FromAppConfig selects the backend settings out of the application config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("unknown data backend %q: must be one of %v", appConfig.DataBackend, GetBackendTypes())
	}

	return Config{
		Type:          backendType,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		DataDirectory: appConfig.DataDir,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleReportsSheetName:   appConfig.GoogleReportsSheetName,
		GoogleSamplesSheetName:   appConfig.GoogleSamplesSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,

		SnapshotCacheTTL:  appConfig.SnapshotCacheTTL,
		SnapshotCacheSize: appConfig.SnapshotCacheSize,
		StoreTimeout:      appConfig.StoreTimeout,
	}, nil
}

// Validate checks the settings the selected backend needs.
func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("sqlite backend needs a database path")
		}
	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("sheets backend needs a spreadsheet id")
		}
	case MemoryBackend:
		// an empty DataDirectory means "data"
	default:
		return fmt.Errorf("unknown backend type %q: must be one of %v", c.Type, GetBackendTypes())
	}

	if c.SnapshotCacheTTL < 0 {
		return fmt.Errorf("snapshot cache ttl %v must not be negative", c.SnapshotCacheTTL)
	}
	return nil
}

// GetBackendTypes lists the selectable backends.
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, SheetsBackend}
}
