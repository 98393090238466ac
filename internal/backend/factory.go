package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"regdash/internal/cache"
	"regdash/internal/storage"
	"regdash/internal/store"
	"regdash/internal/store/google"
	"regdash/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger   *slog.Logger
	observer store.ReadObserver
}

func NewFactory(logger *slog.Logger, observer store.ReadObserver) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger:   logger,
		observer: observer,
	}
}

// CreateBackend opens the configured store and wraps it in a shared reader.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.share(res, config)
	return res, nil
}

// share puts the coalescing reader and its snapshot cache in front of the
// raw store. A zero TTL disables the cache but keeps coalescing.
func (f *DefaultFactory) share(res *BackendResult, config Config) {
	opts := []store.SharedOption{store.WithTimeout(config.StoreTimeout)}
	if f.observer != nil {
		opts = append(opts, store.WithReadObserver(f.observer))
	}

	var manager *cache.Manager
	if config.SnapshotCacheTTL > 0 {
		snapshots := cache.NewLRUCache[store.Snapshot](config.SnapshotCacheSize, config.SnapshotCacheTTL)
		opts = append(opts, store.WithCache(snapshots))

		manager = cache.NewManager()
		manager.Register(snapshots)
		manager.StartCleanup(cleanupInterval(config.SnapshotCacheTTL))
	}
	res.Reader = store.NewSharedReader(res.Store, opts...)

	inner := res.Cleanup
	res.Cleanup = func() error {
		if manager != nil {
			manager.Stop()
		}
		if inner != nil {
			return inner()
		}
		return nil
	}

	f.logger.Info("Shared snapshot reader ready",
		"backend", config.Type,
		"cache_ttl", config.SnapshotCacheTTL,
		"store_timeout", config.StoreTimeout)
}

func cleanupInterval(ttl time.Duration) time.Duration {
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Writer:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := google.New(ctx, google.Options{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		ReportsSheet:    config.GoogleReportsSheetName,
		SamplesSheet:    config.GoogleSamplesSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"reports_sheet", config.GoogleReportsSheetName,
		"samples_sheet", config.GoogleSamplesSheetName)

	return &BackendResult{Store: cli}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	s, err := memory.NewFromFiles(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Store:  s,
		Writer: s,
	}, nil
}
