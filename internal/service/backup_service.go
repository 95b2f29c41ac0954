package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"wordwatch/internal/database"
	"wordwatch/internal/logger"
	"wordwatch/internal/models"
	"wordwatch/internal/repository"
)

// BackupVersion is written into every export
const BackupVersion = "1.0"

// BackupData is the complete export of persisted results
type BackupData struct {
	Version      string                `json:"version"`
	ExportedAt   time.Time             `json:"exported_at"`
	DatabaseType string                `json:"database_type"`
	Results      []models.ResultRecord `json:"results"`
	Counters     []models.Counter      `json:"counters"`
}

// BackupService handles export and restore of the results database
type BackupService struct {
	db  *database.DB
	log *logger.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, log *logger.Logger) *BackupService {
	return &BackupService{db: db, log: log.With("service", "BackupService")}
}

// Export writes a backup of all results and counters to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}
	s.log.Info("database exported", "path", outputPath)
	return nil
}

// ExportToWriter writes a backup as indented JSON
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	repo := repository.NewResultRepository(s.db)

	results, err := repo.ListResults(ctx)
	if err != nil {
		return fmt.Errorf("failed to export results: %w", err)
	}
	counters, err := repo.ListCounters(ctx)
	if err != nil {
		return fmt.Errorf("failed to export counters: %w", err)
	}

	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.Dialect.MigrationsSubdir(),
		Results:      results,
		Counters:     counters,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	s.log.Info("export complete", "results", len(results), "counters", len(counters))
	return nil
}

// Import restores a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()
	return s.ImportFromReader(ctx, file)
}

// ImportFromReader restores a backup in a single transaction. Existing rows
// with the same keys are overwritten.
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader) error {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return fmt.Errorf("unsupported backup version %q", backup.Version)
	}
	s.log.Info("importing backup", "exported_at", backup.ExportedAt, "source", backup.DatabaseType)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	repo := repository.NewResultRepository(tx)
	for _, rec := range backup.Results {
		if err := repo.WriteResult(ctx, rec); err != nil {
			return fmt.Errorf("failed to import result %s: %w", rec.Key, err)
		}
	}
	for _, c := range backup.Counters {
		if err := repo.SetCounter(ctx, c.Name, c.Value); err != nil {
			return fmt.Errorf("failed to import counter %s: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	s.log.Info("import complete", "results", len(backup.Results), "counters", len(backup.Counters))
	return nil
}
