package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"wordwatch/internal/logger"
	"wordwatch/internal/models"
	"wordwatch/internal/repository"
)

// Storage persists experiment results and the shared assignment counter
type Storage interface {
	Write(ctx context.Context, key string, value any) error
	ReadCounter(ctx context.Context) (int, error)
	WriteCounter(ctx context.Context, n int) error
}

// SQLStorage stores results through the SQL result repository
type SQLStorage struct {
	repo       *repository.ResultRepository
	counterKey string
}

// NewSQLStorage creates a SQL backed store using counterKey for assignments
func NewSQLStorage(repo *repository.ResultRepository, counterKey string) *SQLStorage {
	return &SQLStorage{repo: repo, counterKey: counterKey}
}

// Write encodes value as JSON. The session id is the key's first segment.
func (s *SQLStorage) Write(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	sessionID, _, _ := strings.Cut(key, "/")
	return s.repo.WriteResult(ctx, models.ResultRecord{
		Key:       key,
		SessionID: sessionID,
		Value:     raw,
		UpdatedAt: time.Now().UTC(),
	})
}

func (s *SQLStorage) ReadCounter(ctx context.Context) (int, error) {
	return s.repo.GetCounter(ctx, s.counterKey)
}

func (s *SQLStorage) WriteCounter(ctx context.Context, n int) error {
	return s.repo.SetCounter(ctx, s.counterKey, n)
}

// NopStorage discards writes. Used in local mode and when no backend is
// configured.
type NopStorage struct {
	log *logger.Logger
}

func NewNopStorage(log *logger.Logger) *NopStorage {
	return &NopStorage{log: log}
}

func (s *NopStorage) Write(ctx context.Context, key string, value any) error {
	s.log.Debug("result discarded", "key", key)
	return nil
}

func (s *NopStorage) ReadCounter(ctx context.Context) (int, error) { return 0, nil }

func (s *NopStorage) WriteCounter(ctx context.Context, n int) error { return nil }
