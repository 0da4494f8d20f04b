package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LastSyncKey is the config entry describing the latest successful run
const LastSyncKey = "last-sync"

// SyncRecord summarises a successful run
type SyncRecord struct {
	RunID      string    `json:"run_id"`
	FinishedAt time.Time `json:"finished_at"`
	Stored     int       `json:"stored"`
	Missing    []int64   `json:"missing,omitempty"`
	Output     string    `json:"output,omitempty"`
}

type configStore interface {
	GetConfig(ctx context.Context, name string) (string, bool, error)
	SetConfig(ctx context.Context, name, value string) error
}

// SaveSyncRecord overwrites the last-sync entry
func SaveSyncRecord(ctx context.Context, s configStore, rec SyncRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode sync record: %w", err)
	}
	return s.SetConfig(ctx, LastSyncKey, string(data))
}

// LastSyncRecord returns the last-sync entry, or nil if no run has finished yet
func LastSyncRecord(ctx context.Context, s configStore) (*SyncRecord, error) {
	raw, ok, err := s.GetConfig(ctx, LastSyncKey)
	if err != nil || !ok {
		return nil, err
	}

	var rec SyncRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode sync record: %w", err)
	}
	return &rec, nil
}
