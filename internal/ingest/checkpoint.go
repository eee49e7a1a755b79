package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"phone-catalog-ingest/internal/stats"
)

// Checkpoint is the saved position of a run: the last record processed and
// the statistics up to it.
type Checkpoint struct {
	RunID   string      `json:"run_id"`
	File    string      `json:"file"`
	Index   int         `json:"index"`
	SavedAt time.Time   `json:"saved_at"`
	Stats   stats.State `json:"stats"`
}

// CheckpointManager handles saving and loading run state
type CheckpointManager struct {
	filePath string
}

// NewCheckpointManager creates a new checkpoint manager
func NewCheckpointManager(filePath string) *CheckpointManager {
	return &CheckpointManager{
		filePath: filePath,
	}
}

// Save writes the checkpoint atomically through a temp file.
func (c *CheckpointManager) Save(cp Checkpoint) error {
	if c.filePath == "" {
		return nil
	}
	cp.SavedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	tmp := c.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := os.Rename(tmp, c.filePath); err != nil {
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}

// Load loads the checkpoint if it exists
func (c *CheckpointManager) Load() (*Checkpoint, error) {
	if c.filePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}

	return &checkpoint, nil
}

// Delete removes the checkpoint file
func (c *CheckpointManager) Delete() error {
	if c.filePath == "" {
		return nil
	}
	if err := os.Remove(c.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %w", err)
	}
	return nil
}

// Exists checks if checkpoint file exists
func (c *CheckpointManager) Exists() bool {
	if c.filePath == "" {
		return false
	}
	_, err := os.Stat(c.filePath)
	return err == nil
}
