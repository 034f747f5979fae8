package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"flico/pkg/logger"
	"flico/pkg/models"
)

// Dir is the hidden directory, inside the metadata directory, holding
// checkpoint files. Being hidden keeps it out of *.csv globs.
const Dir = ".checkpoints"

// Checkpoint records how far the last crawl of an institution got. It is
// informational: resuming is always driven by the institution's store.
type Checkpoint struct {
	InstitutionID   string    `json:"institution_id"`
	InstitutionName string    `json:"institution_name"`
	RunID           string    `json:"run_id"`
	LastPage        int       `json:"last_page"`
	Stored          int       `json:"stored"`
	RemoteTotal     int       `json:"remote_total"`
	Added           int       `json:"added"`
	Status          string    `json:"status"`
	Reason          string    `json:"reason,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Version         int       `json:"version"`
}

// Coverage returns Stored/RemoteTotal, or 1 when the total is unknown.
func (c *Checkpoint) Coverage() float64 {
	if c.RemoteTotal <= 0 {
		return 1.0
	}
	return float64(c.Stored) / float64(c.RemoteTotal)
}

// Manager handles checkpoint operations
type Manager struct {
	dir    string
	logger logger.Logger
}

// NewManager creates a checkpoint manager under metadataDir
func NewManager(metadataDir string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	dir := filepath.Join(metadataDir, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{dir: dir, logger: log}, nil
}

// Path returns the checkpoint file for an institution, keyed by its id so
// renames on the Flickr side do not orphan it.
func (m *Manager) Path(institutionID string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "@", "_at_").Replace(institutionID)
	return filepath.Join(m.dir, name+".json")
}

// Start creates a fresh checkpoint for a crawl of inst.
func (m *Manager) Start(inst models.Institution, runID string, stored, remoteTotal int) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		InstitutionID:   inst.ID,
		InstitutionName: inst.Name,
		RunID:           runID,
		Stored:          stored,
		RemoteTotal:     remoteTotal,
		Status:          "RUNNING",
		StartedAt:       now,
		Version:         1,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}
	return cp, nil
}

// Load loads the checkpoint of an institution; nil when none exists
func (m *Manager) Load(institutionID string) (*Checkpoint, error) {
	return m.load(m.Path(institutionID))
}

func (m *Manager) load(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", filepath.Base(path), err)
	}
	return &cp, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()
	path := m.Path(cp.InstitutionID)

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"institution": cp.InstitutionName,
		"last_page":   cp.LastPage,
		"stored":      cp.Stored,
		"status":      cp.Status,
	})
	return nil
}

// UpdateProgress records the last page processed and the running store size
func (m *Manager) UpdateProgress(cp *Checkpoint, page, stored, added int) error {
	cp.LastPage = page
	cp.Stored = stored
	cp.Added = added
	return m.Save(cp)
}

// Finish records the final status of the crawl
func (m *Manager) Finish(cp *Checkpoint, status, reason string, stored, added int) error {
	cp.Status = status
	cp.Reason = reason
	cp.Stored = stored
	cp.Added = added
	return m.Save(cp)
}

// Delete removes the checkpoint of an institution
func (m *Manager) Delete(institutionID string) error {
	if err := os.Remove(m.Path(institutionID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns every readable checkpoint, most recently updated first.
// Unreadable files are logged and skipped.
func (m *Manager) List() ([]*Checkpoint, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoints directory: %w", err)
	}

	var out []*Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		cp, err := m.load(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			m.logger.WithError(err).Warn("Skipping unreadable checkpoint")
			continue
		}
		if cp != nil {
			out = append(out, cp)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
