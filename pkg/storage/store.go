package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"flico/pkg/models"
)

// ErrMissingIDColumn is returned when a store's header lacks the id column.
var ErrMissingIDColumn = errors.New("store header has no id column")

// Store is the append-only CSV file of one institution.
type Store struct {
	path string
}

// Open returns a Store for path without touching the filesystem.
func Open(path string) *Store {
	return &Store{path: path}
}

// Path returns the file path of the store
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the store file is present
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// EnsureHeader creates the store with a header row when it is missing or
// empty. An existing non-empty store is left untouched.
func (s *Store) EnsureHeader() error {
	info, err := os.Stat(s.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(models.Columns); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}

	// Write to a temporary file first, then rename
	tempFile := s.path + ".tmp"
	if err := os.WriteFile(tempFile, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := os.Rename(tempFile, s.path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// LoadIDs reads the set of identifiers already stored. A missing or empty
// store yields an empty set. Rows with an empty id are ignored.
func (s *Store) LoadIDs() (map[string]struct{}, error) {
	ids := make(map[string]struct{})

	file, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return ids, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return ids, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	col := -1
	for i, name := range header {
		if name == "id" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%s: %w", s.path, ErrMissingIDColumn)
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if col < len(row) && row[col] != "" {
			ids[row[col]] = struct{}{}
		}
	}
	return ids, nil
}

// CountUnique returns the number of distinct identifiers in the store.
func (s *Store) CountUnique() (int, error) {
	ids, err := s.LoadIDs()
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// Append writes records as a single batch and syncs the file before
// returning. The store must already have a header.
func (s *Store) Append(records []models.Record) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, rec := range records {
		if err := w.Write(rec.Row()); err != nil {
			return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open store for append: %w", err)
	}

	data := buf.Bytes()
	terminated, err := endsWithNewline(file)
	if err != nil {
		file.Close()
		return err
	}
	if !terminated {
		// A previous run died mid-row; keep the new batch on its own lines.
		data = append([]byte("\n"), data...)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to append records: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync store: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

func endsWithNewline(file *os.File) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("failed to stat store: %w", err)
	}
	if info.Size() == 0 {
		return true, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return false, fmt.Errorf("failed to read store tail: %w", err)
	}
	return last[0] == '\n', nil
}
