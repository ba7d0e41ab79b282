package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type jsonFileStore struct {
	path string
}

func init() {
	Register("jsonfile", func(ctx context.Context, opts OpenOptions) (Store, error) {
		return newJSONFileStore(opts)
	})
}

func newJSONFileStore(opts OpenOptions) (*jsonFileStore, error) {
	path, _ := opts.Config.Options["path"].(string)
	if path == "" {
		path = filepath.Join(opts.WorkDir, "history.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	return &jsonFileStore{path: path}, nil
}

// Append stores a new record
func (s *jsonFileStore) Append(ctx context.Context, rec Record) error {
	records, err := s.load()
	if err != nil {
		return err
	}

	records = append(records, rec)
	return s.save(records)
}

// List returns records for a project, newest first
func (s *jsonFileStore) List(ctx context.Context, project string) ([]Record, error) {
	records, err := s.load()
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, rec := range records {
		if project == "" || rec.Project == project {
			out = append(out, rec)
		}
	}

	sortNewestFirst(out)
	return out, nil
}

// Prune removes all but the newest keep records for a project
func (s *jsonFileStore) Prune(ctx context.Context, project string, keep int) (int, error) {
	records, err := s.load()
	if err != nil {
		return 0, err
	}

	var matching []Record
	var others []Record
	for _, rec := range records {
		if rec.Project == project {
			matching = append(matching, rec)
		} else {
			others = append(others, rec)
		}
	}

	if len(matching) <= keep {
		return 0, nil
	}

	// Newest first, then cut the tail
	sortNewestFirst(matching)
	removed := len(matching) - keep
	matching = matching[:keep]

	if err := s.save(append(others, matching...)); err != nil {
		return 0, err
	}

	return removed, nil
}

// Close is a no-op for the file store
func (s *jsonFileStore) Close() error {
	return nil
}

func (s *jsonFileStore) load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse history file %s: %w", s.path, err)
	}

	return records, nil
}

func (s *jsonFileStore) save(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	// Write to a temp file first so a crash never truncates existing history
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	return nil
}
