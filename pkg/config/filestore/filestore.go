package filestore

import (
	"context"
	"fmt"
	"os"

	"github.com/andrej220/nexcheck/pkg/config/configstore"
	"github.com/andrej220/nexcheck/pkg/persistence"
	"gopkg.in/yaml.v3"
)

var _ configstore.ConfigStore = (*FileStore)(nil)

// FileStore keeps the configuration in a YAML file. Saved files are only
// readable by the owner since they may hold credentials.
type FileStore struct {
	Path string
}

func New(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load(_ context.Context, out any) error {
	if out == nil {
		return fmt.Errorf("Load: output parameter must not be nil")
	}

	bytes, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("Load: failed to read file %s: %w", f.Path, err)
	}

	if len(bytes) == 0 {
		return fmt.Errorf("Load: config file %s is empty", f.Path)
	}

	if err := yaml.Unmarshal(bytes, out); err != nil {
		return fmt.Errorf("Load: failed to parse YAML in %s: %w", f.Path, err)
	}

	return nil
}

func (f *FileStore) Save(_ context.Context, in any) error {
	if in == nil {
		return fmt.Errorf("Save: input parameter must not be nil")
	}
	writer := persistence.FileWriter{Overwrite: true, Mode: 0600}
	if err := persistence.WriteToFile(in, f.Path, persistence.YAMLSerializer{}, writer); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}
