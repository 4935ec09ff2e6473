// Package config loads and validates configuration from a file or a
// MongoDB document.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/andrej220/nexcheck/pkg/config/configstore"
	"github.com/andrej220/nexcheck/pkg/config/filestore"
	"github.com/andrej220/nexcheck/pkg/config/mongostore"
	"github.com/go-playground/validator/v10"
)

type StoreType int

const (
	FileStore StoreType = iota
	MongoStore
)

var (
	ErrInvalidStoreType = errors.New("invalid store type")

	validate = validator.New(validator.WithRequiredStructEnabled())
)

func (t StoreType) String() string {
	switch t {
	case FileStore:
		return "file"
	case MongoStore:
		return "mongo"
	default:
		return fmt.Sprintf("StoreType(%d)", int(t))
	}
}

func ParseStoreType(s string) (StoreType, error) {
	switch strings.ToLower(s) {
	case "", "file":
		return FileStore, nil
	case "mongo", "mongodb":
		return MongoStore, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStoreType, s)
	}
}

type FileConfig struct {
	Path string `yaml:"path" json:"path" validate:"required"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" json:"uri" validate:"required"`
	DBName   string `yaml:"dbName" json:"dbName" validate:"required"`
	CollName string `yaml:"collName" json:"collName" validate:"required"`
	ID       string `yaml:"id" json:"id" validate:"required"` // Document ID
}

// Defaulter is implemented by configurations that fill in unset fields.
type Defaulter interface {
	SetDefaults()
}

func NewStore(ctx context.Context, storeType StoreType, cfg any) (configstore.ConfigStore, error) {
	switch storeType {
	case FileStore:
		fileCfg, ok := cfg.(*FileConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for file store, expected *FileConfig")
		}
		if err := validate.Struct(fileCfg); err != nil {
			return nil, fmt.Errorf("invalid file store config: %w", err)
		}
		return filestore.New(fileCfg.Path), nil
	case MongoStore:
		mongoCfg, ok := cfg.(*MongoConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for mongo store, expected *MongoConfig")
		}
		if err := validate.Struct(mongoCfg); err != nil {
			return nil, fmt.Errorf("invalid mongo store config: %w", err)
		}
		return mongostore.New(ctx, mongoCfg.URI, mongoCfg.DBName, mongoCfg.CollName, mongoCfg.ID)
	default:
		return nil, ErrInvalidStoreType
	}
}

// Load reads out from store, applies its defaults and validates it.
func Load(ctx context.Context, store configstore.ConfigStore, out any) error {
	if err := store.Load(ctx, out); err != nil {
		return err
	}
	if d, ok := out.(Defaulter); ok {
		d.SetDefaults()
	}
	return Validate(out)
}

// Validate checks the validate struct tags of cfg.
func Validate(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
