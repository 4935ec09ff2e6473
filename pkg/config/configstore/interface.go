// Package configstore defines where configuration documents live.
package configstore

import "context"

type ConfigStore interface {
	Load(ctx context.Context, out any) error
	Save(ctx context.Context, data any) error
}
