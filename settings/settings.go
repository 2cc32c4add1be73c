// Package settings stores versioned JSON settings documents as entities of the
// "setting" kind. Every change saves a new version; the newest by CreatedAt wins.
package settings

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jacentio/kindstore/document"
	"github.com/jacentio/kindstore/store"
)

// Service reads and writes settings documents.
type Service struct {
	store  *store.Store
	kind   string
	logger *slog.Logger
}

// NewService creates a settings service over s. A nil logger uses slog.Default().
func NewService(s *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  s,
		kind:   store.KindSetting,
		logger: logger,
	}
}

// Post saves body as the newest settings version. Body is parsed leniently;
// ErrInvalidInput is returned if it still does not parse.
func (svc *Service) Post(ctx context.Context, body string) (store.Key, error) {
	doc, ok := document.ParseLenient(body)
	if !ok {
		return store.Key{}, document.ErrInvalidInput
	}
	return svc.save(ctx, doc)
}

// Latest returns the newest settings document as JSON, or "" if none was saved.
func (svc *Service) Latest(ctx context.Context) (string, error) {
	for e, err := range svc.store.QueryLastCreated(ctx, svc.kind) {
		if err != nil {
			return "", err
		}
		v, _ := e.Properties.Get(store.ColumnJSON)
		js, _ := v.AsText()
		return js, nil
	}
	return "", nil
}

// Patch merges body into the newest settings document and saves the result as a
// new version. With no prior version the body is saved as is.
func (svc *Service) Patch(ctx context.Context, body string) (store.Key, error) {
	source, ok := document.ParseLenient(body)
	if !ok {
		return store.Key{}, document.ErrInvalidInput
	}

	current, err := svc.Latest(ctx)
	if err != nil {
		return store.Key{}, err
	}
	target := document.ObjectNode()
	if current != "" {
		target, err = document.Parse(current)
		if err != nil {
			return store.Key{}, fmt.Errorf("stored settings: %w", err)
		}
	}

	merged, err := document.DeepMerge(source, target)
	if err != nil {
		return store.Key{}, err
	}
	svc.logger.Debug("settings patched", "fields", merged.Len())
	return svc.save(ctx, merged)
}

func (svc *Service) save(ctx context.Context, doc document.Node) (store.Key, error) {
	rec := store.NewRecord().
		Put(store.ColumnJSON, store.Text(doc.String()))
	key, err := svc.store.Save(ctx, svc.kind, rec)
	if err != nil {
		return store.Key{}, err
	}
	svc.logger.Info("settings saved", "key", key.String())
	return key, nil
}
