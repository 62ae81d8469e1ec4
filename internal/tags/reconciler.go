// Package tags canonicalizes AI-suggested labels against the tag registry.
// A suggestion either resolves to an existing tag, returning the registry's
// canonical casing rather than the suggested one, or creates a new tag whose
// trimmed original casing becomes canonical.
package tags

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lorekeep/lorekeep/internal/store"
)

// Registry is the session tag registry the reconciler matches against.
// *knowledgectx.Loader satisfies it.
type Registry interface {
	LookupTag(ctx context.Context, name string) (store.Tag, bool, error)
	AppendTag(ctx context.Context, tag store.Tag) error
}

// Creator persists new tags. *store.Store satisfies it. The store insert is
// idempotent, so a cross-session race on the same name converges on one row.
type Creator interface {
	CreateTag(ctx context.Context, name, description string) (store.Tag, error)
}

// Assignment is one reconciled label.
type Assignment struct {
	ID    int64
	Name  string // canonical casing from the registry
	IsNew bool   // true when this session created the tag
}

// Reconciler resolves suggested tag names to canonical registry tags.
type Reconciler struct {
	registry Registry
	creator  Creator
	logger   *slog.Logger
}

// New creates a Reconciler. A nil logger falls back to slog.Default().
func New(registry Registry, creator Creator, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{registry: registry, creator: creator, logger: logger}
}

// Reconcile resolves each suggested name to exactly one canonical tag.
// Duplicates within the batch, case and whitespace variants included,
// collapse to a single assignment: newly created tags are appended to the
// in-session registry so a repeated suggestion resolves to the just-created
// tag instead of creating a second one.
//
// A store failure drops only the affected suggestion; reconciliation of the
// remaining names continues.
func (r *Reconciler) Reconcile(ctx context.Context, suggested []string) ([]Assignment, error) {
	assignments := make([]Assignment, 0, len(suggested))
	seen := make(map[string]struct{}, len(suggested))

	for _, raw := range suggested {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}

		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}

		existing, found, err := r.registry.LookupTag(ctx, name)
		if err != nil {
			return nil, err
		}
		if found {
			seen[key] = struct{}{}
			assignments = append(assignments, Assignment{
				ID:   existing.ID,
				Name: existing.Name,
			})
			continue
		}

		created, err := r.creator.CreateTag(ctx, name, "")
		if err != nil {
			// Partial success: drop this suggestion, keep going.
			r.logger.Warn("tag creation failed, dropping suggestion",
				"name", name, "error", err)
			continue
		}
		if err := r.registry.AppendTag(ctx, created); err != nil {
			return nil, err
		}

		seen[strings.ToLower(created.Name)] = struct{}{}
		assignments = append(assignments, Assignment{
			ID:    created.ID,
			Name:  created.Name,
			IsNew: true,
		})
	}

	return assignments, nil
}
