// Package source defines the connector contract the orchestrator consumes
// and ships two reference connectors: RSS/Atom feeds and JSONL exports.
// Connectors fetch and normalize; everything downstream of the normalized
// items belongs to the engine.
package source

import (
	"context"

	"github.com/air23zj/pal-sub001/internal/item"
)

// Source is one independent, failure-isolated producer of items.
type Source interface {
	// Name is the module id items from this source carry.
	Name() string
	// Fetch retrieves and normalizes the source's current items. A
	// returned error fails this module only, never the run.
	Fetch(ctx context.Context) ([]item.NormalizedItem, error)
}
