package namespace

import (
	"time"

	"github.com/sqlfabric/fabric/pkg/models"
)

// NormalizeDialect remaps a legacy dialect value on the project to its
// canonical form, preserving the original under the actual_engine metadata
// key. Returns true when a remap happened so the caller can persist it.
// Idempotent: a project already on a canonical dialect is untouched, and
// actual_engine is never overwritten.
func NormalizeDialect(p *models.Project) bool {
	canonical, remapped := p.Dialect.Canonical()
	if !remapped {
		return false
	}

	if p.Metadata == nil {
		p.Metadata = make(map[string]any)
	}
	if _, exists := p.Metadata[models.MetaActualEngine]; !exists {
		p.Metadata[models.MetaActualEngine] = string(p.Dialect)
	}
	p.Metadata[models.MetaMigratedAt] = time.Now().UTC().Format(time.RFC3339)
	p.Dialect = canonical
	return true
}
