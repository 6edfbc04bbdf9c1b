// Package scenario decides which installation scenario applies to a task:
// a fresh install into an absent target, a destructive clean reinstall, a
// non-destructive merge, or the catalog-specific clean variant for kinds
// whose install root is shared with unrelated data.
package scenario

import "github.com/arthur-debert/airlift/pkg/types"

// Scenario is the installation strategy selected for one task.
type Scenario int

const (
	// Fresh moves the staged tree directly into an absent target.
	Fresh Scenario = iota

	// Clean replaces an existing target after renaming it aside, with
	// backup and restore of protected sub-content.
	Clean

	// CatalogClean replaces only the top-level entries staging provides,
	// never the whole target root.
	CatalogClean

	// Merge overlays staged files onto an existing target, preserving
	// files absent from staging.
	Merge
)

func (s Scenario) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Clean:
		return "clean"
	case CatalogClean:
		return "catalog-clean"
	case Merge:
		return "merge"
	}
	return "unknown"
}

// Select picks the scenario from target existence, the task's overwrite
// flag and the add-on kind. Catalog kinds always take the catalog clean
// variant over an existing target: deleting or renaming their shared root
// would destroy unrelated sibling data.
func Select(targetExists, overwrite bool, kind types.AddonKind) Scenario {
	if !targetExists {
		return Fresh
	}
	if kind.IsCatalog() {
		return CatalogClean
	}
	if overwrite {
		return Merge
	}
	return Clean
}
