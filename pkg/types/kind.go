package types

import "fmt"

// AddonKind identifies the category of an add-on package. The kind drives
// scenario selection, which sub-content is protected across reinstalls,
// and which marker artifact verification expects.
type AddonKind string

const (
	// KindAircraft packages carry user liveries and preference files that
	// must survive a clean reinstall.
	KindAircraft AddonKind = "aircraft"

	// KindScenery packages are standalone scenery folders.
	KindScenery AddonKind = "scenery"

	// KindPlugin packages are standalone plugin folders.
	KindPlugin AddonKind = "plugin"

	// KindNavdata is the data-catalog kind: its install root is shared with
	// unrelated sibling data, so only the specific top-level entries a new
	// install replaces may ever be deleted or archived.
	KindNavdata AddonKind = "navdata"
)

// ParseKind converts a user-supplied string into an AddonKind.
func ParseKind(s string) (AddonKind, error) {
	switch AddonKind(s) {
	case KindAircraft, KindScenery, KindPlugin, KindNavdata:
		return AddonKind(s), nil
	}
	return "", fmt.Errorf("unknown add-on kind %q", s)
}

// IsCatalog reports whether the kind's install root is shared across
// unrelated data and must never be wholesale-deleted.
func (k AddonKind) IsCatalog() bool {
	return k == KindNavdata
}

// HasProtectedContent reports whether the kind carries user-customized
// sub-content (liveries, preference files) that a clean reinstall must
// preserve.
func (k AddonKind) HasProtectedContent() bool {
	return k == KindAircraft
}

// MarkerExtensions returns the file extensions, any one of which marks a
// well-formed install of this kind. An empty slice means any non-empty
// target passes the marker check.
func (k AddonKind) MarkerExtensions() []string {
	switch k {
	case KindAircraft:
		return []string{".acf"}
	case KindScenery:
		return []string{".dsf"}
	case KindPlugin:
		return []string{".xpl"}
	case KindNavdata:
		return []string{".dat"}
	}
	return nil
}

func (k AddonKind) String() string {
	return string(k)
}
