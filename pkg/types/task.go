package types

// BackupPrefs selects which pre-existing content survives a clean
// reinstall. The scanner populates this from the add-on kind and user
// settings; the engine only reads it.
type BackupPrefs struct {
	// Liveries preserves the liveries directory of an aircraft package.
	Liveries bool

	// ConfigPatterns are glob patterns, relative to the target root,
	// matching preference files that must be carried over (and always win
	// over freshly installed defaults).
	ConfigPatterns []string

	// WholeCatalog archives the replaced entries of a data-catalog install
	// instead of deleting them.
	WholeCatalog bool
}

// InstallTask describes one add-on install: one task commits exactly one
// target path. Tasks are created by the external scanner and are read-only
// to the engine.
type InstallTask struct {
	// Name is a human-readable label used in logs and results.
	Name string

	// Kind is the add-on category (see AddonKind).
	Kind AddonKind

	// Source is the path to the install content: a directory or an
	// archive, possibly with further archives nested inside.
	Source string

	// TargetPath is the directory the content is committed to.
	TargetPath string

	// Overwrite selects a merge install over a clean reinstall when the
	// target already exists.
	Overwrite bool

	// Password is the password for the outermost archive, if encrypted.
	Password string

	// Passwords maps archive paths within a nested chain to their
	// passwords. The outermost archive may appear here instead of in
	// Password.
	Passwords map[string]string

	// Manifest is the expected per-file hash manifest. Nil means the
	// staging provider computes one from the staged tree.
	Manifest *VerificationManifest

	// Backup selects which prior content survives the install.
	Backup BackupPrefs

	// Verify enables post-install hash verification.
	Verify bool

	// Provider is the catalog provider label (e.g. the navdata vendor),
	// recorded in catalog backup manifests.
	Provider string

	// PriorVersion is the version tag of the installation being replaced,
	// recorded in catalog backup manifests.
	PriorVersion string
}

// Label returns the task name, falling back to the target path.
func (t *InstallTask) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.TargetPath
}
