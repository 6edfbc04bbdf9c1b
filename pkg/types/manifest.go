package types

// ManifestEntry is the expected state of one installed file.
type ManifestEntry struct {
	// Hash is the expected content hash in "blake3:<hex>" form.
	Hash string `json:"hash"`

	// Size is the expected file size in bytes.
	Size int64 `json:"size"`
}

// VerificationManifest maps slash-separated relative paths to their
// expected hash and size. It is supplied with the task (or computed from
// the staged tree) and is never mutated by the engine.
type VerificationManifest struct {
	Files map[string]ManifestEntry `json:"files"`
}

// NewVerificationManifest returns an empty manifest ready to be filled.
func NewVerificationManifest() *VerificationManifest {
	return &VerificationManifest{Files: make(map[string]ManifestEntry)}
}

// Len returns the number of files the manifest covers.
func (m *VerificationManifest) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Files)
}

// TotalSize returns the sum of all expected file sizes.
func (m *VerificationManifest) TotalSize() int64 {
	if m == nil {
		return 0
	}
	var total int64
	for _, e := range m.Files {
		total += e.Size
	}
	return total
}
