package domain

// AssetRecord is the last-known remote identity of one source file. The
// remote fields stay empty until the file is first uploaded and are only
// replaced when the content digest changes.
type AssetRecord struct {
	FileName  string `json:"file_name"`
	PublicID  string `json:"public_id"`
	SecureURL string `json:"secure_url"`
	Digest    string `json:"digest"`
}

// AssetManifest maps a normalized relative source path to its asset record.
// It is persisted on the project row as a JSON blob and is the single source
// of truth for upload deduplication across deployments.
type AssetManifest map[string]AssetRecord

// Clone returns an independent copy so a pipeline can mutate its working
// manifest without touching the loaded project state.
func (m AssetManifest) Clone() AssetManifest {
	out := make(AssetManifest, len(m))
	for path, record := range m {
		out[path] = record
	}
	return out
}
