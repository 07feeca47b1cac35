package domain

// Video identifies an input media blob and tracks whole-pipeline completion.
// Rows are produced by the external uploader; the core only ever reads
// original_path and writes normalized_path/duration_sec/status.
type Video struct {
	ID              string
	OriginalPath    string
	Status          VideoStatus
	NormalizedPath  *string
	DurationSec     *float64
}

// IsNormalized reports whether stage 1 has already produced a normalized
// artifact recorded against this video row — the Normalize stage's skip
// clause consults this alongside a filesystem check.
func (v *Video) IsNormalized() bool {
	return v.NormalizedPath != nil && *v.NormalizedPath != ""
}
