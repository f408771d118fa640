package csn

import "slices"

// Quality is a download tier as it appears in the site's file URLs.
type Quality string

const (
	Quality32   Quality = "32"
	Quality128  Quality = "128"
	Quality320  Quality = "320"
	QualityM4A  Quality = "m4a"
	QualityFLAC Quality = "flac"
)

var (
	qualities     = []Quality{Quality32, Quality128, Quality320, QualityM4A, QualityFLAC}
	freeQualities = []Quality{Quality32, Quality128}
)

// Qualities lists every tier the site serves, lowest first.
func Qualities() []Quality {
	return slices.Clone(qualities)
}

func (q Quality) IsKnown() bool {
	return slices.Contains(qualities, q)
}

// IsFree reports whether q can be downloaded without logging in.
func (q Quality) IsFree() bool {
	return slices.Contains(freeQualities, q)
}

func (q Quality) String() string {
	return string(q)
}
