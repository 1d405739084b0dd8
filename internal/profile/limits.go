package profile

// CRF bounds, both exclusive.
const (
	MinCRF = 0.0
	MaxCRF = 51.0
)

// IsValidCRF returns true if crf lies strictly inside the x264 range.
func IsValidCRF(crf float64) bool {
	return crf > MinCRF && crf < MaxCRF
}

