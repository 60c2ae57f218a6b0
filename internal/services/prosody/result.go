package prosody

// Method values recorded on every result.
const (
	MethodWaveform  = "waveform"
	MethodEstimated = "estimated"
)

// PauseStats describes silent gaps between stretches of speech.
type PauseStats struct {
	Count   int `json:"count"`
	AvgMS   int `json:"avg_ms"`
	TotalMS int `json:"total_ms"`
	MaxMS   int `json:"max_ms"`
	MinMS   int `json:"min_ms"`
}

// Result is the persisted prosody payload. Intensity values are dBFS for
// waveform analysis and nominal dB SPL for estimates.
type Result struct {
	Method           string      `json:"method"`
	Duration         float64     `json:"duration"`
	SampleRate       int         `json:"sample_rate,omitempty"`
	F0MeanHz         float64     `json:"f0_mean_hz"`
	F0StdHz          float64     `json:"f0_std_hz"`
	F0MinHz          float64     `json:"f0_min_hz"`
	F0MaxHz          float64     `json:"f0_max_hz"`
	F0RangeHz        float64     `json:"f0_range_hz"`
	JitterLocal      float64     `json:"jitter_local"`
	ShimmerLocal     float64     `json:"shimmer_local"`
	IntensityMeanDB  float64     `json:"intensity_mean_db"`
	IntensityStdDB   float64     `json:"intensity_std_db"`
	IntensityMinDB   float64     `json:"intensity_min_db"`
	IntensityMaxDB   float64     `json:"intensity_max_db"`
	IntensityRangeDB float64     `json:"intensity_range_db"`
	SpectralCentroid float64     `json:"spectral_centroid_mean,omitempty"`
	SpectralRolloff  float64     `json:"spectral_rolloff_mean,omitempty"`
	Pauses           *PauseStats `json:"pauses,omitempty"`
	PhonationRatio   float64     `json:"phonation_ratio,omitempty"`
	SpeechRate       float64     `json:"speech_rate,omitempty"`
}
