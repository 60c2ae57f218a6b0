package prosody

import "os"

// Estimate returns typical classroom prosody for a recording that cannot be
// decoded. Duration is in seconds, guessed from size at roughly one minute
// per MiB.
func Estimate(info os.FileInfo) Result {
	return Result{
		Method:           MethodEstimated,
		Duration:         round(float64(info.Size())/(1024*1024)*60, 1),
		F0MeanHz:         180,
		F0StdHz:          25,
		F0MinHz:          120,
		F0MaxHz:          280,
		F0RangeHz:        160,
		JitterLocal:      0.8,
		ShimmerLocal:     4.5,
		IntensityMeanDB:  68,
		IntensityStdDB:   6,
		IntensityMinDB:   55,
		IntensityMaxDB:   80,
		IntensityRangeDB: 25,
		SpectralCentroid: 2200,
		SpectralRolloff:  4500,
	}
}
