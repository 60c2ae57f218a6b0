// Package prosody measures speech patterns in a classroom recording.
//
// WAV files are decoded and analysed frame by frame: intensity, silence
// pauses, phonation ratio, an intensity-peak syllable rate and an
// autocorrelation pitch track with frame-level jitter and shimmer. Compressed
// formats cannot be decoded locally and receive an estimate built from the
// file size and typical classroom values, flagged with method "estimated".
package prosody
