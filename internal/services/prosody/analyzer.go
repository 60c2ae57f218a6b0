package prosody

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"classcoach/internal/services"
)

const (
	stageName = "prosody"

	minDB            = -100.0
	peakProminenceDB = 2.0
	minPitchHz       = 75.0
	maxPitchHz       = 500.0
	pitchSampleRate  = 16000
	pitchStride      = 5
	voicingThreshold = 0.5
)

// Config tunes frame-level analysis.
type Config struct {
	SilenceThresholdDB float64
	MinPauseMS         int
	FrameMS            int
}

// Analyzer computes prosodic features from a recording on disk.
type Analyzer struct {
	cfg Config
}

// NewAnalyzer returns an analyzer, filling zero config values with defaults.
func NewAnalyzer(cfg Config) *Analyzer {
	if cfg.SilenceThresholdDB >= 0 {
		cfg.SilenceThresholdDB = -40
	}
	if cfg.MinPauseMS <= 0 {
		cfg.MinPauseMS = 250
	}
	if cfg.FrameMS <= 0 {
		cfg.FrameMS = 20
	}
	return &Analyzer{cfg: cfg}
}

// Analyze inspects the file at path. WAV input is measured; other formats are
// estimated. A missing, empty or corrupt file yields services.ErrInvalidFormat.
func (a *Analyzer) Analyze(ctx context.Context, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrInvalidFormat, stageName, "open", "source file unavailable", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return Result{}, services.Wrap(services.ErrInvalidFormat, stageName, "open", "source file is empty", nil)
	}
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return Estimate(info), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrInvalidFormat, stageName, "open", "source file unreadable", err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return Result{}, services.Wrap(services.ErrInvalidFormat, stageName, "decode", "not a valid PCM wav file", nil)
	}
	return a.measure(ctx, dec)
}

// frameStats accumulates per-frame measurements while the decoder streams.
type frameStats struct {
	intensity []float64
	amplitude []float64
	pitch     []float64
	samples   int
}

func (a *Analyzer) measure(ctx context.Context, dec *wav.Decoder) (Result, error) {
	sampleRate := int(dec.SampleRate)
	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)
	if sampleRate <= 0 || channels <= 0 || bitDepth <= 0 {
		return Result{}, services.Wrap(services.ErrInvalidFormat, stageName, "decode", "wav header incomplete", nil)
	}
	frameLen := sampleRate * a.cfg.FrameMS / 1000
	if frameLen <= 0 {
		return Result{}, services.Wrap(services.ErrInvalidFormat, stageName, "decode", "sample rate too low", nil)
	}
	fullScale := math.Pow(2, float64(bitDepth-1))
	// 8-bit PCM is unsigned.
	offset := 0.0
	if bitDepth == 8 {
		offset = 128
	}

	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:   make([]int, frameLen*channels),
	}
	frame := make([]float64, frameLen)
	stats := &frameStats{}
	voicedSeen := 0

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		n, err := dec.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return Result{}, services.Wrap(services.ErrInvalidFormat, stageName, "decode", "read pcm", err)
		}
		if n == 0 {
			break
		}
		count := n / channels
		for i := 0; i < count; i++ {
			sum := 0.0
			for ch := 0; ch < channels; ch++ {
				sum += float64(buf.Data[i*channels+ch]) - offset
			}
			frame[i] = sum / float64(channels) / fullScale
		}
		stats.samples += count
		// Trailing fragments shorter than half a frame carry too little signal.
		if count*2 >= frameLen {
			db, amp := frameIntensity(frame[:count])
			stats.intensity = append(stats.intensity, db)
			stats.amplitude = append(stats.amplitude, amp)
			if db >= a.cfg.SilenceThresholdDB {
				if voicedSeen%pitchStride == 0 {
					if f0, ok := estimatePitch(frame[:count], sampleRate); ok {
						stats.pitch = append(stats.pitch, f0)
					}
				}
				voicedSeen++
			}
		}
		if count < frameLen || errors.Is(err, io.EOF) {
			break
		}
	}
	if stats.samples == 0 || len(stats.intensity) == 0 {
		return Result{}, services.Wrap(services.ErrInvalidFormat, stageName, "decode", "no audio samples", nil)
	}
	return a.summarize(stats, sampleRate), nil
}

func (a *Analyzer) summarize(stats *frameStats, sampleRate int) Result {
	duration := float64(stats.samples) / float64(sampleRate)
	threshold := a.cfg.SilenceThresholdDB

	var voiced, voicedAmp []float64
	for i, db := range stats.intensity {
		if db >= threshold {
			voiced = append(voiced, db)
			voicedAmp = append(voicedAmp, stats.amplitude[i])
		}
	}
	intensity := voiced
	if len(intensity) == 0 {
		intensity = stats.intensity
	}
	iMean, iStd, iMin, iMax := describe(intensity)

	res := Result{
		Method:           MethodWaveform,
		Duration:         round(duration, 2),
		SampleRate:       sampleRate,
		IntensityMeanDB:  round(iMean, 2),
		IntensityStdDB:   round(iStd, 2),
		IntensityMinDB:   round(iMin, 2),
		IntensityMaxDB:   round(iMax, 2),
		IntensityRangeDB: round(iMax-iMin, 2),
		PhonationRatio:   round(float64(len(voiced))/float64(len(stats.intensity)), 3),
		ShimmerLocal:     round(localVariation(voicedAmp), 2),
	}

	pauses := a.pauses(stats.intensity)
	res.Pauses = &pauses

	if minutes := duration / 60; minutes > 0 {
		res.SpeechRate = round(float64(countNuclei(stats.intensity, threshold))/minutes, 1)
	}

	if len(stats.pitch) > 0 {
		fMean, fStd, fMin, fMax := describe(stats.pitch)
		res.F0MeanHz = round(fMean, 1)
		res.F0StdHz = round(fStd, 1)
		res.F0MinHz = round(fMin, 1)
		res.F0MaxHz = round(fMax, 1)
		res.F0RangeHz = round(fMax-fMin, 1)
		periods := make([]float64, len(stats.pitch))
		for i, f0 := range stats.pitch {
			periods[i] = 1 / f0
		}
		res.JitterLocal = round(localVariation(periods), 2)
	}
	return res
}

// pauses reports silent runs of at least MinPauseMS that sit between voiced
// frames. Leading and trailing silence is not a pause.
func (a *Analyzer) pauses(intensity []float64) PauseStats {
	var runs []int
	run := 0
	seenVoice := false
	for _, db := range intensity {
		if db < a.cfg.SilenceThresholdDB {
			run++
			continue
		}
		if seenVoice && run*a.cfg.FrameMS >= a.cfg.MinPauseMS {
			runs = append(runs, run*a.cfg.FrameMS)
		}
		seenVoice = true
		run = 0
	}
	if len(runs) == 0 {
		return PauseStats{}
	}
	stats := PauseStats{Count: len(runs), MinMS: runs[0], MaxMS: runs[0]}
	for _, ms := range runs {
		stats.TotalMS += ms
		stats.MinMS = min(stats.MinMS, ms)
		stats.MaxMS = max(stats.MaxMS, ms)
	}
	stats.AvgMS = stats.TotalMS / stats.Count
	return stats
}

// frameIntensity returns the RMS level in dBFS and the linear RMS amplitude.
func frameIntensity(frame []float64) (float64, float64) {
	sum := 0.0
	for _, v := range frame {
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(frame)))
	if rms <= 0 {
		return minDB, 0
	}
	return max(20*math.Log10(rms), minDB), rms
}

// countNuclei counts intensity peaks that rise at least peakProminenceDB above
// the preceding dip. Each peak approximates one syllable nucleus.
func countNuclei(intensity []float64, threshold float64) int {
	count := 0
	armed := true
	floor := threshold
	peak := minDB
	for _, db := range intensity {
		if db < threshold {
			armed = true
			floor = db
			continue
		}
		if armed {
			if db >= floor+peakProminenceDB {
				count++
				armed = false
				peak = db
				continue
			}
			floor = min(floor, db)
			continue
		}
		if db > peak {
			peak = db
		}
		if db <= peak-peakProminenceDB {
			armed = true
			floor = db
		}
	}
	return count
}

// estimatePitch finds the fundamental frequency of a voiced frame with
// normalized autocorrelation. Frames above pitchSampleRate are decimated first.
func estimatePitch(frame []float64, sampleRate int) (float64, bool) {
	step := 1
	if sampleRate > pitchSampleRate {
		step = sampleRate / pitchSampleRate
	}
	signal := frame
	if step > 1 {
		signal = make([]float64, 0, len(frame)/step+1)
		for i := 0; i < len(frame); i += step {
			signal = append(signal, frame[i])
		}
	}
	rate := float64(sampleRate) / float64(step)

	minLag := int(rate / maxPitchHz)
	maxLag := min(int(rate/minPitchHz), len(signal)*2/3)
	if minLag < 1 || maxLag <= minLag+1 {
		return 0, false
	}

	corr := make([]float64, maxLag+2)
	best := 0.0
	for lag := minLag; lag <= maxLag+1 && lag < len(signal); lag++ {
		var num, e1, e2 float64
		for i := 0; i+lag < len(signal); i++ {
			num += signal[i] * signal[i+lag]
			e1 += signal[i] * signal[i]
			e2 += signal[i+lag] * signal[i+lag]
		}
		if e1 > 0 && e2 > 0 {
			corr[lag] = num / math.Sqrt(e1*e2)
		}
		if lag <= maxLag && corr[lag] > best {
			best = corr[lag]
		}
	}
	if best < voicingThreshold {
		return 0, false
	}
	// The first strong local maximum avoids picking a subharmonic.
	for lag := minLag + 1; lag <= maxLag; lag++ {
		if corr[lag] >= 0.9*best && corr[lag] >= corr[lag-1] && corr[lag] >= corr[lag+1] {
			return rate / float64(lag), true
		}
	}
	return 0, false
}

// describe returns mean, population standard deviation, min and max.
func describe(values []float64) (mean, std, lo, hi float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values {
		mean += v
		lo = min(lo, v)
		hi = max(hi, v)
	}
	mean /= float64(len(values))
	for _, v := range values {
		std += (v - mean) * (v - mean)
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std, lo, hi
}

// localVariation is the mean absolute difference between consecutive values
// relative to their mean, as a percentage.
func localVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var diff, sum float64
	for i, v := range values {
		sum += v
		if i > 0 {
			diff += math.Abs(v - values[i-1])
		}
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return 0
	}
	return diff / float64(len(values)-1) / mean * 100
}

func round(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
