package preflight

import (
	"context"

	"classcoach/internal/config"
)

// minFreeUploads is how many maximum-size uploads the upload volume must be
// able to absorb before the disk check fails.
const minFreeUploads = 4

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the local checks for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	results = append(results,
		CheckDiskSpace("Upload volume", cfg.Paths.UploadDir, uint64(cfg.MaxUploadBytes())*minFreeUploads),
		CheckAPIKey("Transcription API key", cfg.Transcription.APIKey),
		CheckAPIKey("LLM API key", cfg.LLM.APIKey),
	)
	return results
}

// RunServices probes the upstream APIs. Each probe makes a single attempt.
func RunServices(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckTranscription(ctx, cfg.Transcription),
		CheckLLM(ctx, cfg.LLM),
	}
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
