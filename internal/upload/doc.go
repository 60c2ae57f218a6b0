// Package upload validates and stores incoming classroom recordings.
//
// Accepted recordings are written under the configured upload directory as
// <YYYYmmdd_HHMMSS>_<sanitized name>; the absolute path is the source ref
// recorded on the analysis. Validation failures wrap ErrValidation so the HTTP
// layer can answer 400 without inspecting messages.
package upload
