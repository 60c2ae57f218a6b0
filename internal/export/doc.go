// Package export writes analysis history to spreadsheets.
package export
