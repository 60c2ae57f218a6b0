package testsupport

import (
	"context"
	"testing"

	"classcoach/internal/analysis"
	"classcoach/internal/config"
)

// MustOpenStore opens an analysis.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *analysis.Store {
	t.Helper()

	store, err := analysis.Open(cfg)
	if err != nil {
		t.Fatalf("analysis.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewAnalysis creates an uploaded record pointing at ref.
func NewAnalysis(t testing.TB, store *analysis.Store, ref string) *analysis.AudioAnalysis {
	t.Helper()

	record, err := store.Create(context.Background(), analysis.NewAnalysis{
		SourceRef:        ref,
		OriginalFilename: "clase.wav",
		Context:          analysis.EducationalContext{Subject: "Matemáticas", GradeLevel: "5to", LessonTopic: "Fracciones"},
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return record
}

// MustUpdate applies a mutation and fails the test on error.
func MustUpdate(t testing.TB, store *analysis.Store, id int64, m analysis.Mutation) *analysis.AudioAnalysis {
	t.Helper()

	record, err := store.Update(context.Background(), id, m)
	if err != nil {
		t.Fatalf("store.Update %s -> %s: %v", m.From, m.To, err)
	}
	return record
}
