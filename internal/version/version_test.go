package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringIncludesBuildMetadata(t *testing.T) {
	originalVersion := Version
	originalCommit := Commit
	originalDate := Date
	t.Cleanup(func() {
		Version = originalVersion
		Commit = originalCommit
		Date = originalDate
	})

	Version = "0.4.0"
	Commit = "f00dcafe"
	Date = "2026-08-01"

	got := String()
	require.Contains(t, got, "vibe-writer 0.4.0")
	require.Contains(t, got, "commit=f00dcafe")
	require.Contains(t, got, "date=2026-08-01")
	require.Contains(t, got, "go=")
}

func TestStringWithoutLdflagsStillPopulatesMetadata(t *testing.T) {
	originalCommit := Commit
	originalDate := Date
	t.Cleanup(func() {
		Commit = originalCommit
		Date = originalDate
	})

	Commit = ""
	Date = ""

	got := String()
	require.Contains(t, got, "vibe-writer ")
	require.Contains(t, got, "commit=")
	require.Contains(t, got, "date=")
	require.NotContains(t, got, "commit=,")
	require.NotContains(t, got, "date=,")
}
