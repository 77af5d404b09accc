// Package unittest tags tests with a cost class, the way the rest of the
// pack does, so `go test -short` can skip anything that isn't Small.
package unittest

import (
	"flag"
	"testing"
)

// SmallTest marks t as fast and hermetic; never skipped.
func SmallTest(t testing.TB) {
	t.Helper()
}

// MediumTest marks t as using real timers/goroutines but no external
// services; skipped under -short.
func MediumTest(t testing.TB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping medium test in -short mode")
	}
}

// LargeTest marks t as slow or resource-heavy; skipped under -short.
func LargeTest(t testing.TB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping large test in -short mode")
	}
}

// ManualTest marks t as requiring manual invocation (e.g. environment
// setup); always skipped unless explicitly requested via -run.
func ManualTest(t testing.TB) {
	t.Helper()
	if f := flag.Lookup("test.run"); f != nil && f.Value.String() != "" {
		return
	}
	t.Skip("manual test: run explicitly with -run")
}
