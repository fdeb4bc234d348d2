package testutil

import (
	"errors"
	"testing"

	"github.com/banshee-data/leadfusion/internal/monitoring"
)

func TestAssertHelpersPass(t *testing.T) {
	AssertNoError(t, nil)
	AssertError(t, errors.New("boom"))
	AssertNear(t, "value", 1.0+1e-12, 1.0, DefaultTolerance)
}

func TestQuietLogs(t *testing.T) {
	called := false
	original := monitoring.Logf
	monitoring.SetLogger(func(string, ...interface{}) { called = true })
	defer func() { monitoring.Logf = original }()

	t.Run("muted", func(t *testing.T) {
		QuietLogs(t)
		monitoring.Logf("hidden")
	})
	if called {
		t.Error("QuietLogs did not mute the logger")
	}
	monitoring.Logf("visible")
	if !called {
		t.Error("QuietLogs did not restore the logger")
	}
}
