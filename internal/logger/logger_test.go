package logger

import "testing"

func TestInit(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	if err := Init("debug", true); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if !Log.Desugar().Core().Enabled(-1) {
		t.Error("debug level should be enabled")
	}
	if err := Init("loud", false); err == nil {
		t.Error("Init() should reject an unknown level")
	}
}
