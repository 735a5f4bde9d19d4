package controller

import "testing"

func TestStartOptions(t *testing.T) {
	cfg := &StartConfig{}

	WithListMode()(cfg)
	if cfg.mode != ModeList {
		t.Fatalf("WithListMode() mode = %v, want %v", cfg.mode, ModeList)
	}

	WithViewMode()(cfg)
	if cfg.mode != ModeView {
		t.Fatalf("WithViewMode() mode = %v, want %v", cfg.mode, ModeView)
	}

	WithRunMode()(cfg)
	if cfg.mode != ModeRun {
		t.Fatalf("WithRunMode() mode = %v, want %v", cfg.mode, ModeRun)
	}
}
