package config

import "testing"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.StateDir == "" {
		t.Fatalf("StateDir is empty")
	}
	if cfg.BlockSize <= 0 {
		t.Fatalf("BlockSize = %d, want > 0", cfg.BlockSize)
	}
	if cfg.FileCacheSize <= 0 {
		t.Fatalf("FileCacheSize = %d, want > 0", cfg.FileCacheSize)
	}
	if cfg.PreallocationMode != PreallocationSparse {
		t.Fatalf("PreallocationMode = %v, want sparse", cfg.PreallocationMode)
	}
}

func TestPreallocationMode_String(t *testing.T) {
	tests := map[PreallocationMode]string{
		PreallocationNone:    "none",
		PreallocationSparse:  "sparse",
		PreallocationFull:    "full",
		PreallocationMode(9): "none",
	}
	for mode, want := range tests {
		if got := mode.String(); got != want {
			t.Fatalf("%v.String() = %q, want %q", mode, got, want)
		}
	}
}
