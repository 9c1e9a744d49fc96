package log

import (
	"encoding/json"
	"testing"
)

func testOptions(t *testing.T, opts Options) {
	if err := opts.Verify(); err != nil {
		t.Fatal(err)
	}

	jstr, err := json.Marshal(opts)
	if err != nil {
		t.Fatal(err)
	}

	var round Options
	if err := json.Unmarshal(jstr, &round); err != nil {
		t.Fatal(err)
	}

	if err := round.Verify(); err != nil {
		t.Fatal(err)
	}

	if !round.Equals(opts) {
		t.Error("round-tripped options did not equal original")
	}
}

func TestDefaultOptions(t *testing.T) {
	testOptions(t, DefaultOptions)
}

func TestVerifyRejectsBadLevel(t *testing.T) {
	opts := DefaultOptions
	opts.Level = "NOPE"

	if err := opts.Verify(); err != ErrOptionLevel {
		t.Errorf("expected ErrOptionLevel, got %v", err)
	}
}

func TestMergeFrom(t *testing.T) {
	tgt := DefaultOptions

	if err := tgt.MergeFrom(Options{Level: LevelDebug}); err != nil {
		t.Fatal(err)
	}
	if tgt.Level != LevelDebug {
		t.Errorf("expected level DEBUG, got %s", tgt.Level)
	}

	if err := tgt.MergeFrom(Options{Path: "some-path", BlurSeconds: 30}); err != nil {
		t.Fatal(err)
	}
	if tgt.Path != "some-path" {
		t.Errorf("expected path to be set")
	}
	if tgt.BlurSeconds != 30 {
		t.Errorf("expected blur seconds to be set")
	}
}

func TestCombineOptions(t *testing.T) {
	if _, err := CombineOptions(Options{Level: "BAD"}); err == nil {
		t.Error("expected bad level to trip an error")
	}

	opts, err := CombineOptions(Options{Level: LevelDebug, Path: "x", BlurSeconds: 5})
	if err != nil {
		t.Fatal(err)
	}
	testOptions(t, opts)
}
