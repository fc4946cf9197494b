package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	a := Sum([]byte("hello"))
	if a != Sum([]byte("hello")) {
		t.Error("Sum should be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64", len(a))
	}
	if a == Sum([]byte("hello!")) {
		t.Error("different input should give different digest")
	}
}

func TestContent(t *testing.T) {
	if Content("foo bar") != Content("foo bar") {
		t.Error("Content should be deterministic")
	}
	if Content("foo bar") == Content("foo baz") {
		t.Error("different text should give different digest")
	}
}
