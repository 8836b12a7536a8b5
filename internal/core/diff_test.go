package core

import (
	"strings"
	"testing"
)

func TestIsText(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    bool
	}{
		{"plain ASCII text", []byte("Hello, World!\nThis is a test."), true},
		{"UTF-8 with special chars", []byte("Hello 世界! Ñoño café"), true},
		{"empty value", []byte(""), true},
		{"newlines and spaces", []byte("\n\n  \t  \n"), true},
		{"JSON content", []byte(`{"key": "value", "number": 123}`), true},
		{"content with null bytes", []byte("Hello\x00World"), false},
		{"non-UTF-8 sequences", []byte{0x80, 0x81, 0x82, 0x83, 0x84}, false},
		{"lots of non-printable", []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsText(tt.content); got != tt.want {
				t.Errorf("IsText() for %s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestEqualValues(t *testing.T) {
	tests := []struct {
		name string
		a, b []byte
		want bool
	}{
		{"identical text", []byte("Hello"), []byte("Hello"), true},
		{"both empty", []byte{}, nil, true},
		{"different text", []byte("data1"), []byte("data2"), false},
		{"different length", []byte("short"), []byte("much longer content"), false},
		{"case difference", []byte("Hello"), []byte("hello"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EqualValues(tt.a, tt.b); got != tt.want {
				t.Errorf("EqualValues() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnifiedDiff(t *testing.T) {
	stored := []byte("line1\nline2\nline3\n")
	local := []byte("line1\nmodified\nline3\n")

	out := UnifiedDiff("config", stored, local)

	for _, want := range []string{"--- stored/config", "+++ local/config", "-line2", "+modified", "@@"} {
		if !strings.Contains(out, want) {
			t.Errorf("Diff should contain %q, got:\n%s", want, out)
		}
	}
}

func TestUnifiedDiff_Identical(t *testing.T) {
	if out := UnifiedDiff("k", []byte("same\n"), []byte("same\n")); out != "" {
		t.Errorf("Expected empty diff, got %q", out)
	}
}

func TestUnifiedDiff_Binary(t *testing.T) {
	out := UnifiedDiff("blob", []byte{0x00, 0x01}, []byte{0x00, 0x02})
	if out != "Binary value blob has changed\n" {
		t.Errorf("Unexpected binary diff output %q", out)
	}
}

func TestDiffStats(t *testing.T) {
	tests := []struct {
		name           string
		stored, local  string
		added, removed int
	}{
		{"identical", "a\nb\n", "a\nb\n", 0, 0},
		{"added lines", "a\n", "a\nb\nc\n", 2, 0},
		{"removed lines", "a\nb\nc\n", "a\n", 0, 2},
		{"changed line", "a\nb\nc\n", "a\nx\nc\n", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, removed := DiffStats([]byte(tt.stored), []byte(tt.local))
			if added != tt.added || removed != tt.removed {
				t.Errorf("DiffStats() = +%d -%d, want +%d -%d", added, removed, tt.added, tt.removed)
			}
		})
	}
}
