package media

import (
	"strings"
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	testCases := []struct {
		name     string
		folder   string
		original string
		want     string
	}{
		{name: "simple", folder: "college-notes", original: "lecture.pdf", want: "college-notes/note-1700000000123-lecture.pdf"},
		{name: "spaces and symbols", folder: "college-notes", original: "My Notes (final)!.PDF", want: "college-notes/note-1700000000123-My-Notes-final.pdf"},
		{name: "path components", folder: "/college-notes/", original: "C:\\Users\\ada\\unit 1.docx", want: "college-notes/note-1700000000123-unit-1.docx"},
		{name: "no extension", folder: "", original: "README", want: "note-1700000000123-README"},
		{name: "empty name", folder: "college-notes", original: "", want: "college-notes/note-1700000000123-upload-1700000000123"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := ObjectKey(testCase.folder, testCase.original, now); got != testCase.want {
				t.Fatalf("expected %q, got %q", testCase.want, got)
			}
		})
	}
}

func TestObjectKeyBoundsLength(t *testing.T) {
	key := ObjectKey("f", strings.Repeat("a", 500)+".txt", time.UnixMilli(1))
	if len(key) > len("f/note-1-")+maxBaseLength+len(".txt") {
		t.Fatalf("expected bounded key, got %d characters", len(key))
	}
	if !strings.HasSuffix(key, ".txt") {
		t.Fatalf("expected extension to survive truncation, got %q", key)
	}
}

func TestDisplayName(t *testing.T) {
	now := time.UnixMilli(42)
	if got := DisplayName("dir/notes.pdf", now); got != "notes.pdf" {
		t.Fatalf("unexpected display name %q", got)
	}
	if got := DisplayName("  ", now); got != "upload-42" {
		t.Fatalf("unexpected fallback display name %q", got)
	}
}
