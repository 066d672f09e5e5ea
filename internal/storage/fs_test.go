package storage

import (
	"errors"
	"strings"
	"testing"
)

func TestSignedURLPublic(t *testing.T) {
	s := NewFSStore("/srv/blobs", "https://cdn.example.com/media/")
	got, err := s.SignedURL("lessons/intro video.mp4")
	if err != nil {
		t.Fatal(err)
	}
	want := "https://cdn.example.com/media/lessons/intro%20video.mp4"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestSignedURLFile(t *testing.T) {
	s := NewFSStore(t.TempDir(), "")
	got, err := s.SignedURL("docs/syllabus.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "file://") || !strings.HasSuffix(got, "/docs/syllabus.pdf") {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestSignedURLRejectsEscape(t *testing.T) {
	s := NewFSStore("/srv/blobs", "")
	for _, k := range []string{"", "  ", "../etc/passwd", "a/../../b"} {
		if _, err := s.SignedURL(k); !errors.Is(err, ErrBadKey) {
			t.Errorf("key %q: want ErrBadKey, got %v", k, err)
		}
	}
}

func TestSignedURLAllowsDotsInNames(t *testing.T) {
	s := NewFSStore("/srv/blobs", "https://cdn.example.com")
	for _, k := range []string{"v1..2/notes.pdf", "archive/report..final.pdf", "./a/b.txt"} {
		if _, err := s.SignedURL(k); err != nil {
			t.Errorf("key %q rejected: %v", k, err)
		}
	}
	if _, err := s.SignedURL(`a\..\..\b`); !errors.Is(err, ErrBadKey) {
		t.Errorf("backslash traversal accepted: %v", err)
	}
}
