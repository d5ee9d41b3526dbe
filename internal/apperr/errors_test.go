package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewBuildsDottedCode(t *testing.T) {
	cause := errors.New("boom")
	err := New(KindNotFound, "notes.get", "not_found", cause)

	if CodeOf(err) != "notes.get.not_found" {
		t.Fatalf("unexpected code %q", CodeOf(err))
	}
	if KindOf(err) != KindNotFound {
		t.Fatalf("unexpected kind %q", KindOf(err))
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected error to unwrap to cause")
	}
	if err.Error() != "notes.get.not_found: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestKindOfSeesThroughWrapping(t *testing.T) {
	inner := New(KindDuplicate, "organizations.create", "duplicate_name", nil)
	wrapped := fmt.Errorf("handler: %w", inner)

	if KindOf(wrapped) != KindDuplicate {
		t.Fatalf("expected duplicate kind, got %q", KindOf(wrapped))
	}
	if CodeOf(wrapped) != "organizations.create.duplicate_name" {
		t.Fatalf("unexpected code %q", CodeOf(wrapped))
	}
}

func TestKindOfDefaultsToServer(t *testing.T) {
	if KindOf(errors.New("plain")) != KindServer {
		t.Fatalf("expected unclassified errors to map to server kind")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatalf("expected empty code for unclassified errors")
	}
}

func TestMessagePrefersCause(t *testing.T) {
	withCause := New(KindValidation, "notes.create", "missing_fields", errors.New("missing required fields"))
	if Message(withCause) != "missing required fields" {
		t.Fatalf("unexpected message %q", Message(withCause))
	}
	withoutCause := New(KindAuth, "auth.session", "missing_token", nil)
	if Message(withoutCause) != "auth.session.missing_token" {
		t.Fatalf("unexpected message %q", Message(withoutCause))
	}
	if Message(errors.New("plain")) != "plain" {
		t.Fatalf("expected plain error text")
	}
}
