package document

import (
	"errors"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

func rangeAt(startLine, startChar, endLine, endChar uint32) *protocol.Range {
	return &protocol.Range{
		Start: protocol.Position{Line: startLine, Character: startChar},
		End:   protocol.Position{Line: endLine, Character: endChar},
	}
}

func TestOpenAndSnapshot(t *testing.T) {
	s := NewStore()
	if err := s.Open("file:///a.py", 1, "x = 1\n"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	snap, err := s.Snapshot("file:///a.py")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Version != 1 || snap.Text != "x = 1\n" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.Dirty {
		t.Error("freshly opened document should not be dirty")
	}
}

func TestOpenDuplicate(t *testing.T) {
	s := NewStore()
	if err := s.Open("file:///a.py", 1, ""); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Open("file:///a.py", 2, ""); !errors.Is(err, ErrDuplicateDocument) {
		t.Errorf("expected ErrDuplicateDocument, got %v", err)
	}
}

func TestChangeSequence(t *testing.T) {
	s := NewStore()
	if err := s.Open("file:///a.py", 1, "abc\ndef\n"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	steps := []struct {
		version int32
		change  Change
		want    string
	}{
		{2, Change{Range: rangeAt(0, 1, 0, 2), Text: "X"}, "aXc\ndef\n"},
		{3, Change{Range: rangeAt(1, 0, 1, 3), Text: "ghi"}, "aXc\nghi\n"},
		{4, Change{Range: rangeAt(0, 3, 1, 0), Text: " "}, "aXc ghi\n"},
		{5, Change{Text: "replaced"}, "replaced"},
	}

	for _, step := range steps {
		if err := s.Change("file:///a.py", step.version, []Change{step.change}); err != nil {
			t.Fatalf("Change v%d failed: %v", step.version, err)
		}
		snap, _ := s.Snapshot("file:///a.py")
		if snap.Text != step.want {
			t.Errorf("after v%d got %q, want %q", step.version, snap.Text, step.want)
		}
		if snap.Version != step.version {
			t.Errorf("after v%d version is %d", step.version, snap.Version)
		}
		if !snap.Dirty {
			t.Errorf("document should be dirty after change v%d", step.version)
		}
	}
}

func TestChangeMultiByte(t *testing.T) {
	s := NewStore()
	// "𝕏" is above the BMP and counts as two UTF-16 units.
	if err := s.Open("file:///a.py", 1, "𝕏 = 1\n"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Change("file:///a.py", 2, []Change{
		{Range: rangeAt(0, 5, 0, 6), Text: "2"},
	}); err != nil {
		t.Fatalf("Change failed: %v", err)
	}
	snap, _ := s.Snapshot("file:///a.py")
	if snap.Text != "𝕏 = 2\n" {
		t.Errorf("got %q", snap.Text)
	}
}

func TestChangeStaleVersion(t *testing.T) {
	s := NewStore()
	if err := s.Open("file:///a.py", 3, "x = 1\n"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for _, version := range []int32{3, 2} {
		err := s.Change("file:///a.py", version, []Change{{Text: "clobbered"}})
		if !errors.Is(err, ErrStaleVersion) {
			t.Errorf("version %d: expected ErrStaleVersion, got %v", version, err)
		}
	}

	snap, _ := s.Snapshot("file:///a.py")
	if snap.Text != "x = 1\n" || snap.Version != 3 {
		t.Errorf("rejected change mutated state: %+v", snap)
	}
}

func TestChangeUnknownDocument(t *testing.T) {
	s := NewStore()
	err := s.Change("file:///nope.py", 1, []Change{{Text: ""}})
	if !errors.Is(err, ErrUnknownDocument) {
		t.Errorf("expected ErrUnknownDocument, got %v", err)
	}
}

func TestMarkSaved(t *testing.T) {
	s := NewStore()
	s.Open("file:///a.py", 1, "x = 1\n")
	s.Change("file:///a.py", 2, []Change{{Text: "x = 2\n"}})

	saved := "x = 2\n"
	if err := s.MarkSaved("file:///a.py", &saved); err != nil {
		t.Fatalf("MarkSaved failed: %v", err)
	}
	snap, _ := s.Snapshot("file:///a.py")
	if snap.Dirty {
		t.Error("document should be clean after save")
	}
}

func TestCloseRemovesTracking(t *testing.T) {
	s := NewStore()
	s.Open("file:///a.py", 1, "")
	if err := s.Close("file:///a.py"); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := s.Snapshot("file:///a.py"); !errors.Is(err, ErrUnknownDocument) {
		t.Errorf("expected ErrUnknownDocument after close, got %v", err)
	}
	if err := s.Close("file:///a.py"); !errors.Is(err, ErrUnknownDocument) {
		t.Errorf("double close: expected ErrUnknownDocument, got %v", err)
	}
}

func TestSnapshotIsImmutable(t *testing.T) {
	s := NewStore()
	s.Open("file:///a.py", 1, "x = 1\n")
	snap, _ := s.Snapshot("file:///a.py")

	s.Change("file:///a.py", 2, []Change{{Text: "x = 2\n"}})
	if snap.Text != "x = 1\n" || snap.Version != 1 {
		t.Errorf("snapshot changed under concurrent mutation: %+v", snap)
	}
}
