package document

import (
	"errors"
	"fmt"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

var (
	ErrDuplicateDocument = errors.New("document already open")
	ErrStaleVersion      = errors.New("stale document version")
	ErrUnknownDocument   = errors.New("unknown document")
)

// Change is a single content update. A nil Range replaces the whole text.
type Change struct {
	Range *protocol.Range
	Text  string
}

// Snapshot is an immutable copy of a document at one version. Analysis
// dispatch reads snapshots, never the live store entry.
type Snapshot struct {
	URI     string
	Version int32
	Text    string
	Dirty   bool
}

type document struct {
	uri     string
	version int32
	text    string
	dirty   bool
}

// Store tracks every open document keyed by URI.
type Store struct {
	mu   sync.Mutex
	docs map[string]*document
}

// NewStore creates an initialized Store.
func NewStore() *Store {
	return &Store{
		docs: make(map[string]*document),
	}
}

// Open starts tracking a document.
func (s *Store) Open(uri string, version int32, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[uri]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDocument, uri)
	}
	s.docs[uri] = &document{
		uri:     uri,
		version: version,
		text:    text,
	}
	return nil
}

// Change applies content updates in order. The version must strictly
// increase; otherwise the stored state is left untouched.
func (s *Store) Change(uri string, version int32, changes []Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uri]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	if version <= doc.version {
		return fmt.Errorf("%w: %s has version %d, got %d",
			ErrStaleVersion, uri, doc.version, version)
	}

	text := doc.text
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
			continue
		}
		start := positionToOffset(text, change.Range.Start)
		end := positionToOffset(text, change.Range.End)
		text = text[:start] + change.Text + text[end:]
	}

	doc.text = text
	doc.version = version
	doc.dirty = true
	return nil
}

// MarkSaved clears the dirty flag. Clients configured with includeText
// send the saved content, which wins over the reconstructed text.
func (s *Store) MarkSaved(uri string, text *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uri]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	if text != nil {
		doc.text = *text
	}
	doc.dirty = false
	return nil
}

// Close stops tracking a document.
func (s *Store) Close(uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[uri]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	delete(s.docs, uri)
	return nil
}

// Snapshot returns an immutable copy of the current text and version.
func (s *Store) Snapshot(uri string) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uri]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownDocument, uri)
	}
	return Snapshot{
		URI:     doc.uri,
		Version: doc.version,
		Text:    doc.text,
		Dirty:   doc.dirty,
	}, nil
}

// Version returns the current version of a tracked document.
func (s *Store) Version(uri string) (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[uri]
	if !ok {
		return 0, false
	}
	return doc.version, true
}
