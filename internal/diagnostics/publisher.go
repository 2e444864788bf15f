package diagnostics

import (
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Notifier delivers a publish-diagnostics notification to the client.
type Notifier func(uri string, diagnostics []protocol.Diagnostic)

// Publisher owns the set of diagnostics currently shown by the editor,
// one entry per URI, plus the quick-fix actions derived from them.
type Publisher struct {
	mu        sync.Mutex
	notify    Notifier
	published map[string][]protocol.Diagnostic
	actions   map[string][]protocol.CodeAction
}

// NewPublisher creates a Publisher with no notifier bound yet.
func NewPublisher() *Publisher {
	return &Publisher{
		published: make(map[string][]protocol.Diagnostic),
		actions:   make(map[string][]protocol.CodeAction),
	}
}

// Bind attaches the client notification channel. Until bound, applies
// update the set without emitting. The notifier is invoked with the
// publisher's lock held and must not call back into the publisher.
func (p *Publisher) Bind(notify Notifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notify = notify
}

// Apply replaces the entry of every URI present in the converted result
// wholesale and emits one notification per URI. URIs outside the result's
// scope are left untouched. Emission happens under the lock so the
// client sees publishes in the same order the set is updated.
func (p *Publisher) Apply(converted Converted) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, uri := range converted.Order {
		diagnostics := converted.Diagnostics[uri]
		p.published[uri] = diagnostics
		p.actions[uri] = converted.Actions[uri]
		if p.notify != nil {
			p.notify(uri, diagnostics)
		}
	}
}

// Clear drops a URI's entry and tells the client to show nothing for it.
func (p *Publisher) Clear(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.published, uri)
	delete(p.actions, uri)
	if p.notify != nil {
		p.notify(uri, []protocol.Diagnostic{})
	}
}

// Published returns a copy of the diagnostics currently shown for a URI.
func (p *Publisher) Published(uri string) []protocol.Diagnostic {
	p.mu.Lock()
	defer p.mu.Unlock()

	diagnostics := make([]protocol.Diagnostic, len(p.published[uri]))
	copy(diagnostics, p.published[uri])
	return diagnostics
}

// ActionsFor returns the quick-fix actions for a URI whose diagnostics
// overlap the given range. A nil range returns all of them.
func (p *Publisher) ActionsFor(uri string, r *protocol.Range) []protocol.CodeAction {
	p.mu.Lock()
	defer p.mu.Unlock()

	var filtered []protocol.CodeAction
	for _, action := range p.actions[uri] {
		if r == nil {
			filtered = append(filtered, action)
			continue
		}
		for _, diagnostic := range action.Diagnostics {
			if RangesOverlap(diagnostic.Range, *r) {
				filtered = append(filtered, action)
				break
			}
		}
	}
	return filtered
}

// InvalidateActions drops the stored actions for a URI. Called on every
// document change, since the edits were computed against older text.
func (p *Publisher) InvalidateActions(uri string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.actions, uri)
}
