package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
	"golang.org/x/sync/semaphore"

	"github.com/bonprosoft/pysen-ls/internal/analysis"
	"github.com/bonprosoft/pysen-ls/internal/config"
	"github.com/bonprosoft/pysen-ls/internal/diagnostics"
	"github.com/bonprosoft/pysen-ls/internal/document"
)

// Runner abstracts the external tool invocation for the coordinator.
type Runner interface {
	Run(ctx context.Context, req analysis.Request, cfg *config.Configuration) analysis.Result
}

// MessageFunc surfaces a user-visible notification (window/showMessage).
type MessageFunc func(kind protocol.MessageType, message string)

// docState is the per-document scheduling state.
//
// Idle -> Pending -> Analyzing -> Idle, with Analyzing -> Stale when an
// edit lands mid-analysis. Pending only exists inside a locked section:
// a pending document is dispatched before the lock is released, so
// observed states are Idle, Analyzing and Stale.
type docState int

const (
	stateIdle docState = iota
	statePending
	stateAnalyzing
	stateStale
)

// Coordinator is the session state machine. It owns the scheduling
// policy: what triggers an analysis, when it may run and whether its
// result is still worth publishing.
type Coordinator struct {
	store     *document.Store
	cache     *config.Cache
	runner    Runner
	publisher *diagnostics.Publisher

	uriToPath func(string) (string, error)
	pathToURI func(string) string
	message   MessageFunc

	mu     sync.Mutex
	cond   *sync.Cond
	states map[string]docState

	// Document runs hold the read side, workspace runs the write side,
	// so a workspace run excludes everything else.
	workspaceGate sync.RWMutex

	// Guarded by mu; replaced wholesale when the limit changes.
	sem      *semaphore.Weighted
	semLimit int

	ctx context.Context
}

// Options carries the environment callbacks for a Coordinator.
type Options struct {
	URIToPath func(string) (string, error)
	PathToURI func(string) string
	Message   MessageFunc
}

// New creates a Coordinator.
func New(
	store *document.Store,
	cache *config.Cache,
	runner Runner,
	publisher *diagnostics.Publisher,
	opts Options,
) *Coordinator {
	limit := cache.Settings().MaxConcurrentAnalyses
	if limit < 1 {
		limit = 1
	}

	c := &Coordinator{
		store:     store,
		cache:     cache,
		runner:    runner,
		publisher: publisher,
		uriToPath: opts.URIToPath,
		pathToURI: opts.PathToURI,
		message:   opts.Message,
		states:    make(map[string]docState),
		sem:       semaphore.NewWeighted(int64(limit)),
		semLimit:  limit,
		ctx:       context.Background(),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// DidOpen tracks the document and lints it right away.
func (c *Coordinator) DidOpen(uri string, version int32, text string) error {
	if err := c.store.Open(uri, version, text); err != nil {
		return err
	}
	c.triggerLint(uri)
	return nil
}

// DidChange applies the edit. An in-flight analysis for the document
// becomes stale; it is not cancelled, its result is discarded on arrival.
func (c *Coordinator) DidChange(uri string, version int32, changes []document.Change) error {
	if err := c.store.Change(uri, version, changes); err != nil {
		return err
	}
	c.publisher.InvalidateActions(uri)

	c.mu.Lock()
	if c.states[uri] == stateAnalyzing {
		c.states[uri] = stateStale
	}
	c.mu.Unlock()
	return nil
}

// DidSave triggers a lint when lint-on-save is enabled.
func (c *Coordinator) DidSave(uri string, text *string) error {
	if err := c.store.MarkSaved(uri, text); err != nil {
		return err
	}
	if c.cache.Settings().EnableLintOnSave {
		c.triggerLint(uri)
	}
	return nil
}

// DidClose drops tracking and clears the published diagnostics. A still
// running analysis for the document becomes inert.
func (c *Coordinator) DidClose(uri string) error {
	if err := c.store.Close(uri); err != nil {
		return err
	}
	c.publisher.Clear(uri)

	c.mu.Lock()
	delete(c.states, uri)
	c.cond.Broadcast()
	c.mu.Unlock()
	return nil
}

// LintDocument dispatches an immediate lint, bypassing the save trigger.
func (c *Coordinator) LintDocument(uri string) error {
	if _, ok := c.store.Version(uri); !ok {
		return fmt.Errorf("%w: %s", document.ErrUnknownDocument, uri)
	}
	c.triggerLint(uri)
	return nil
}

// triggerLint moves a document towards Analyzing. At most one analysis
// per document is in flight; a trigger during one marks it stale so a
// fresh run follows.
func (c *Coordinator) triggerLint(uri string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.states[uri] {
	case stateIdle:
		c.states[uri] = statePending
		c.dispatchLocked(uri)
	case stateAnalyzing:
		c.states[uri] = stateStale
	case statePending, stateStale:
		// A run at the latest version is already on its way.
	}
}

// dispatchLocked creates the request at the document's current version
// and starts the run. Caller holds c.mu with the state at Pending.
func (c *Coordinator) dispatchLocked(uri string) {
	snap, err := c.store.Snapshot(uri)
	if err != nil {
		delete(c.states, uri)
		return
	}
	path, err := c.uriToPath(uri)
	if err != nil {
		c.states[uri] = stateIdle
		c.report("cannot resolve %s: %v", uri, err)
		return
	}

	req := analysis.NewDocumentRequest(
		analysis.KindLint, uri, path, snap.Version, c.cache.Settings().LintTargets)
	c.states[uri] = stateAnalyzing

	go func() {
		res, runErr := c.execute(req)
		c.onDocumentResult(req, res, runErr)
	}()
}

// SetConcurrencyLimit applies an updated analysis concurrency limit.
// Runs already queued on the old semaphore keep the limit they queued
// under; new runs acquire from the replacement.
func (c *Coordinator) SetConcurrencyLimit(limit int) {
	if limit < 1 {
		limit = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit != c.semLimit {
		c.semLimit = limit
		c.sem = semaphore.NewWeighted(int64(limit))
	}
}

// execute runs one document-scoped request under the concurrency gates.
func (c *Coordinator) execute(req analysis.Request) (analysis.Result, error) {
	c.workspaceGate.RLock()
	defer c.workspaceGate.RUnlock()

	c.mu.Lock()
	sem := c.sem
	c.mu.Unlock()

	if err := sem.Acquire(c.ctx, 1); err != nil {
		return analysis.Result{}, err
	}
	defer sem.Release(1)

	cfg, err := c.cache.Get()
	if err != nil {
		return analysis.Result{}, err
	}
	return c.runner.Run(c.ctx, req, cfg), nil
}

// onDocumentResult applies the staleness invariant: a result computed
// against a superseded version is dropped and exactly one new run is
// dispatched at the latest version.
func (c *Coordinator) onDocumentResult(req analysis.Request, res analysis.Result, runErr error) {
	c.mu.Lock()

	version, open := c.store.Version(req.URI)
	if !open {
		delete(c.states, req.URI)
		c.cond.Broadcast()
		c.mu.Unlock()
		return
	}

	if runErr != nil || res.Err != nil {
		rerun := c.states[req.URI] == stateStale
		c.states[req.URI] = stateIdle
		if rerun {
			c.states[req.URI] = statePending
			c.dispatchLocked(req.URI)
		}
		c.cond.Broadcast()
		c.mu.Unlock()

		if runErr != nil {
			c.report("lint of %s failed: %v", req.URI, runErr)
		} else {
			c.report("lint of %s failed: %v", req.URI, res.Err)
		}
		return
	}

	if version != req.Version {
		// Stale result. The edits that invalidated it also demand a rerun.
		c.states[req.URI] = statePending
		c.dispatchLocked(req.URI)
		c.cond.Broadcast()
		c.mu.Unlock()
		log.Printf("dropping stale result for %s (v%d, now v%d)", req.URI, req.Version, version)
		return
	}

	c.states[req.URI] = stateIdle
	c.cond.Broadcast()
	c.mu.Unlock()

	converted := diagnostics.Convert(res, c.pathToURI, c.cache.Settings().EnableCodeAction)
	converted.Seed(req.URI)
	c.publisher.Apply(converted)
}

// FormatDocument runs the format targets on one document and returns the
// resulting text edits. Published diagnostics are left untouched. The
// call waits its turn behind any in-flight analysis of the document.
func (c *Coordinator) FormatDocument(uri string) ([]protocol.TextEdit, error) {
	c.mu.Lock()
	for c.states[uri] == stateAnalyzing || c.states[uri] == stateStale {
		c.cond.Wait()
	}

	snap, err := c.store.Snapshot(uri)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	path, err := c.uriToPath(uri)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}

	req := analysis.NewDocumentRequest(
		analysis.KindFormat, uri, path, snap.Version, c.cache.Settings().FormatTargets)
	c.states[uri] = stateAnalyzing
	c.mu.Unlock()

	res, runErr := c.execute(req)

	c.mu.Lock()
	version, open := c.store.Version(uri)
	if !open {
		delete(c.states, uri)
	} else if c.states[uri] == stateStale {
		c.states[uri] = statePending
		c.dispatchLocked(uri)
	} else {
		c.states[uri] = stateIdle
	}
	c.cond.Broadcast()
	c.mu.Unlock()

	if runErr != nil {
		c.report("format of %s failed: %v", uri, runErr)
		return nil, runErr
	}
	if res.Err != nil {
		c.report("format of %s failed: %v", uri, res.Err)
		return nil, res.Err
	}
	if !open {
		return nil, fmt.Errorf("%w: %s", document.ErrUnknownDocument, uri)
	}
	if version != req.Version {
		return nil, fmt.Errorf("document changed while formatting: %s", uri)
	}

	var edits []protocol.TextEdit
	for _, finding := range res.Diagnostics {
		if !analysis.PathsMatch(finding.Path, req.Path) {
			continue
		}
		if edit := diagnostics.EditFromDiff(finding); edit != nil {
			edits = append(edits, *edit)
		}
	}
	return edits, nil
}

// LintWorkspace runs the lint targets over the whole workspace.
func (c *Coordinator) LintWorkspace() {
	go c.runWorkspace(analysis.KindLint, c.cache.Settings().LintTargets)
}

// FormatWorkspace runs the format targets over the whole workspace and
// publishes the would-reformat findings as diagnostics.
func (c *Coordinator) FormatWorkspace() {
	go c.runWorkspace(analysis.KindFormat, c.cache.Settings().FormatTargets)
}

func (c *Coordinator) runWorkspace(kind analysis.Kind, targets []string) {
	req := analysis.NewWorkspaceRequest(kind, targets)

	c.workspaceGate.Lock()
	cfg, err := c.cache.Get()
	if err != nil {
		c.workspaceGate.Unlock()
		c.report("workspace %s failed: %v", kind, err)
		return
	}
	res := c.runner.Run(c.ctx, req, cfg)
	c.workspaceGate.Unlock()

	if res.Err != nil {
		c.report("workspace %s failed: %v", kind, res.Err)
		return
	}

	converted := diagnostics.Convert(res, c.pathToURI, c.cache.Settings().EnableCodeAction)
	c.publisher.Apply(converted)
}

// ReloadConfiguration re-resolves the project configuration. A failed
// reload keeps the previous configuration active.
func (c *Coordinator) ReloadConfiguration() error {
	if _, err := c.cache.Reload(); err != nil {
		c.report("configuration reload failed: %v", err)
		return err
	}
	log.Println("configuration reloaded")
	return nil
}

func (c *Coordinator) report(format string, args ...any) {
	log.Printf(format, args...)
	if c.message != nil {
		c.message(protocol.MessageTypeWarning, fmt.Sprintf(format, args...))
	}
}
