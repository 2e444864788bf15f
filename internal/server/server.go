package server

import (
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/bonprosoft/pysen-ls/internal/analysis"
	"github.com/bonprosoft/pysen-ls/internal/config"
	"github.com/bonprosoft/pysen-ls/internal/diagnostics"
	"github.com/bonprosoft/pysen-ls/internal/document"
	"github.com/bonprosoft/pysen-ls/internal/session"
)

const lsName = "pysen-ls"

var version = "0.1.0"

// Server wires the LSP transport to the session coordinator.
type Server struct {
	handler   *protocol.Handler
	store     *document.Store
	publisher *diagnostics.Publisher
	runner    *analysis.Runner

	mu          sync.Mutex
	root        string
	cache       *config.Cache
	coordinator *session.Coordinator
	client      *glsp.Context
}

// NewServer creates the LSP server.
func NewServer() (*server.Server, error) {
	ls := &Server{
		store:     document.NewStore(),
		publisher: diagnostics.NewPublisher(),
		runner:    analysis.NewRunner(),
	}

	ls.handler = &protocol.Handler{
		Initialize:                      ls.initialize,
		Initialized:                     ls.initialized,
		Shutdown:                        ls.shutdown,
		SetTrace:                        ls.setTrace,
		TextDocumentDidOpen:             ls.textDocumentDidOpen,
		TextDocumentDidChange:           ls.textDocumentDidChange,
		TextDocumentDidSave:             ls.textDocumentDidSave,
		TextDocumentDidClose:            ls.textDocumentDidClose,
		TextDocumentFormatting:          ls.textDocumentFormatting,
		TextDocumentCodeAction:          ls.textDocumentCodeAction,
		WorkspaceDidChangeConfiguration: ls.workspaceDidChangeConfiguration,
		WorkspaceExecuteCommand:         ls.workspaceExecuteCommand,
	}

	return server.NewServer(ls.handler, lsName, false), nil
}

// bindClient attaches the connection used for server-initiated messages.
func (s *Server) bindClient(context *glsp.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return
	}
	s.client = context
	s.publisher.Bind(func(uri string, diagnostics []protocol.Diagnostic) {
		context.Notify("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
			URI:         uri,
			Diagnostics: diagnostics,
		})
	})
}

func (s *Server) showMessage(kind protocol.MessageType, message string) {
	s.mu.Lock()
	client := s.client
	s.mu.Unlock()

	if client != nil {
		client.Notify("window/showMessage", protocol.ShowMessageParams{
			Type:    kind,
			Message: message,
		})
	}
}

func (s *Server) session() *session.Coordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coordinator
}

func (s *Server) settings() config.Settings {
	s.mu.Lock()
	cache := s.cache
	s.mu.Unlock()

	if cache == nil {
		return config.DefaultSettings()
	}
	return cache.Settings()
}
