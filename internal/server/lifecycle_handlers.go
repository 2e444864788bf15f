package server

import (
	"fmt"
	"log"
	"os"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/bonprosoft/pysen-ls/internal/config"
	"github.com/bonprosoft/pysen-ls/internal/session"
)

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	settings, err := config.LoadSettings(extractSettings(params.InitializationOptions))
	if err != nil {
		return nil, fmt.Errorf("invalid initialization options: %w", err)
	}

	root, err := workspaceRoot(params)
	if err != nil {
		return nil, err
	}
	log.Printf("workspace root: %s", root)

	cache := config.NewCache(root, settings)
	coordinator := session.New(s.store, cache, s.runner, s.publisher, session.Options{
		URIToPath: uriToPath,
		PathToURI: func(path string) string { return pathToURI(root, path) },
		Message:   s.showMessage,
	})

	s.mu.Lock()
	s.root = root
	s.cache = cache
	s.coordinator = coordinator
	s.mu.Unlock()

	syncKind := protocol.TextDocumentSyncKindIncremental
	if settings.DocumentSync == "full" {
		syncKind = protocol.TextDocumentSyncKindFull
	}

	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.True},
	}
	capabilities.DocumentFormattingProvider = true
	if settings.EnableCodeAction {
		capabilities.CodeActionProvider = &protocol.CodeActionOptions{
			CodeActionKinds: []protocol.CodeActionKind{protocol.CodeActionKindQuickFix},
		}
	}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: commandNames(),
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	s.bindClient(context)
	log.Println("client initialized")
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	log.Println("shutting down")
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (s *Server) setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (s *Server) workspaceDidChangeConfiguration(
	context *glsp.Context,
	params *protocol.DidChangeConfigurationParams,
) error {
	s.bindClient(context)

	settings, err := config.LoadSettings(extractSettings(params.Settings))
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s.mu.Lock()
	cache := s.cache
	coordinator := s.coordinator
	s.mu.Unlock()
	if cache == nil {
		return fmt.Errorf("server not initialized")
	}

	cache.UpdateSettings(settings)
	if coordinator != nil {
		coordinator.SetConcurrencyLimit(settings.MaxConcurrentAnalyses)
	}
	log.Println("settings updated")
	return nil
}

// extractSettings accepts either the settings object itself or the
// {"config": {...}} wrapper the editor extension sends.
func extractSettings(v any) any {
	if m, ok := v.(map[string]any); ok {
		if nested, ok := m["config"]; ok {
			return nested
		}
	}
	return v
}

func workspaceRoot(params *protocol.InitializeParams) (string, error) {
	if params.RootURI != nil {
		return uriToPath(*params.RootURI)
	}
	if params.RootPath != nil {
		return *params.RootPath, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("no workspace root: %w", err)
	}
	return cwd, nil
}
