package server

import (
	"fmt"
	"log"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/bonprosoft/pysen-ls/internal/document"
)

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	s.bindClient(context)
	uri := params.TextDocument.URI
	log.Printf("didOpen: %s", uri)

	coordinator := s.session()
	if coordinator == nil {
		return fmt.Errorf("server not initialized")
	}
	return coordinator.DidOpen(uri, params.TextDocument.Version, params.TextDocument.Text)
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	uri := params.TextDocument.URI

	coordinator := s.session()
	if coordinator == nil {
		return fmt.Errorf("server not initialized")
	}

	changes := make([]document.Change, 0, len(params.ContentChanges))
	for _, raw := range params.ContentChanges {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEvent:
			changes = append(changes, document.Change{
				Range: change.Range,
				Text:  change.Text,
			})
		case protocol.TextDocumentContentChangeEventWhole:
			changes = append(changes, document.Change{Text: change.Text})
		default:
			return fmt.Errorf("unexpected change event type %T", raw)
		}
	}

	return coordinator.DidChange(uri, params.TextDocument.Version, changes)
}

func (s *Server) textDocumentDidSave(
	context *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	log.Printf("didSave: %s", uri)

	coordinator := s.session()
	if coordinator == nil {
		return fmt.Errorf("server not initialized")
	}
	return coordinator.DidSave(uri, params.Text)
}

func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	log.Printf("didClose: %s", uri)

	coordinator := s.session()
	if coordinator == nil {
		return fmt.Errorf("server not initialized")
	}
	return coordinator.DidClose(uri)
}

func (s *Server) textDocumentFormatting(
	context *glsp.Context,
	params *protocol.DocumentFormattingParams,
) ([]protocol.TextEdit, error) {
	uri := params.TextDocument.URI
	log.Printf("formatting: %s", uri)

	coordinator := s.session()
	if coordinator == nil {
		return nil, fmt.Errorf("server not initialized")
	}
	return coordinator.FormatDocument(uri)
}

func (s *Server) textDocumentCodeAction(
	context *glsp.Context,
	params *protocol.CodeActionParams,
) (any, error) {
	if !s.settings().EnableCodeAction {
		return nil, nil
	}

	uri := params.TextDocument.URI
	actions := s.publisher.ActionsFor(uri, &params.Range)
	if len(actions) == 0 {
		return []protocol.CodeAction{}, nil
	}
	return actions, nil
}
