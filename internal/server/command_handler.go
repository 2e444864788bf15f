package server

import (
	"fmt"
	"log"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// command is the routed form of the five workspace/executeCommand ids.
type command int

const (
	cmdReloadConfiguration command = iota
	cmdLintDocument
	cmdFormatDocument
	cmdLintWorkspace
	cmdFormatWorkspace
)

var commands = map[string]command{
	"pysen.reloadServerConfiguration": cmdReloadConfiguration,
	"pysen.callLintDocument":          cmdLintDocument,
	"pysen.callFormatDocument":        cmdFormatDocument,
	"pysen.callLintWorkspace":         cmdLintWorkspace,
	"pysen.callFormatWorkspace":       cmdFormatWorkspace,
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	return names
}

func (s *Server) workspaceExecuteCommand(
	context *glsp.Context,
	params *protocol.ExecuteCommandParams,
) (any, error) {
	s.bindClient(context)
	log.Printf("executeCommand: %s", params.Command)

	cmd, ok := commands[params.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", params.Command)
	}

	coordinator := s.session()
	if coordinator == nil {
		return nil, fmt.Errorf("server not initialized")
	}

	switch cmd {
	case cmdReloadConfiguration:
		return nil, coordinator.ReloadConfiguration()

	case cmdLintDocument:
		uri, err := documentArgument(params.Arguments)
		if err != nil {
			return nil, err
		}
		return nil, coordinator.LintDocument(uri)

	case cmdFormatDocument:
		uri, err := documentArgument(params.Arguments)
		if err != nil {
			return nil, err
		}
		return coordinator.FormatDocument(uri)

	case cmdLintWorkspace:
		coordinator.LintWorkspace()
		return nil, nil

	case cmdFormatWorkspace:
		coordinator.FormatWorkspace()
		return nil, nil

	default:
		return nil, fmt.Errorf("unhandled command %q", params.Command)
	}
}

// documentArgument expects exactly one string argument, the target URI.
func documentArgument(args []any) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one argument, got %d", len(args))
	}
	uri, ok := args[0].(string)
	if !ok {
		return "", fmt.Errorf("expected a document uri, got %T", args[0])
	}
	return uri, nil
}
