package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// questweaver://sessions: all live sessions.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"questweaver://sessions",
			"Sessions",
			mcplib.WithResourceDescription("All live agent sessions with status and metrics"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleSessionsResource,
	)

	// questweaver://session/{id}/memories: a session's learned memories.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"questweaver://session/{id}/memories",
			"Session Memories",
			mcplib.WithTemplateDescription("Learned memories for a session, ordered by confidence"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleMemoriesResource,
	)
}

func (s *Server) handleSessionsResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(s.runtime.Sessions(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sessions: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleMemoriesResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	id, err := sessionIDFromURI(request.Params.URI)
	if err != nil {
		return nil, err
	}

	memories, err := s.runtime.Memories(id, 50)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(memories, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal memories: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// sessionIDFromURI extracts the id segment from
// questweaver://session/{id}/... URIs.
func sessionIDFromURI(uri string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(uri, "questweaver://session/")
	if !ok {
		return uuid.Nil, fmt.Errorf("unexpected resource URI %q", uri)
	}
	idPart, _, _ := strings.Cut(rest, "/")
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid session id in URI %q", uri)
	}
	return id, nil
}
