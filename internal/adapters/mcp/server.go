// Package mcpadapter exposes the diagnostic session as MCP tools so an
// agent can drive the same intents a person would.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/neurovision/internal/core/domain"
	"github.com/kirillkom/neurovision/internal/core/ports"
)

const serverName = "neurovision"

// ImageLoader reads an image from a local path.
type ImageLoader func(path string) (domain.SelectedImage, error)

type Tools struct {
	session ports.DiagnosticSession
	load    ImageLoader
}

func NewTools(session ports.DiagnosticSession, load ImageLoader) *Tools {
	return &Tools{session: session, load: load}
}

// NewServer registers every session tool on a fresh MCP server.
func NewServer(tools *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("select_image",
		mcp.WithDescription("Select a local MRI image for diagnosis. Discards any previous selection or result."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the image file")),
	), tools.SelectImage)

	s.AddTool(mcp.NewTool("submit_diagnosis",
		mcp.WithDescription("Submit the selected image to the inference service."),
		mcp.WithBoolean("wait", mcp.Description("Wait for the diagnosis to settle (default true)")),
	), tools.SubmitDiagnosis)

	s.AddTool(mcp.NewTool("reset_session",
		mcp.WithDescription("Return the session to idle and release the preview."),
	), tools.ResetSession)

	s.AddTool(mcp.NewTool("session_snapshot",
		mcp.WithDescription("Read the current session state."),
	), tools.SessionSnapshot)

	return s
}

func Serve(tools *Tools, version string) error {
	return server.ServeStdio(NewServer(tools, version))
}

func (t *Tools) SelectImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := strings.TrimSpace(request.GetString("path", ""))
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}
	image, err := t.load(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("load image: %v", err)), nil
	}
	if err := t.session.SelectFile(ctx, image); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("select image: %v", err)), nil
	}
	return snapshotResult(t.session.Snapshot())
}

func (t *Tools) SubmitDiagnosis(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !t.session.Submit(ctx) {
		snap := t.session.Snapshot()
		return mcp.NewToolResultError(fmt.Sprintf("session is not ready for submission (state %s)", snap.State)), nil
	}
	if request.GetBool("wait", true) {
		if err := t.session.WaitSettled(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("wait for diagnosis: %v", err)), nil
		}
	}
	return snapshotResult(t.session.Snapshot())
}

func (t *Tools) ResetSession(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.session.Reset(ctx)
	return snapshotResult(t.session.Snapshot())
}

func (t *Tools) SessionSnapshot(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return snapshotResult(t.session.Snapshot())
}

type toolSnapshot struct {
	domain.Snapshot
	HasAnnotatedImage bool `json:"has_annotated_image"`
	PreviewOmitted    bool `json:"preview_omitted,omitempty"`
}

// snapshotResult drops inline image payloads, which are useless to an agent.
func snapshotResult(snap domain.Snapshot) (*mcp.CallToolResult, error) {
	out := toolSnapshot{Snapshot: snap, PreviewOmitted: snap.PreviewHandle != ""}
	out.PreviewHandle = ""
	if snap.Result != nil {
		result := *snap.Result
		out.HasAnnotatedImage = result.HasAnnotatedImage()
		result.AnnotatedImage = ""
		out.Result = &result
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}
