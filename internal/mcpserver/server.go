// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes read-only skylabel tools for LLM integration via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/skylabel/internal/labeling"
	"github.com/starford/skylabel/internal/models"
)

const formatURI = "skylabel://annotation-format"

// Server wraps the MCP server with skylabel tools.
type Server struct {
	mcp *server.MCPServer
	svc *labeling.Service
}

// New creates a new MCP server with all skylabel tools registered.
func New(svc *labeling.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Skylabel",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_inventory",
		mcp.WithDescription("List unlabeled images: which are free, which are leased, and labeled/skipped counts."),
		mcp.WithString("holder", mcp.Description("Holder id to view the pool as (optional)")),
	), s.listInventory)

	s.mcp.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Labeling progress: totals plus counts by aircraft type and airline."),
	), s.getStats)

	s.mcp.AddTool(mcp.NewTool("get_annotation",
		mcp.WithDescription("Read one annotation by id."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Annotation id")),
	), s.getAnnotation)

	s.mcp.AddTool(mcp.NewTool("list_annotations",
		mcp.WithDescription("List annotations, newest first."),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
		mcp.WithNumber("per_page", mcp.Description("Page size (default 50, max 500)")),
	), s.listAnnotations)

	s.mcp.AddTool(mcp.NewTool("list_reference_data",
		mcp.WithDescription("List known aircraft types or airlines."),
		mcp.WithString("kind", mcp.Required(),
			mcp.Enum(string(models.KindAircraftType), string(models.KindAirline)),
			mcp.Description("Which table to list")),
	), s.listReferenceData)

	s.mcp.AddTool(mcp.NewTool("export_csv",
		mcp.WithDescription("Export annotations as CSV. Read the format first via "+
			"get_annotation_format or the "+formatURI+" resource."),
		mcp.WithNumber("start_id", mcp.Description("First annotation id (inclusive)")),
		mcp.WithNumber("end_id", mcp.Description("Last annotation id (inclusive)")),
	), s.exportCSV)

	s.mcp.AddTool(mcp.NewTool("get_annotation_format",
		mcp.WithDescription("Returns the annotation field and export format reference."),
	), s.getAnnotationFormat)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Annotation Format",
			mcp.WithResourceDescription("Annotation fields and CSV/YOLO export layout."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listInventory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	holder := ""
	if h, err := req.RequireString("holder"); err == nil {
		holder = h
	}
	inv, err := s.svc.ListInventory(ctx, holder)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(inv)
}

func (s *Server) getStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) getAnnotation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.svc.GetAnnotation(ctx, int64(id))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("annotation %d: %v", id, err)), nil
	}
	return jsonResult(a)
}

func (s *Server) listAnnotations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, perPage := 1, labeling.DefaultPerPage
	if v, err := req.RequireInt("page"); err == nil {
		page = v
	}
	if v, err := req.RequireInt("per_page"); err == nil {
		perPage = v
	}
	res, err := s.svc.ListAnnotations(ctx, page, perPage)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) listReferenceData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := s.svc.ListReference(ctx, models.ReferenceKind(kind))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no entries"), nil
	}
	return jsonResult(entries)
}

func (s *Server) exportCSV(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var rng models.IDRange
	if v, err := req.RequireInt("start_id"); err == nil {
		start := int64(v)
		rng.Start = &start
	}
	if v, err := req.RequireInt("end_id"); err == nil {
		end := int64(v)
		rng.End = &end
	}
	var buf bytes.Buffer
	if err := s.svc.ExportCSV(ctx, &buf, rng); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) getAnnotationFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(AnnotationFormatContract), nil
}

func (s *Server) readFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     AnnotationFormatContract,
		},
	}, nil
}
