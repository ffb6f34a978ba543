package mcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/mcp-form-pipeline/internal/config"
	"github.com/a3tai/mcp-form-pipeline/internal/contract"
	"github.com/a3tai/mcp-form-pipeline/internal/descriptions"
	"github.com/a3tai/mcp-form-pipeline/internal/pdfsource"
	"github.com/a3tai/mcp-form-pipeline/internal/pipeline"
	"github.com/a3tai/mcp-form-pipeline/internal/quality"
	"github.com/a3tai/mcp-form-pipeline/internal/validation"
)

// maxListedFiles bounds the directory listing in form_server_info
const maxListedFiles = 10

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	pipelines map[quality.Policy]*pipeline.Pipeline
	extractor *pdfsource.Extractor
	engine    *validation.Engine
	logger    logrus.FieldLogger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance. One pipeline is built per
// quality policy so tools can override the policy per call.
func NewServer(cfg *config.Config, logger logrus.FieldLogger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	base := cfg.PipelineConfig()
	pipelines := make(map[quality.Policy]*pipeline.Pipeline, 2)
	for _, policy := range []quality.Policy{quality.PolicyBasic, quality.PolicyStrict} {
		pc := base
		pc.Quality.Policy = policy
		p, err := pipeline.New(pc, pipeline.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		pipelines[policy] = p
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:    cfg,
		pipelines: pipelines,
		extractor: pdfsource.NewExtractor(cfg.MaxFileSize, logger),
		engine:    validation.NewEngine(base.Validation),
		logger:    logger,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	formatOption := mcp.WithString("format",
		mcp.Description("Output format: text (default), json or yaml"),
		mcp.Enum(string(contract.FormatText), string(contract.FormatJSON), string(contract.FormatYAML)),
	)
	policyOption := mcp.WithString("policy",
		mcp.Description("Quality filter policy, overrides the server default"),
		mcp.Enum(string(quality.PolicyBasic), string(quality.PolicyStrict)),
	)

	analyzeDetectionsTool := mcp.NewTool(
		"form_analyze_detections",
		mcp.WithDescription(descriptions.GetToolDescription("form_analyze_detections")),
		mcp.WithString("payload",
			mcp.Required(),
			mcp.Description("Detection payload as JSON: {\"documentId\", \"detections\": [...]} or a bare array"),
		),
		formatOption,
		policyOption,
	)
	s.mcpServer.AddTool(analyzeDetectionsTool, s.handleAnalyzeDetections)

	analyzePDFTool := mcp.NewTool(
		"form_analyze_pdf",
		mcp.WithDescription(descriptions.GetToolDescription("form_analyze_pdf")),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the PDF file, relative paths resolve against the server directory"),
		),
		mcp.WithBoolean("acroform",
			mcp.Description("Read filled AcroForm fields (default true)"),
		),
		mcp.WithBoolean("text_layer",
			mcp.Description("Read \"Label: value\" lines from the text layer (default true)"),
		),
		formatOption,
		policyOption,
	)
	s.mcpServer.AddTool(analyzePDFTool, s.handleAnalyzePDF)

	validateFieldsTool := mcp.NewTool(
		"form_validate_fields",
		mcp.WithDescription(descriptions.GetToolDescription("form_validate_fields")),
		mcp.WithString("fields",
			mcp.Required(),
			mcp.Description("JSON array of typed fields: {\"field_type\", \"value\", ...}"),
		),
		formatOption,
	)
	s.mcpServer.AddTool(validateFieldsTool, s.handleValidateFields)

	serverInfoTool := mcp.NewTool(
		"form_server_info",
		mcp.WithDescription(descriptions.GetToolDescription("form_server_info")),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleAnalyzeDetections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload, err := request.RequireString("payload")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, p, err := s.outputOptions(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	doc, err := contract.DecodeDocument(strings.NewReader(payload))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return s.runDocument(p, doc, format)
}

func (s *Server) handleAnalyzePDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, p, err := s.outputOptions(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := pdfsource.Options{
		AcroForm:  request.GetBool("acroform", true),
		TextLayer: request.GetBool("text_layer", true),
	}

	doc, err := s.extractor.Extract(ctx, s.resolvePath(path), opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return s.runDocument(p, doc, format)
}

func (s *Server) handleValidateFields(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("fields")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := contract.ParseFormat(request.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	in, err := contract.DecodeFields(strings.NewReader(raw))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report := s.engine.ValidateDocument(in)

	var buf bytes.Buffer
	if err := contract.EncodeReport(&buf, format, report); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo()), nil
}

// outputOptions reads the format and policy arguments shared by the
// analysis tools
func (s *Server) outputOptions(request mcp.CallToolRequest) (contract.Format, *pipeline.Pipeline, error) {
	format, err := contract.ParseFormat(request.GetString("format", ""))
	if err != nil {
		return "", nil, err
	}

	policy := quality.Policy(strings.ToLower(request.GetString("policy", s.config.FilterPolicy)))
	p, ok := s.pipelines[policy]
	if !ok {
		return "", nil, fmt.Errorf("unknown filter policy: %s (must be one of: basic, strict)", policy)
	}
	return format, p, nil
}

func (s *Server) runDocument(p *pipeline.Pipeline, doc *pipeline.Document, format contract.Format) (*mcp.CallToolResult, error) {
	res, err := p.Run(doc.Detections)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res.DocumentID = doc.ID

	s.logger.WithFields(logrus.Fields{
		"document": doc.ID,
		"fields":   res.Stats.Final,
		"valid":    res.Report.Summary.OverallValid,
	}).Info("Document analyzed")

	var buf bytes.Buffer
	if err := contract.EncodeResult(&buf, format, res); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// resolvePath anchors relative paths at the configured PDF directory
func (s *Server) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(s.config.PDFDirectory, path)
}

// listPDFFiles returns acceptable PDF files in the configured directory,
// sorted by name
func (s *Server) listPDFFiles() []string {
	entries, err := os.ReadDir(s.config.PDFDirectory)
	if err != nil {
		return nil
	}

	checker := pdfsource.NewFileChecker(s.config.MaxFileSize)
	var names []string
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if checker.CheckInfo(entry.Name(), info) == nil {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

func (s *Server) formatServerInfo() string {
	pc := s.config.PipelineConfig()

	text := fmt.Sprintf("📋 %s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("📁 Default Directory: %s\n", s.config.PDFDirectory)
	text += fmt.Sprintf("📏 Max File Size: %d MB\n\n", s.config.MaxFileSize/(1024*1024))

	text += "⚙️  Pipeline Settings:\n"
	text += fmt.Sprintf("  Filter Policy: %s\n", pc.Quality.Policy)
	text += fmt.Sprintf("  Proximity Threshold: %.0f px\n", pc.Conflicts.ProximityThreshold)
	text += fmt.Sprintf("  Overlap (IoU) Threshold: %.2f\n", pc.Conflicts.OverlapThreshold)
	text += fmt.Sprintf("  Confidence Margin: %.2f\n", pc.Conflicts.ConfidenceMargin)
	text += fmt.Sprintf("  Line Height Multiplier: %.2f\n", pc.Capacity.LineHeightMultiplier)
	text += fmt.Sprintf("  Default Font Family: %s\n", pc.Capacity.DefaultFontFamily)
	text += fmt.Sprintf("  Required Fields: %s\n\n", joinTypes(pc))

	files := s.listPDFFiles()
	if len(files) > 0 {
		text += fmt.Sprintf("📂 Directory Contents (%d PDF files found):\n", len(files))
		for i, name := range files {
			if i >= maxListedFiles {
				text += fmt.Sprintf("   ... and %d more files\n", len(files)-maxListedFiles)
				break
			}
			text += fmt.Sprintf("   %d. %s\n", i+1, name)
		}
		text += "\n"
	} else {
		text += "📂 Directory Contents: No PDF files found in default directory\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, name := range descriptions.GetAllToolNames() {
		summary, _, _ := strings.Cut(descriptions.GetToolDescription(name), "\n")
		text += fmt.Sprintf("• %s: %s\n", name, summary)
	}

	return text
}

func joinTypes(pc pipeline.Config) string {
	if len(pc.Validation.RequiredTypes) == 0 {
		return "none"
	}
	names := make([]string, len(pc.Validation.RequiredTypes))
	for i, t := range pc.Validation.RequiredTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	if s.config.IsServerMode() {
		return s.runServerMode(ctx)
	}
	return s.runStdioMode(ctx)
}

// runStdioMode runs the server in stdio mode
func (s *Server) runStdioMode(_ context.Context) error {
	s.logger.WithField("directory", s.config.PDFDirectory).Debug("Starting form MCP server in stdio mode")

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// runServerMode serves MCP over SSE until ctx is cancelled
func (s *Server) runServerMode(ctx context.Context) error {
	sse := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL("http://"+s.config.Address()),
	)

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("address", s.config.Address()).Info("Starting form MCP server in SSE mode")
		errCh <- sse.Start(s.config.Address())
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve sse: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down sse server: %w", err)
		}
		return nil
	}
}
