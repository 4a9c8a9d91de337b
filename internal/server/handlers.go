package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/droplet-assay-mcp/internal/assay"
	"github.com/ironsheep/droplet-assay-mcp/internal/config"
	"github.com/ironsheep/droplet-assay-mcp/internal/imaging"
	"github.com/ironsheep/droplet-assay-mcp/internal/roi"
)

// errInvalidArgs marks tool arguments that could not be decoded.
var errInvalidArgs = errors.New("invalid arguments")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "droplet_analyze").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Bad arguments and invalid parameters return code -32602. Other tool
// failures return code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		log.Warn().
			Str("evt.name", "server.tool_failed").
			Str("tool", params.Name).
			Err(err).
			Msg("tool call failed")
		if errors.Is(err, errInvalidArgs) || errors.Is(err, config.ErrConfiguration) {
			return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
		}
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "droplet_sequence_info":
		return s.handleSequenceInfo(args)
	case "droplet_detect_rois":
		return s.handleDetectROIs(ctx, args)
	case "droplet_analyze":
		return s.handleAnalyze(ctx, args)
	case "droplet_batch":
		return s.handleBatch(ctx, args)
	case "droplet_params":
		return s.pipeline.Params, nil
	case "droplet_clear_cache":
		return s.handleClearCache(), nil
	default:
		return nil, fmt.Errorf("%w: unknown tool: %s", errInvalidArgs, name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	return nil
}

// overlayParams decodes raw over a copy of the server parameters. Keys that
// name no parameter are rejected.
func (s *Server) overlayParams(raw json.RawMessage) (*config.Params, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	p := s.pipeline.Params
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: params: %v", config.ErrConfiguration, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// handleClearCache drops the cached backgrounds so the next analysis rebuilds
// them from the frames on disk.
func (s *Server) handleClearCache() interface{} {
	cleared := 0
	if s.pipeline.Cache != nil {
		cleared = s.pipeline.Cache.Clear()
	}
	log.Info().
		Str("evt.name", "server.cache_cleared").
		Int("cleared", cleared).
		Msg("background cache cleared")
	return map[string]int{"cleared": cleared}
}

// === Sequence ===

type sequenceInfoArgs struct {
	Directory string `json:"directory"`
	Prefix    string `json:"prefix"`
}

func (s *Server) handleSequenceInfo(args json.RawMessage) (interface{}, error) {
	var a sequenceInfoArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Prefix == "" {
		a.Prefix = s.pipeline.Prefix
	}

	seq, err := imaging.DiscoverSequence(a.Directory, a.Prefix)
	if err != nil {
		return nil, err
	}
	return seq.Info()
}

// === Detection ===

type detectROIsArgs struct {
	Directory     string `json:"directory"`
	Prefix        string `json:"prefix"`
	SampleStride  int    `json:"sample_stride"`
	NumCols       int    `json:"num_cols"`
	NumRows       int    `json:"num_rows"`
	AnnotatedPath string `json:"annotated_path"`
	IncludeImage  bool   `json:"include_image"`
}

type detectROIsResult struct {
	*assay.Detection
	Image *imaging.EncodedImage `json:"image,omitempty"`
}

func (s *Server) handleDetectROIs(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectROIsArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Prefix == "" {
		a.Prefix = s.pipeline.Prefix
	}

	cfg := s.pipeline.Params.Detector
	if a.SampleStride > 0 {
		cfg.SampleStride = a.SampleStride
	}
	if a.NumCols > 0 {
		cfg.NumCols = a.NumCols
	}
	if a.NumRows > 0 {
		cfg.NumRows = a.NumRows
	}

	seq, err := imaging.DiscoverSequence(a.Directory, a.Prefix)
	if err != nil {
		return nil, err
	}
	det, err := s.pipeline.DetectROIs(ctx, seq, cfg, a.AnnotatedPath)
	if err != nil {
		if ctx.Err() != nil {
			return map[string]interface{}{"aborted": true}, nil
		}
		return nil, err
	}

	out := detectROIsResult{Detection: det}
	if a.IncludeImage {
		if out.Image, err = imaging.EncodePNG(det.Annotated); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// === Analysis ===

type analyzeArgs struct {
	Directory     string          `json:"directory"`
	Prefix        string          `json:"prefix"`
	StartFrame    int             `json:"start_frame"`
	EndFrame      int             `json:"end_frame"`
	ROIs          []roi.ROI       `json:"rois"`
	Ignore        string          `json:"ignore"`
	Grouping      string          `json:"grouping"`
	Params        json.RawMessage `json:"params"`
	IncludeSeries bool            `json:"include_series"`
}

func (s *Server) handleAnalyze(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a analyzeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	params, err := s.overlayParams(a.Params)
	if err != nil {
		return nil, err
	}

	return s.pipeline.Analyze(ctx, assay.Request{
		Directory:  a.Directory,
		Prefix:     a.Prefix,
		StartFrame: a.StartFrame,
		EndFrame:   a.EndFrame,
		ROIs:       a.ROIs,
		Ignore:     a.Ignore,
		Options: assay.Options{
			Params:        params,
			Grouping:      a.Grouping,
			IncludeSeries: a.IncludeSeries,
		},
	})
}

type batchArgs struct {
	Paths        []string        `json:"paths"`
	Recursive    bool            `json:"recursive"`
	RequiredFile string          `json:"required_file"`
	Grouping     string          `json:"grouping"`
	Params       json.RawMessage `json:"params"`
}

func (s *Server) handleBatch(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a batchArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if len(a.Paths) == 0 {
		return nil, fmt.Errorf("%w: paths is required", errInvalidArgs)
	}
	if a.RequiredFile == "" {
		a.RequiredFile = assay.DefaultRequiredFile
	}
	params, err := s.overlayParams(a.Params)
	if err != nil {
		return nil, err
	}

	dirs := assay.CollectDirs(a.Paths, a.Recursive, a.RequiredFile)
	if len(dirs) == 0 {
		return nil, fmt.Errorf("%w: no recording directories containing %s", imaging.ErrInput, a.RequiredFile)
	}
	return s.pipeline.Batch(ctx, dirs, assay.Options{Params: params, Grouping: a.Grouping}, nil), nil
}
