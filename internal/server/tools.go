package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func intProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": desc}
}

func boolProp(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": desc}
}

var roiSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"x1":     intProp("Left edge column (0-based, inclusive)"),
		"y1":     intProp("Top edge row (0-based, inclusive)"),
		"x2":     intProp("Right edge column (exclusive)"),
		"y2":     intProp("Bottom edge row (exclusive)"),
		"ignore": boolProp("Skip this droplet in the analysis"),
	},
	"required": []string{"x1", "y1", "x2", "y2"},
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "droplet_sequence_info",
			Description: "Describe the frame sequence in a recording directory: frame count, first and last file, frame size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"directory": stringProp("Absolute path to the recording directory"),
					"prefix":    stringProp("Frame file prefix. Default \"w1a\""),
				},
				"required": []string{"directory"},
			},
		},
		{
			Name:        "droplet_detect_rois",
			Description: "Find the droplets of a recording with a circle transform on the minimum projection of sampled frames, and return one padded ROI per droplet in grid order.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"directory":      stringProp("Absolute path to the recording directory"),
					"prefix":         stringProp("Frame file prefix. Default \"w1a\""),
					"sample_stride":  intProp("Use every n-th frame for the projection. Default 100"),
					"num_cols":       intProp("Droplet grid columns. Default 4"),
					"num_rows":       intProp("Droplet grid rows. Default 3"),
					"annotated_path": stringProp("Optional path to write the projection with detected circles as PNG"),
					"include_image":  boolProp("Return the annotated projection as base64 PNG. Default false"),
				},
				"required": []string{"directory"},
			},
		},
		{
			Name:        "droplet_analyze",
			Description: "Run the turn assay on a recording: measure the worm in every droplet and frame, detect turns, and report turn counts, choice indices and group rates per phase. Droplets are detected automatically when no ROIs are given.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"directory":   stringProp("Absolute path to the recording directory"),
					"prefix":      stringProp("Frame file prefix. Default \"w1a\""),
					"start_frame": intProp("First frame to analyze (1-based). Default 1"),
					"end_frame":   intProp("Last frame to analyze (1-based, inclusive). Default the last frame"),
					"rois": map[string]interface{}{
						"type":        "array",
						"description": "Droplet regions. Omit to detect them",
						"items":       roiSchema,
					},
					"ignore":   stringProp("Comma separated 1-based droplet numbers to skip, e.g. \"2,7\""),
					"grouping": stringProp("Grouping scheme: default, halves, triples, quad15, all, or 0-based ranges such as \"0-5,6-11\""),
					"params": map[string]interface{}{
						"type":        "object",
						"description": "Analysis parameters overriding the server defaults, keyed like the parameter file (e.g. {\"half_period\": 300})",
					},
					"include_series": boolProp("Include per-frame raw and smoothed series in the report. Default false"),
				},
				"required": []string{"directory"},
			},
		},
		{
			Name:        "droplet_batch",
			Description: "Analyze every recording under the given paths with automatic droplet detection. A failing recording is reported and the batch continues.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"paths": map[string]interface{}{
						"type":        "array",
						"description": "Directories to search for recordings",
						"items":       map[string]interface{}{"type": "string"},
					},
					"recursive":     boolProp("Search all nested directories. Default false (immediate subdirectories)"),
					"required_file": stringProp("File that marks a recording directory. Default \"w1a000000.jpg\""),
					"grouping":      stringProp("Grouping scheme applied to every recording"),
					"params": map[string]interface{}{
						"type":        "object",
						"description": "Analysis parameters overriding the server defaults",
					},
				},
				"required": []string{"paths"},
			},
		},
		{
			Name:        "droplet_clear_cache",
			Description: "Drop the cached backgrounds, e.g. after frames in a recording directory changed. Returns the number of entries removed.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "droplet_params",
			Description: "Return the analysis parameters the server uses by default.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
