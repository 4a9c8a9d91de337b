package server

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"

	"github.com/ironsheep/droplet-assay-mcp/internal/assay"
	"github.com/ironsheep/droplet-assay-mcp/internal/config"
)

// writeDropletFrames writes n 120x60 frames with a bright elongated blob
// moving up and down in the left half.
func writeDropletFrames(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()

	for j := 0; j < n; j++ {
		img := image.NewGray(image.Rect(0, 0, 120, 60))
		cy := 18 + (j%5)*6
		for y := 0; y < 60; y++ {
			for x := 0; x < 120; x++ {
				dx, dy := float64(x-30)/3, float64(y-cy)/12
				v := uint8(20)
				if dx*dx+dy*dy <= 1 {
					v = 220
				}
				img.SetGray(x, y, color.Gray{Y: v})
			}
		}

		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("w1a%06d.png", j)))
		if err != nil {
			t.Fatalf("failed to create frame: %v", err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			t.Fatalf("failed to encode frame: %v", err)
		}
		f.Close()
	}
	return dir
}

func toolCall(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  params,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeToolText unpacks the JSON text content of a tool response into v.
func decodeToolText(t *testing.T, resp MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if len(result.Content) != 1 || result.Content[0].Type != "text" {
		t.Fatalf("unexpected content: %+v", result.Content)
	}
	if err := json.Unmarshal([]byte(result.Content[0].Text), v); err != nil {
		t.Fatalf("unmarshal tool text: %v", err)
	}
}

func TestHandleToolsCall_SequenceInfo(t *testing.T) {
	dir := writeDropletFrames(t, 4)
	s := newTestServer()

	resp := toolCall(t, s, "droplet_sequence_info", map[string]interface{}{"directory": dir})

	var info struct {
		Directory string `json:"directory"`
		Frames    int    `json:"frames"`
		FirstFile string `json:"first_file"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	}
	decodeToolText(t, *resp, &info)

	if info.Frames != 4 {
		t.Errorf("frames: got %d, want 4", info.Frames)
	}
	if info.Width != 120 || info.Height != 60 {
		t.Errorf("size: got %dx%d, want 120x60", info.Width, info.Height)
	}
	if filepath.Base(info.FirstFile) != "w1a000000.png" {
		t.Errorf("first_file: got %s", info.FirstFile)
	}
}

func TestHandleToolsCall_Analyze(t *testing.T) {
	dir := writeDropletFrames(t, 20)
	s := newTestServer()

	resp := toolCall(t, s, "droplet_analyze", map[string]interface{}{
		"directory": dir,
		"rois": []map[string]interface{}{
			{"x1": 0, "y1": 0, "x2": 60, "y2": 60},
			{"x1": 60, "y1": 0, "x2": 120, "y2": 60},
		},
		"params":         map[string]interface{}{"half_period": 10},
		"grouping":       "all",
		"include_series": true,
	})

	var report struct {
		Frames     int  `json:"frames"`
		HalfPeriod int  `json:"half_period"`
		Aborted    bool `json:"aborted"`
		ROIs       []struct {
			Label   int  `json:"label"`
			Skipped bool `json:"skipped"`
		} `json:"rois"`
		Groups []struct {
			Name    string `json:"name"`
			Members []int  `json:"members"`
		} `json:"groups"`
		Series []struct {
			Area []*float64 `json:"area"`
		} `json:"series"`
	}
	decodeToolText(t, *resp, &report)

	if report.Aborted {
		t.Fatal("analysis aborted")
	}
	if report.Frames != 20 {
		t.Errorf("frames: got %d, want 20", report.Frames)
	}
	if report.HalfPeriod != 10 {
		t.Errorf("half_period: got %d, want 10", report.HalfPeriod)
	}
	if len(report.ROIs) != 2 || report.ROIs[0].Label != 1 || report.ROIs[1].Label != 2 {
		t.Fatalf("rois: got %+v", report.ROIs)
	}
	if report.ROIs[0].Skipped {
		t.Error("left ROI holds the subject and must not be skipped")
	}
	if !report.ROIs[1].Skipped {
		t.Error("right ROI is empty and should be skipped")
	}
	if len(report.Groups) != 1 || report.Groups[0].Name != "all" {
		t.Errorf("groups: got %+v", report.Groups)
	}
	if len(report.Series) != 2 || len(report.Series[0].Area) != 20 {
		t.Fatalf("series missing")
	}
	if report.Series[1].Area[0] != nil {
		t.Error("empty ROI area should encode as null")
	}
}

func TestHandleToolsCall_Params(t *testing.T) {
	s := newTestServer()
	resp := toolCall(t, s, "droplet_params", map[string]interface{}{})

	var params map[string]interface{}
	decodeToolText(t, *resp, &params)
	if params["half_period"] != float64(300) {
		t.Errorf("half_period: got %v, want 300", params["half_period"])
	}
}

func TestHandleToolsCall_ClearCache(t *testing.T) {
	dir := writeDropletFrames(t, 6)
	s := newTestServer()

	toolCall(t, s, "droplet_analyze", map[string]interface{}{
		"directory": dir,
		"rois":      []map[string]interface{}{{"x1": 0, "y1": 0, "x2": 60, "y2": 60}},
		"params":    map[string]interface{}{"half_period": 3},
	})
	if s.pipeline.Cache.Len() != 1 {
		t.Fatalf("cache: got %d entries, want 1", s.pipeline.Cache.Len())
	}

	var out struct {
		Cleared int `json:"cleared"`
	}
	decodeToolText(t, *toolCall(t, s, "droplet_clear_cache", map[string]interface{}{}), &out)
	if out.Cleared != 1 {
		t.Errorf("cleared: got %d, want 1", out.Cleared)
	}
	if s.pipeline.Cache.Len() != 0 {
		t.Errorf("cache not empty after clear: %d", s.pipeline.Cache.Len())
	}

	decodeToolText(t, *toolCall(t, s, "droplet_clear_cache", nil), &out)
	if out.Cleared != 0 {
		t.Errorf("second clear: got %d, want 0", out.Cleared)
	}
}

func TestHandleToolsCall_Errors(t *testing.T) {
	dir := writeDropletFrames(t, 3)
	missing := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name     string
		tool     string
		args     interface{}
		wantCode int
	}{
		{"unknown tool", "droplet_nope", map[string]interface{}{}, -32602},
		{"bad argument type", "droplet_sequence_info", map[string]interface{}{"directory": 5}, -32602},
		{"missing directory", "droplet_sequence_info", map[string]interface{}{"directory": missing}, -32000},
		{"invalid parameter", "droplet_analyze", map[string]interface{}{
			"directory": dir,
			"params":    map[string]interface{}{"half_period": 0},
		}, -32602},
		{"unknown parameter", "droplet_analyze", map[string]interface{}{
			"directory": dir,
			"params":    map[string]interface{}{"halfperiod": 10},
		}, -32602},
		{"bad grouping", "droplet_analyze", map[string]interface{}{
			"directory": dir,
			"grouping":  "3-1",
		}, -32602},
		{"bad ignore list", "droplet_analyze", map[string]interface{}{
			"directory": dir,
			"rois":      []map[string]interface{}{{"x1": 0, "y1": 0, "x2": 60, "y2": 60}},
			"ignore":    "4",
		}, -32602},
		{"batch without paths", "droplet_batch", map[string]interface{}{}, -32602},
		{"batch finds nothing", "droplet_batch", map[string]interface{}{"paths": []string{missing}}, -32000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := toolCall(t, newTestServer(), tt.tool, tt.args)
			if resp.Error == nil {
				t.Fatalf("expected error, got result %v", resp.Result)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code: got %d, want %d (%v)", resp.Error.Code, tt.wantCode, resp.Error.Data)
			}
		})
	}
}

func TestHandleToolsCall_AnalyzeCancelled(t *testing.T) {
	dir := writeDropletFrames(t, 10)
	s := newTestServer()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	args, _ := json.Marshal(map[string]interface{}{
		"directory": dir,
		"rois":      []map[string]interface{}{{"x1": 0, "y1": 0, "x2": 60, "y2": 60}},
	})
	result, err := s.executeTool(ctx, "droplet_analyze", args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var report struct {
		Aborted bool `json:"aborted"`
	}
	if err := json.Unmarshal([]byte(mustMarshalJSON(result)), &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !report.Aborted {
		t.Error("cancelled analysis should report aborted")
	}
}

func TestHandleToolsCall_DetectROIs(t *testing.T) {
	dir := t.TempDir()
	for j := 0; j < 2; j++ {
		img := image.NewGray(image.Rect(0, 0, 320, 160))
		for y := 0; y < 160; y++ {
			for x := 0; x < 320; x++ {
				v := uint8(220)
				for _, cx := range []int{80, 240} {
					if dx, dy := x-cx, y-80; dx*dx+dy*dy <= 35*35 {
						v = 40
					}
				}
				img.SetGray(x, y, color.Gray{Y: v})
			}
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("w1a%06d.png", j)))
		if err != nil {
			t.Fatalf("failed to create frame: %v", err)
		}
		if err := png.Encode(f, img); err != nil {
			t.Fatalf("failed to encode frame: %v", err)
		}
		f.Close()
	}

	params := config.Defaults()
	params.Detector.CenterThreshold = 60
	s := New(assay.New(params, nil), "test")

	resp := toolCall(t, s, "droplet_detect_rois", map[string]interface{}{
		"directory":     dir,
		"sample_stride": 1,
		"num_cols":      2,
		"num_rows":      1,
		"include_image": true,
	})

	var det struct {
		ROIs []struct {
			X1    int `json:"x1"`
			Label int `json:"label"`
		} `json:"rois"`
		Sampled int `json:"sampled"`
		Image   *struct {
			Width       int    `json:"width"`
			ImageBase64 string `json:"image_base64"`
		} `json:"image"`
	}
	decodeToolText(t, *resp, &det)

	if det.Sampled != 2 {
		t.Errorf("sampled: got %d, want 2", det.Sampled)
	}
	if len(det.ROIs) != 2 {
		t.Fatalf("rois: got %d, want 2", len(det.ROIs))
	}
	if det.ROIs[0].Label != 1 || det.ROIs[0].X1 >= det.ROIs[1].X1 {
		t.Errorf("rois not in grid order: %+v", det.ROIs)
	}
	if det.Image == nil || det.Image.Width != 320 || det.Image.ImageBase64 == "" {
		t.Errorf("annotated image missing: %+v", det.Image)
	}
}
