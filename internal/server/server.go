package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/droplet-assay-mcp/internal/assay"
)

// Server handles MCP protocol communication
type Server struct {
	pipeline *assay.Pipeline
	version  string

	// writeMu serialises responses from concurrent tool calls.
	writeMu sync.Mutex
	enc     *json.Encoder

	callsMu sync.Mutex
	calls   map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// cancelledParams are the params of notifications/cancelled.
type cancelledParams struct {
	RequestID interface{} `json:"requestId"`
	Reason    string      `json:"reason,omitempty"`
}

// New creates a server that runs analyses on p.
func New(p *assay.Pipeline, version string) *Server {
	return &Server{
		pipeline: p,
		version:  version,
		calls:    make(map[string]context.CancelFunc),
	}
}

// Run serves requests from stdin and writes responses to stdout.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC message per line from r until EOF and writes
// responses to w.
//
// Each tools/call runs in its own goroutine under a context derived from ctx,
// so a long analysis does not block pings or other calls, and
// notifications/cancelled can cancel it. Serve waits for running calls
// before it returns.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	s.enc = json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			log.Warn().
				Str("evt.name", "server.bad_request").
				Err(err).
				Msg("failed to parse request")
			continue
		}
		s.dispatch(ctx, &req)
	}

	s.wg.Wait()

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

func (s *Server) dispatch(ctx context.Context, req *MCPRequest) {
	if req.Method != "tools/call" || req.ID == nil {
		if resp := s.handleRequest(ctx, req); resp != nil {
			s.write(resp)
		}
		return
	}

	key := requestKey(req.ID)
	callCtx, cancel := context.WithCancel(ctx)
	s.callsMu.Lock()
	if _, busy := s.calls[key]; busy {
		s.callsMu.Unlock()
		cancel()
		log.Warn().
			Str("evt.name", "server.duplicate_id").
			Interface("id", req.ID).
			Msg("request id already in flight")
		s.write(s.errorResponse(req.ID, -32600, "Invalid Request", "request id is already in use by a running call"))
		return
	}
	s.calls[key] = cancel
	s.callsMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.callsMu.Lock()
			delete(s.calls, key)
			s.callsMu.Unlock()
			cancel()
		}()
		s.write(s.handleRequest(callCtx, req))
	}()
}

func (s *Server) write(resp *MCPResponse) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.enc.Encode(resp); err != nil {
		log.Error().
			Str("evt.name", "server.write_failed").
			Err(err).
			Msg("failed to encode response")
	}
}

// requestKey normalises a JSON-RPC id for use as a map key.
func requestKey(id interface{}) string {
	return fmt.Sprintf("%T:%v", id, id)
}

// cancel stops the tool call registered under id. It reports whether one
// was running.
func (s *Server) cancel(id interface{}) bool {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	cancel, ok := s.calls[requestKey(id)]
	if ok {
		cancel()
	}
	return ok
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "notifications/cancelled":
		var p cancelledParams
		if err := json.Unmarshal(req.Params, &p); err == nil {
			found := s.cancel(p.RequestID)
			log.Info().
				Str("evt.name", "server.call_cancelled").
				Interface("request_id", p.RequestID).
				Str("reason", p.Reason).
				Bool("running", found).
				Msg("cancellation requested")
		}
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		if req.ID == nil {
			// unknown notification
			return nil
		}
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "droplet-assay-mcp",
				"version": s.version,
			},
		},
	}
}
