// Package server implements the MCP (Model Context Protocol) server for the
// droplet turn assay.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - notifications/cancelled: Cancel a running tools/call
//   - ping: Health check
//
// Tool calls run concurrently with each other and with the request loop.
// Responses may therefore arrive out of order; clients match them by id.
//
// # Available Tools
//
//   - droplet_sequence_info: Frame count and size of a recording
//   - droplet_detect_rois: Find droplets and return padded ROIs
//   - droplet_analyze: Turn counts, choice indices and group rates
//   - droplet_batch: Analyze many recordings, continuing past failures
//   - droplet_params: Default analysis parameters
//   - droplet_clear_cache: Drop cached backgrounds
//
// A cancelled droplet_analyze or droplet_detect_rois call answers with a
// result whose "aborted" field is true.
//
// # Error Handling
//
// Tool errors are returned as JSON-RPC error responses with:
//   - code: -32602 for bad arguments or invalid parameters, -32000 for other failures
//   - message: Human-readable error description
//   - data: The Go error string
//
// A tools/call whose id matches a call that is still running is refused with
// code -32600 and the running call is left untouched.
//
// # Usage
//
//	srv := server.New(assay.New(config.Defaults(), nil), "dev")
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal().Err(err).Send()
//	}
package server
