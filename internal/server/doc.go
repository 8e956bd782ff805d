// Package server implements the MCP (Model Context Protocol) server for the
// board locator.
//
// The server exposes the calibration and marker-location pipeline as MCP
// tools so that an assistant can turn a photo of a game board into marker
// positions measured in board units.
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
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load a photo and report its metadata
//   - board_detect_fiducials: List the circular fiducials and selected corners
//   - board_rectify: Return the perspective-corrected board as base64 PNG
//   - marker_locate: Report marker positions in board units
//   - shape_classify: Run the circle test on a list of contour points
//
// # Image Caching
//
// Decoded photos are cached by path, at most 32 at a time with the oldest
// evicted first. Rectified boards are never cached.
//
// # Logging
//
// Diagnostics go through internal/logger as JSON on stderr. Stdout carries
// nothing but protocol responses.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.NewWithConfig(cfg)
//	if err := srv.Run(); err != nil {
//	    logger.WithError(err).Fatal("server stopped")
//	}
package server
