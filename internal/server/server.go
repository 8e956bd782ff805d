package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ironsheep/board-locator-mcp/internal/config"
	"github.com/ironsheep/board-locator-mcp/internal/imaging"
	"github.com/ironsheep/board-locator-mcp/internal/locator"
	"github.com/ironsheep/board-locator-mcp/internal/logger"
)

// ServerName is reported in the initialize handshake.
const ServerName = "board-locator-mcp"

// Version is reported in the initialize handshake. cmd/board-locator
// overrides it with the build version.
var Version = "0.1.0"

// maxCachedImages bounds the photo cache of a long-running server.
const maxCachedImages = 32

// Server handles MCP protocol communication
type Server struct {
	cache            *imaging.ImageCache
	locatorOpts      locator.Options
	magnification    int
	maxMagnification int
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

// New creates a server with the default locator options and magnification.
func New() *Server {
	return &Server{
		cache:            imaging.NewBoundedImageCache(maxCachedImages),
		locatorOpts:      locator.DefaultOptions(),
		magnification:    locator.DefaultMagnification,
		maxMagnification: locator.MaxMagnification,
	}
}

// NewWithConfig creates a server whose tools default to the configured
// magnification and marker count. A zero MaxMagnification keeps
// locator.MaxMagnification.
func NewWithConfig(cfg *config.Config) *Server {
	s := New()
	s.locatorOpts = cfg.LocatorOptions()
	s.magnification = cfg.Magnification
	if cfg.MaxMagnification > 0 {
		s.maxMagnification = cfg.MaxMagnification
	}
	return s
}

// Run serves MCP over stdin and stdout until stdin closes.
func (s *Server) Run() error {
	return s.Serve(os.Stdin, os.Stdout)
}

// Serve reads one JSON-RPC request per line from r and writes responses to
// w. Lines that do not parse are logged and skipped.
func (s *Server) Serve(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logger.WithError(err).Warn("Failed to parse request")
			continue
		}

		resp := s.handleRequest(&req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				logger.WithError(err).Error("Failed to encode response")
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(req *MCPRequest) *MCPResponse {
	logger.WithField("method", req.Method).Debug("Handling request")

	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
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
				"name":    ServerName,
				"version": Version,
			},
		},
	}
}
