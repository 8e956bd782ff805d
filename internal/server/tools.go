package server

import "github.com/ironsheep/board-locator-mcp/internal/locator"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// pathProperty is the schema shared by every tool that reads an image file.
var pathProperty = map[string]interface{}{
	"type":        "string",
	"description": "Absolute path to the image file",
}

// magnificationProperty is the schema of the pixels-per-board-unit factor.
var magnificationProperty = map[string]interface{}{
	"type":        "integer",
	"description": "Rectified pixels per board unit. Defaults to the server setting (6 unless configured); the server may lower the maximum.",
	"minimum":     1,
	"maximum":     locator.MaxMagnification,
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The decoded image is cached for subsequent board tools.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},

		// Board Calibration
		{
			Name:        "board_detect_fiducials",
			Description: "Find the circular fiducials on a board photo. Returns each circle's center, radius and confidence, plus the four selected board corners when at least four circles are found.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"blur_size": map[string]interface{}{
						"type":        "integer",
						"description": "Box-blur kernel side in pixels, close to the fiducial diameter in the photo. Default 30",
						"default":     30,
						"minimum":     1,
					},
					"gray_threshold": map[string]interface{}{
						"type":        "integer",
						"description": "Binarization cutoff (1-255); brighter pixels are foreground. Default 140",
						"default":     140,
						"minimum":     1,
						"maximum":     255,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "board_rectify",
			Description: "Correct the perspective of a board photo so the board fills a square of 65 board units. Returns the rectified image as base64-encoded PNG. When too few fiducials are found the input photo is returned with rectified=false.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":          pathProperty,
					"magnification": magnificationProperty,
					"grid_units": map[string]interface{}{
						"type":        "integer",
						"description": "Rule the rectified board every N board units and label intersections with board coordinates. 0 (default) draws no grid",
						"minimum":     0,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid line color as hex (e.g., '#00c8ff')",
					},
				},
				"required": []string{"path"},
			},
		},

		// Marker Location
		{
			Name:        "marker_locate",
			Description: "Locate colored markers on a board photo and return their positions in board units, independent of camera angle and distance.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":          pathProperty,
					"magnification": magnificationProperty,
					"mode": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"color_range", "red_dominance"},
						"description": "Marker segmentation. color_range keeps pixels between lower_color and upper_color; red_dominance keeps pixels whose red exceeds green plus blue. Default color_range",
						"default":     "color_range",
					},
					"lower_color": map[string]interface{}{
						"type":        "string",
						"description": "Inclusive lower RGB bound as hex (e.g., '#b20000'). Requires upper_color",
					},
					"upper_color": map[string]interface{}{
						"type":        "string",
						"description": "Inclusive upper RGB bound as hex (e.g., '#ff9694'). Requires lower_color",
					},
				},
				"required": []string{"path"},
			},
		},

		// Shape Classification
		{
			Name:        "shape_classify",
			Description: "Decide whether an ordered list of contour points approximates a circle, and estimate its center, radius and confidence.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"points": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"x": map[string]interface{}{"type": "integer"},
								"y": map[string]interface{}{"type": "integer"},
							},
							"required": []string{"x", "y"},
						},
						"description": "Contour points in boundary order",
					},
					"center_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Fraction of the radius a point may stray before it counts as off the circle. Default 0.1",
						"default":     0.1,
					},
					"single_threshold": map[string]interface{}{
						"type":        "number",
						"description": "Fraction of off-circle points tolerated. Default 0.2",
						"default":     0.2,
					},
				},
				"required": []string{"points"},
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
