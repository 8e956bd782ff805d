package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/board-locator-mcp/internal/calibration"
	"github.com/ironsheep/board-locator-mcp/internal/detection"
	apperrors "github.com/ironsheep/board-locator-mcp/internal/errors"
	"github.com/ironsheep/board-locator-mcp/internal/imaging"
	"github.com/ironsheep/board-locator-mcp/internal/locator"
	"github.com/ironsheep/board-locator-mcp/internal/logger"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "marker_locate").
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
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := recoverTool(params.Name, func() (interface{}, error) {
		return s.executeTool(params.Name, params.Arguments)
	})
	if err != nil {
		logger.WithError(err).WithField("tool", params.Name).Warn("Tool execution failed")
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
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies server defaults for optional parameters
//  3. Loads the photo from the cache
//  4. Runs the calibration or locator pipeline
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "board_detect_fiducials":
		return s.handleBoardDetectFiducials(args)
	case "board_rectify":
		return s.handleBoardRectify(args)
	case "marker_locate":
		return s.handleMarkerLocate(args)
	case "shape_classify":
		return s.handleShapeClassify(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// recoverTool runs one tool call and turns a panic into an error, so a bad
// call fails alone instead of ending the stdio session.
func recoverTool(name string, fn func() (interface{}, error)) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("tool", name).WithField("panic", fmt.Sprint(r)).Error("Tool panicked")
			result, err = nil, fmt.Errorf("tool %s failed unexpectedly: %v", name, r)
		}
	}()
	return fn()
}

// loadImage reads a photo through the cache. A missing file is reported as a
// not-found error.
func (s *Server) loadImage(path string) (image.Image, error) {
	img, err := s.cache.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("image %s not found", path), err)
	}
	return img, err
}

// resolveMagnification applies the server default to a missing
// magnification and rejects values outside 1..maxMagnification.
func (s *Server) resolveMagnification(mp int) (int, error) {
	if mp == 0 {
		return s.magnification, nil
	}
	if mp < 1 || mp > s.maxMagnification {
		return 0, fmt.Errorf("magnification must be between 1 and %d, got %d", s.maxMagnification, mp)
	}
	return mp, nil
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
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// unmarshalArgs decodes tool arguments, treating missing arguments as an
// empty object.
func unmarshalArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Image Information ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	if _, err := s.loadImage(a.Path); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// === Board Calibration ===

// Omitted options keep the server defaults; zero is not a valid setting.
type boardDetectFiducialsArgs struct {
	Path          string `json:"path"`
	BlurSize      *int   `json:"blur_size"`
	GrayThreshold *int   `json:"gray_threshold"`
}

// FiducialsResult lists the circles found on a board photo.
type FiducialsResult struct {
	Count           int                        `json:"count"`
	Fiducials       []detection.CircleEstimate `json:"fiducials"`
	Corners         *calibration.CornerSet     `json:"corners,omitempty"`
	RequiredMarkers int                        `json:"required_markers"`
	Options         calibration.Options        `json:"options"`
}

func (s *Server) handleBoardDetectFiducials(args json.RawMessage) (interface{}, error) {
	var a boardDetectFiducialsArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	opts := s.locatorOpts.Calibration
	if a.BlurSize != nil {
		if *a.BlurSize < 1 {
			return nil, fmt.Errorf("blur_size must be >= 1, got %d", *a.BlurSize)
		}
		opts.BlurSize = *a.BlurSize
	}
	if a.GrayThreshold != nil {
		if *a.GrayThreshold < 1 || *a.GrayThreshold > 255 {
			return nil, fmt.Errorf("gray_threshold must be within 1-255, got %d", *a.GrayThreshold)
		}
		opts.GrayThreshold = uint8(*a.GrayThreshold)
	}

	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}
	cal := calibration.New(opts)

	circles, err := cal.DetectFiducials(img)
	if err != nil {
		return nil, err
	}

	result := &FiducialsResult{
		Count:           len(circles),
		Fiducials:       circles,
		RequiredMarkers: cal.Options().RequiredMarkers,
		Options:         cal.Options(),
	}
	if len(circles) >= 4 {
		centers := make([]imaging.PointF, len(circles))
		for i, c := range circles {
			centers[i] = c.Center
		}
		if corners, err := calibration.SelectCorners(centers); err == nil {
			result.Corners = &corners
		}
	}
	return result, nil
}

type boardRectifyArgs struct {
	Path          string `json:"path"`
	Magnification int    `json:"magnification"`
	GridUnits     int    `json:"grid_units"`
	GridColor     string `json:"grid_color"`
}

// RectifyResult carries a rectified board image.
type RectifyResult struct {
	Rectified     bool                   `json:"rectified"`
	Width         int                    `json:"width"`
	Height        int                    `json:"height"`
	Magnification int                    `json:"magnification"`
	Fiducials     int                    `json:"fiducials"`
	Corners       *calibration.CornerSet `json:"corners,omitempty"`
	GridUnits     int                    `json:"grid_units,omitempty"`
	ImageBase64   string                 `json:"image_base64"`
}

func (s *Server) handleBoardRectify(args json.RawMessage) (interface{}, error) {
	var a boardRectifyArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	mp, err := s.resolveMagnification(a.Magnification)
	if err != nil {
		return nil, err
	}
	a.Magnification = mp
	if a.GridUnits < 0 {
		return nil, fmt.Errorf("grid_units must be >= 0, got %d", a.GridUnits)
	}
	gridColor := imaging.DefaultGridColor
	if a.GridColor != "" {
		c, err := colorful.Hex(a.GridColor)
		if err != nil {
			return nil, fmt.Errorf("invalid grid_color %q: %w", a.GridColor, err)
		}
		gridColor = c
	}

	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	cal, err := calibration.New(s.locatorOpts.Calibration).Calibrate(img, a.Magnification)
	if err != nil {
		return nil, err
	}

	out := cal.Image
	// a grid only means something on a rectified board
	if a.GridUnits > 0 && cal.Rectified {
		out = imaging.DrawBoardGrid(cal.Image, a.Magnification, a.GridUnits, gridColor)
	}
	encoded, err := imaging.EncodePNGBase64(out)
	if err != nil {
		return nil, err
	}

	bounds := cal.Image.Bounds()
	return &RectifyResult{
		Rectified:     cal.Rectified,
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Magnification: a.Magnification,
		Fiducials:     len(cal.Candidates),
		Corners:       cal.Corners,
		GridUnits:     a.GridUnits,
		ImageBase64:   encoded,
	}, nil
}

// === Marker Location ===

type markerLocateArgs struct {
	Path          string `json:"path"`
	Magnification int    `json:"magnification"`
	Mode          string `json:"mode"`
	LowerColor    string `json:"lower_color"`
	UpperColor    string `json:"upper_color"`
}

// MarkerLocateResult lists markers in board units.
type MarkerLocateResult struct {
	Positions     []locator.Position `json:"positions"`
	Count         int                `json:"count"`
	Rectified     bool               `json:"rectified"`
	Magnification int                `json:"magnification"`
	Mode          locator.Mode       `json:"mode"`
	ColorRange    string             `json:"color_range,omitempty"`
}

func (s *Server) handleMarkerLocate(args json.RawMessage) (interface{}, error) {
	var a markerLocateArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}
	mp, err := s.resolveMagnification(a.Magnification)
	if err != nil {
		return nil, err
	}
	a.Magnification = mp

	opts := s.locatorOpts
	switch locator.Mode(a.Mode) {
	case "":
	case locator.SegmentColorRange, locator.SegmentRedDominance:
		opts.Mode = locator.Mode(a.Mode)
	default:
		return nil, fmt.Errorf("unknown mode %q (use color_range or red_dominance)", a.Mode)
	}

	switch {
	case a.LowerColor != "" && a.UpperColor != "":
		cr, err := imaging.ParseColorRange(a.LowerColor, a.UpperColor)
		if err != nil {
			return nil, err
		}
		opts.ColorRange = cr
	case a.LowerColor != "" || a.UpperColor != "":
		return nil, fmt.Errorf("lower_color and upper_color must be given together")
	}

	img, err := s.loadImage(a.Path)
	if err != nil {
		return nil, err
	}

	loc := locator.New(opts)
	d, err := loc.Detect(img, a.Magnification)
	if err != nil {
		return nil, err
	}

	result := &MarkerLocateResult{
		Positions:     d.Positions,
		Count:         len(d.Positions),
		Rectified:     d.Calibration.Rectified,
		Magnification: a.Magnification,
		Mode:          loc.Options().Mode,
	}
	if result.Mode == locator.SegmentColorRange {
		result.ColorRange = loc.Options().ColorRange.String()
	}
	return result, nil
}

// === Shape Classification ===

type shapeClassifyArgs struct {
	Points          []imaging.Point `json:"points"`
	CenterThreshold *float64        `json:"center_threshold"`
	SingleThreshold *float64        `json:"single_threshold"`
}

// ShapeClassifyResult reports the circle test for one contour.
type ShapeClassifyResult struct {
	IsCircle   bool           `json:"is_circle"`
	Center     imaging.PointF `json:"center"`
	Radius     float64        `json:"radius"`
	Confidence float64        `json:"confidence"`
	PointCount int            `json:"point_count"`
}

func (s *Server) handleShapeClassify(args json.RawMessage) (interface{}, error) {
	var a shapeClassifyArgs
	if err := unmarshalArgs(args, &a); err != nil {
		return nil, err
	}

	centerTh := detection.DefaultCenterThreshold
	if a.CenterThreshold != nil {
		centerTh = *a.CenterThreshold
	}
	singleTh := detection.DefaultSingleThreshold
	if a.SingleThreshold != nil {
		singleTh = *a.SingleThreshold
	}
	if centerTh < 0 || singleTh < 0 {
		return nil, fmt.Errorf("thresholds must be >= 0")
	}

	ok, est := detection.Classify(imaging.Contour(a.Points), centerTh, singleTh)
	return &ShapeClassifyResult{
		IsCircle:   ok,
		Center:     est.Center,
		Radius:     est.Radius,
		Confidence: est.Confidence,
		PointCount: len(a.Points),
	}, nil
}
