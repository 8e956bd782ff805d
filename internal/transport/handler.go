package transport

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/board-locator-mcp/internal/calibration"
	"github.com/ironsheep/board-locator-mcp/internal/config"
	apperrors "github.com/ironsheep/board-locator-mcp/internal/errors"
	"github.com/ironsheep/board-locator-mcp/internal/imaging"
	"github.com/ironsheep/board-locator-mcp/internal/locator"
	"github.com/ironsheep/board-locator-mcp/internal/logger"
)

// RectifiedHeader reports on /api/v1/rectify whether the returned PNG was
// perspective-corrected ("true") or is the uploaded photo ("false").
const RectifiedHeader = "X-Board-Rectified"

// imageField is the multipart form field carrying the photo.
const imageField = "image"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// MarkersResponse is the body of a successful /api/v1/markers request.
type MarkersResponse struct {
	Positions     []locator.Position `json:"positions"`
	Count         int                `json:"count"`
	Rectified     bool               `json:"rectified"`
	Magnification int                `json:"magnification"`
}

type locateQuery struct {
	Magnification int    `form:"magnification" binding:"omitempty,min=1"`
	Mode          string `form:"mode" binding:"omitempty,oneof=color_range red_dominance"`
}

// NewHandler builds the HTTP API around the locator pipeline. opts are the
// locator defaults; cfg supplies the magnification, timeout and body limit.
func NewHandler(cfg *config.Config, opts locator.Options) http.Handler {
	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)

	v1 := r.Group("/api/v1")
	v1.POST("/markers", locateMarkers(cfg, opts))
	v1.POST("/rectify", rectifyBoard(cfg, opts))

	return r
}

func locateMarkers(cfg *config.Config, opts locator.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing marker request")

		q, ok := bindLocateQuery(c, cfg)
		if !ok {
			return
		}
		reqOpts := opts
		if q.Mode != "" {
			reqOpts.Mode = locator.Mode(q.Mode)
		}

		img, ok := readImage(c)
		if !ok {
			return
		}

		var d *locator.Detection
		err := runWithContext(ctx, func() (err error) {
			d, err = locator.New(reqOpts).Detect(img, q.Magnification)
			return err
		})
		if err != nil {
			abortWithPipelineError(c, "failed to locate markers", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"markers":            len(d.Positions),
			"rectified":          d.Calibration.Rectified,
			"magnification":      q.Magnification,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Info("Marker request completed successfully")

		c.JSON(http.StatusOK, MarkersResponse{
			Positions:     d.Positions,
			Count:         len(d.Positions),
			Rectified:     d.Calibration.Rectified,
			Magnification: q.Magnification,
		})
	}
}

func rectifyBoard(cfg *config.Config, opts locator.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		q, ok := bindLocateQuery(c, cfg)
		if !ok {
			return
		}

		img, ok := readImage(c)
		if !ok {
			return
		}

		var result *calibration.Result
		err := runWithContext(ctx, func() (err error) {
			result, err = calibration.New(opts.Calibration).Calibrate(img, q.Magnification)
			return err
		})
		if err != nil {
			abortWithPipelineError(c, "failed to rectify board", err)
			return
		}

		data, err := imaging.EncodePNG(result.Image)
		if err != nil {
			respondError(c, http.StatusInternalServerError, "failed to encode image", err)
			return
		}

		c.Header(RectifiedHeader, strconv.FormatBool(result.Rectified))
		c.Data(http.StatusOK, "image/png", data)
	}
}

// bindLocateQuery reads the query shared by both pipeline routes. A missing
// magnification takes the configured default; one above the configured
// maximum is rejected before any pixels are read.
func bindLocateQuery(c *gin.Context, cfg *config.Config) (locateQuery, bool) {
	var q locateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "invalid query", err)
		return q, false
	}

	maxMP := cfg.MaxMagnification
	if maxMP <= 0 {
		maxMP = locator.MaxMagnification
	}
	if q.Magnification > maxMP {
		appErr := apperrors.NewValidationError(
			fmt.Sprintf("magnification must be at most %d, got %d", maxMP, q.Magnification),
			locator.ErrInvalidMagnification)
		respondError(c, appErr.StatusCode, "invalid query", appErr)
		return q, false
	}
	if q.Magnification == 0 {
		q.Magnification = cfg.Magnification
	}
	return q, true
}

// readImage decodes the uploaded photo, responding with an error and
// returning false when it is missing, too large or undecodable.
func readImage(c *gin.Context) (image.Image, bool) {
	fh, err := c.FormFile(imageField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "image too large", err)
		} else {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("missing %q form file", imageField), err)
		}
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to open upload", err)
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, http.StatusBadRequest, "failed to read upload", err)
		return nil, false
	}

	img, format, err := imaging.DecodeBytes(data)
	if err != nil {
		appErr := apperrors.NewValidationError("undecodable image", err)
		respondError(c, appErr.StatusCode, "invalid image", appErr)
		return nil, false
	}

	logger.WithFields(logrus.Fields{
		"format": format,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	}).Debug("Decoded upload")

	return img, true
}

// runWithContext runs fn and waits for it or for ctx, whichever ends first.
// The pipeline cannot be interrupted, so a timed-out fn finishes in the
// background and its result is dropped. A panic in fn is returned as an
// error; gin's recovery does not reach this goroutine.
func runWithContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("pipeline panic: %v", r)
			}
		}()
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "available",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// errorHandler writes the response for an error a handler recorded with
// c.Error. The error's Meta, when a string, is the response message.
func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		last := c.Errors.Last()
		message, _ := last.Meta.(string)
		if message == "" {
			message = "request processing failed"
		}
		respondError(c, apperrors.GetStatusCode(last.Err), message, last.Err)
	}
}

// abortWithPipelineError records a calibration or locator failure for
// errorHandler and stops the chain.
func abortWithPipelineError(c *gin.Context, message string, err error) {
	_ = c.Error(pipelineError(message, err)).SetMeta(message)
	c.Abort()
}

// pipelineError classifies a pipeline failure. An expired or canceled request
// context is a timeout; everything else goes through FromPipeline.
func pipelineError(message string, err error) *apperrors.AppError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewTimeoutError("processing timeout", err)
	}
	return apperrors.FromPipeline(message, err)
}

func respondError(c *gin.Context, code int, message string, err error) {
	entry := logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if code < http.StatusInternalServerError {
		entry.Warn("Request rejected")
	} else {
		entry.Error("Request failed")
	}

	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
