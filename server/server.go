// Package server - HTTP matting service.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-matte/common"
	"github.com/nvr-ai/go-matte/images"
	"github.com/nvr-ai/go-matte/inference"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Server serves one Pipeline. Inference is serialized: one request runs the model at a time.
type Server struct {
	pipeline  *inference.Pipeline
	mu        sync.Mutex
	maxUpload int64
	logger    *slog.Logger
}

// New creates a server for pipeline.
//
// Arguments:
//   - pipeline: The matting pipeline; the server does not close its backend.
//   - maxUploadMB: Request body limit in MiB.
//   - logger: Request logger; nil means slog.Default().
//
// Returns:
//   - *Server: The server.
func New(pipeline *inference.Pipeline, maxUploadMB int64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{pipeline: pipeline, maxUpload: maxUploadMB << 20, logger: logger}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery(), s.requestID)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/v1/info", s.InfoHandler)
	r.POST("/v1/matte", s.MatteHandler)
	return r
}

func (s *Server) requestID(c *gin.Context) {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set("request_id", id)
	c.Header(RequestIDHeader, id)

	start := time.Now()
	c.Next()
	s.logger.Info("request",
		"id", id,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration", time.Since(start),
	)
}

// InfoHandler reports the backend and preprocessing configuration.
func (s *Server) InfoHandler(c *gin.Context) {
	b := s.pipeline.Backend
	c.JSON(http.StatusOK, gin.H{
		"backend":     b.Name(),
		"input_name":  b.InputName(),
		"output_name": b.OutputName(),
		"config":      s.pipeline.Config,
	})
}

// MatteHandler accepts an image as the multipart field "image" or as the raw body and returns
// a PNG mask, or a PNG cutout with ?output=cutout.
func (s *Server) MatteHandler(c *gin.Context) {
	output := c.DefaultQuery("output", "mask")
	if output != "mask" && output != "cutout" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown output %q", output)})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)
	data, err := s.readImage(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	img, err := images.Decode(bytes.NewReader(data))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.matte(c.Request.Context(), img)
	if err != nil {
		s.logger.Error("matte failed", "id", c.GetString("request_id"), "error", err)
		c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	var out image.Image = result.Mask
	if output == "cutout" {
		if out, err = s.pipeline.Cutout(img, result.Mask); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Mask-Min", strconv.Itoa(int(result.Stats.Min)))
	c.Header("X-Mask-Max", strconv.Itoa(int(result.Stats.Max)))
	c.Header("X-Mask-Mean", strconv.FormatFloat(result.Stats.Mean, 'f', 3, 64))
	c.Header("X-Inference-Ms", strconv.FormatInt(result.Timings.Inference.Milliseconds(), 10))
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) readImage(c *gin.Context) ([]byte, error) {
	if file, err := c.FormFile("image"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New(`request has no "image" field and an empty body`)
	}
	return data, nil
}

func (s *Server) matte(ctx context.Context, img image.Image) (*inference.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.Matte(ctx, img)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrDecode), errors.Is(err, common.ErrShape):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes(), ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		return nil
	}
}
