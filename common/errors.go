// Package common - Error taxonomy shared by every stage of the matting pipeline.
package common

import "errors"

// Sentinel errors. Callers match them with errors.Is; producers wrap them with context.
var (
	// ErrConfig indicates a malformed or missing preprocessing/runtime configuration.
	ErrConfig = errors.New("config error")
	// ErrDecode indicates image bytes that could not be decoded.
	ErrDecode = errors.New("decode error")
	// ErrFetch indicates a network failure while fetching an image, model or config.
	ErrFetch = errors.New("fetch error")
	// ErrShape indicates a tensor or raster whose rank or dimensions are unexpected.
	ErrShape = errors.New("shape error")
	// ErrProvider indicates an accelerated execution provider that could not be initialized.
	// It is the only error recovered automatically (by falling back to CPU).
	ErrProvider = errors.New("provider error")
	// ErrNoSamples indicates an empty calibration set.
	ErrNoSamples = errors.New("no calibration samples")
	// ErrNotFound indicates a missing local file.
	ErrNotFound = errors.New("not found")
	// ErrInvalidModel indicates an ONNX model that fails structural validation.
	ErrInvalidModel = errors.New("invalid model")
)
