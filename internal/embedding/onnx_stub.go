//go:build !cgo
// +build !cgo

package embedding

import "errors"

// ONNXEmbedder is unavailable without CGO.
type ONNXEmbedder struct{}

// NewONNXEmbedder reports that local model inference requires a CGO build.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	return nil, errors.New("local model support requires a CGO build with onnxruntime available")
}
