// Package aiapi habla con el servicio de inferencia (clasificador +
// Grad-CAM) expuesto por el equipo de ML.
package aiapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"breast-screening-service/internal/platform/httpclient"
	"breast-screening-service/internal/ports/inference"
)

var (
	ErrNotConfigured = errors.New("inference client not configured")
	ErrUpstream      = errors.New("inference upstream error")
)

type Config struct {
	BaseURL string
	Timeout time.Duration

	// MaxArtifactBytes limita la descarga de heatmaps. 0 => default del
	// httpclient (32MB).
	MaxArtifactBytes int64
}

type Client struct {
	http             *httpclient.Client
	maxArtifactBytes int64
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		// La inferencia tarda: el modelo corre en CPU en dev.
		timeout = 60 * time.Second
	}

	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	return &Client{
		http:             hc,
		maxArtifactBytes: cfg.MaxArtifactBytes,
	}, nil
}

type predictResponse struct {
	Class       string  `json:"class"`
	Confidence  float64 `json:"confidence"`
	GradCamPath string  `json:"gradcam_path"`
}

// Predict sube la imagen como multipart (campo "file") a POST /predict.
func (c *Client) Predict(ctx context.Context, image []byte, fileName string) (inference.Prediction, error) {
	if len(image) == 0 {
		return inference.Prediction{}, fmt.Errorf("%w: empty image", ErrUpstream)
	}
	if strings.TrimSpace(fileName) == "" {
		fileName = "upload.png"
	}

	var out predictResponse
	if err := c.http.PostFileJSON(ctx, "/predict", "file", fileName, image, &out); err != nil {
		return inference.Prediction{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if strings.TrimSpace(out.Class) == "" {
		return inference.Prediction{}, fmt.Errorf("%w: response missing class", ErrUpstream)
	}

	return inference.Prediction{
		Class:       out.Class,
		Confidence:  out.Confidence,
		GradCamPath: out.GradCamPath,
	}, nil
}

// FetchArtifact descarga un heatmap por nombre de archivo desde
// GET /gambar_api/{filename}.
func (c *Client) FetchArtifact(ctx context.Context, fileName string) ([]byte, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, fmt.Errorf("%w: empty artifact name", ErrUpstream)
	}

	data, err := c.http.GetBytes(ctx, "/gambar_api/"+url.PathEscape(fileName), c.maxArtifactBytes)
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == 404 {
			return nil, fmt.Errorf("%w: artifact not found: %s", ErrUpstream, fileName)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return data, nil
}
