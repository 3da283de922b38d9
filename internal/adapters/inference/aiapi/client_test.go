package aiapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"breast-screening-service/internal/adapters/inference/aiapi"
)

func newStubServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "bad multipart", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "missing file field", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename == "" {
			http.Error(w, "missing filename", http.StatusBadRequest)
			return
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"class":        "malignant",
			"confidence":   0.93,
			"gradcam_path": "static/gradcam/heat_1.png",
		})
	})
	mux.HandleFunc("GET /gambar_api/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gambar_api/heat_1.png" {
			_, _ = w.Write([]byte("heatmap-bytes"))
			return
		}
		http.NotFound(w, r)
	})

	return httptest.NewServer(mux)
}

func TestPredict(t *testing.T) {
	ts := newStubServer(t)
	defer ts.Close()

	client, err := aiapi.NewClient(aiapi.Config{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	pred, err := client.Predict(context.Background(), []byte("image-bytes"), "scan.png")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if pred.Class != "malignant" {
		t.Fatalf("unexpected class %q", pred.Class)
	}
	if pred.Confidence != 0.93 {
		t.Fatalf("unexpected confidence %v", pred.Confidence)
	}
	if pred.GradCamPath != "static/gradcam/heat_1.png" {
		t.Fatalf("unexpected gradcam path %q", pred.GradCamPath)
	}
}

func TestPredict_EmptyImage(t *testing.T) {
	client, err := aiapi.NewClient(aiapi.Config{BaseURL: "http://inference.local"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Predict(context.Background(), nil, "scan.png"); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestPredict_UpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer ts.Close()

	client, err := aiapi.NewClient(aiapi.Config{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Predict(context.Background(), []byte("x"), "scan.png"); err == nil {
		t.Fatal("expected upstream error")
	}
}

func TestFetchArtifact(t *testing.T) {
	ts := newStubServer(t)
	defer ts.Close()

	client, err := aiapi.NewClient(aiapi.Config{BaseURL: ts.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	data, err := client.FetchArtifact(context.Background(), "heat_1.png")
	if err != nil {
		t.Fatalf("fetch artifact: %v", err)
	}
	if string(data) != "heatmap-bytes" {
		t.Fatalf("unexpected artifact %q", data)
	}

	if _, err := client.FetchArtifact(context.Background(), "missing.png"); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	if _, err := aiapi.NewClient(aiapi.Config{}); err == nil {
		t.Fatal("expected error without base url")
	}
}
