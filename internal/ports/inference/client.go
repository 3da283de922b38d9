package inference

import "context"

// Prediction es la respuesta del endpoint de inferencia.
// GradCamPath puede venir vacío si el modelo no generó visualización.
type Prediction struct {
	Class       string
	Confidence  float64 // en [0,1]
	GradCamPath string
}

// Client habla con el servicio de inferencia remoto.
// Sin retries ni política de timeout propia: el caller decide qué hacer
// ante un fallo (ingest degrada, re-análisis aborta).
type Client interface {
	// Predict envía la imagen y devuelve clasificación + confianza.
	Predict(ctx context.Context, image []byte, fileName string) (Prediction, error)

	// FetchArtifact baja la visualización (GradCAM) generada por el servicio,
	// identificada por el nombre de archivo que vino en GradCamPath.
	FetchArtifact(ctx context.Context, fileName string) ([]byte, error)
}
