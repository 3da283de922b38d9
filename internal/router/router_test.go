package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"breast-screening-service/internal/adapters/inference/aiapi"
	"breast-screening-service/internal/router"
)

// newInferenceStub simula el servicio de ML: clasifica todo como malignant
// y sirve un heatmap fijo.
func newInferenceStub(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"class":        "malignant",
			"confidence":   0.93,
			"gradcam_path": "static/gradcam/heat_e2e.png",
		})
	})
	mux.HandleFunc("GET /gambar_api/heat_e2e.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("heatmap-bytes"))
	})

	return httptest.NewServer(mux)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	inf := newInferenceStub(t)
	t.Cleanup(inf.Close)

	ai, err := aiapi.NewClient(aiapi.Config{BaseURL: inf.URL})
	if err != nil {
		t.Fatalf("aiapi client: %v", err)
	}

	ts := httptest.NewServer(router.NewRouter(router.Options{
		AuthVerifier: nil, // modo dev: X-Debug-*
		AI:           ai,
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTP_EndToEnd_ScreeningFlow(t *testing.T) {
	ts := newTestServer(t)

	admin := debugUser{ID: "admin-1", Role: "admin", Email: "admin@clinic.test"}

	// 1) Admin da de alta un doctor
	var doctor struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	{
		st, body := doReq(t, ts.URL, "POST", "/doctors", admin, map[string]any{
			"name":  "Dr. Sari",
			"email": "sari@clinic.test",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 create doctor, got %d body=%s", st, string(body))
		}
		_ = json.Unmarshal(body, &doctor)
		if doctor.ID == "" {
			t.Fatalf("create doctor: missing id body=%s", string(body))
		}
	}

	doc := debugUser{ID: "ext-sari", Role: "doctor", Email: doctor.Email}

	// 2) Doctor NO puede gestionar doctores
	{
		st, _ := doReq(t, ts.URL, "GET", "/doctors/", doc, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 list doctors as doctor, got %d", st)
		}
	}

	// 3) Doctor registra una paciente
	var patient struct {
		ID string `json:"id"`
	}
	{
		st, body := doReq(t, ts.URL, "POST", "/patients/", doc, map[string]any{
			"name":  "Ana Gomez",
			"email": "ana@example.test",
			"phone": "555-1234",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 create patient, got %d body=%s", st, string(body))
		}
		_ = json.Unmarshal(body, &patient)
		if patient.ID == "" {
			t.Fatalf("create patient: missing id body=%s", string(body))
		}
	}

	// 4) Sin rol clínico no se puede subir imagen
	{
		st, _ := uploadImage(t, ts.URL, "/patients/"+patient.ID+"/records", debugUser{ID: "rando-1"}, "scan.png", []byte("img"))
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 upload without clinical role, got %d", st)
		}
	}

	// 5) Doctor sube la imagen: ingest completo
	var ingested struct {
		Record struct {
			ID               string  `json:"id"`
			Seq              int     `json:"seq"`
			ValidationStatus string  `json:"validation_status"`
			AIDiagnosis      string  `json:"ai_diagnosis"`
			AIGradCamPath    *string `json:"ai_gradcam_path"`
		} `json:"record"`
		Warnings []string `json:"warnings"`
	}
	{
		st, body := uploadImage(t, ts.URL, "/patients/"+patient.ID+"/records", doc, "scan.png", []byte("image-bytes"))
		if st != http.StatusCreated {
			t.Fatalf("expected 201 upload, got %d body=%s", st, string(body))
		}
		_ = json.Unmarshal(body, &ingested)
		if ingested.Record.ValidationStatus != "PENDING" {
			t.Fatalf("expected PENDING, got %s body=%s", ingested.Record.ValidationStatus, string(body))
		}
		if ingested.Record.Seq != 1 {
			t.Fatalf("expected seq 1, got %d", ingested.Record.Seq)
		}
		if !bytes.Contains([]byte(ingested.Record.AIDiagnosis), []byte("malignant")) {
			t.Fatalf("unexpected ai diagnosis %q", ingested.Record.AIDiagnosis)
		}
		if ingested.Record.AIGradCamPath == nil || *ingested.Record.AIGradCamPath != "gradcam/heat_e2e.png" {
			t.Fatalf("unexpected gradcam path %v", ingested.Record.AIGradCamPath)
		}
		if len(ingested.Warnings) != 0 {
			t.Fatalf("expected clean pipeline, warnings=%v", ingested.Warnings)
		}
	}

	// 6) Detalle de la paciente trae el historial
	{
		st, body := doReq(t, ts.URL, "GET", "/patients/"+patient.ID, doc, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 patient detail, got %d body=%s", st, string(body))
		}
		var detail struct {
			Review  string `json:"review"`
			Records []struct {
				ID string `json:"id"`
			} `json:"records"`
		}
		_ = json.Unmarshal(body, &detail)
		if detail.Review != "PENDING" {
			t.Fatalf("expected review PENDING, got %q", detail.Review)
		}
		if len(detail.Records) != 1 {
			t.Fatalf("expected 1 record in history, got %d", len(detail.Records))
		}
	}

	// 7) Doctor revisa: se inserta una revisión nueva
	var reviewed struct {
		Record struct {
			ID               string `json:"id"`
			Seq              int    `json:"seq"`
			ValidationStatus string `json:"validation_status"`
			DoctorDiagnosis  string `json:"doctor_diagnosis"`
			IsAIAccurate     *bool  `json:"is_ai_accurate"`
		} `json:"record"`
	}
	{
		st, body := doReq(t, ts.URL, "POST", "/records/"+ingested.Record.ID+"/review", doc, map[string]any{
			"agreement": "agree",
			"note":      "clear margins",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 review, got %d body=%s", st, string(body))
		}
		_ = json.Unmarshal(body, &reviewed)
		if reviewed.Record.ID == ingested.Record.ID {
			t.Fatal("review must create a new record")
		}
		if reviewed.Record.Seq != 2 || reviewed.Record.ValidationStatus != "VALIDATED" {
			t.Fatalf("unexpected review record: %+v", reviewed.Record)
		}
		if reviewed.Record.DoctorDiagnosis != "Agreed with AI" {
			t.Fatalf("unexpected doctor diagnosis %q", reviewed.Record.DoctorDiagnosis)
		}
		if reviewed.Record.IsAIAccurate == nil || !*reviewed.Record.IsAIAccurate {
			t.Fatal("expected is_ai_accurate=true")
		}
	}

	// 8) El historial ahora tiene 2 revisiones
	{
		st, body := doReq(t, ts.URL, "GET", "/patients/"+patient.ID+"/records", doc, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 records, got %d body=%s", st, string(body))
		}
		var history []struct {
			Seq int `json:"seq"`
		}
		_ = json.Unmarshal(body, &history)
		if len(history) != 2 {
			t.Fatalf("expected 2 records, got %d", len(history))
		}
	}

	// 9) Re-análisis muta la última revisión in place
	{
		st, body := doReq(t, ts.URL, "POST", "/patients/"+patient.ID+"/reanalyze", doc, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 reanalyze, got %d body=%s", st, string(body))
		}
		var res struct {
			Record struct {
				ID  string `json:"id"`
				Seq int    `json:"seq"`
			} `json:"record"`
		}
		_ = json.Unmarshal(body, &res)
		if res.Record.ID != reviewed.Record.ID || res.Record.Seq != 2 {
			t.Fatalf("reanalyze must mutate the latest record: %+v", res.Record)
		}
	}

	// 10) Dashboards
	{
		st, body := doReq(t, ts.URL, "GET", "/dashboard/stats", admin, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 stats, got %d body=%s", st, string(body))
		}
		var stats struct {
			Patients       int `json:"patients"`
			Doctors        int `json:"doctors"`
			ImagesUploaded int `json:"images_uploaded"`
			WaitingReview  int `json:"waiting_review"`
		}
		_ = json.Unmarshal(body, &stats)
		if stats.Patients != 1 || stats.Doctors != 1 {
			t.Fatalf("unexpected stats %+v", stats)
		}
		if stats.ImagesUploaded != 2 || stats.WaitingReview != 1 {
			t.Fatalf("unexpected stats %+v", stats)
		}
	}
	{
		st, _ := doReq(t, ts.URL, "GET", "/dashboard/stats", doc, nil)
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 admin stats as doctor, got %d", st)
		}
	}

	// 11) El log de actividad registró el flujo
	{
		st, body := doReq(t, ts.URL, "GET", "/activities?limit=50", admin, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 activities, got %d body=%s", st, string(body))
		}
		var entries []struct {
			ActionType string `json:"action_type"`
			User       string `json:"user"`
		}
		_ = json.Unmarshal(body, &entries)
		seen := map[string]bool{}
		for _, e := range entries {
			seen[e.ActionType] = true
		}
		for _, want := range []string{"ADD_DOCTOR", "UPLOAD_IMAGE", "AI_ANALYSIS", "DOCTOR_REVIEW", "AI_REANALYSIS"} {
			if !seen[want] {
				t.Fatalf("missing activity %s in %v", want, seen)
			}
		}
	}

	// 12) Borrar al doctor no rompe el historial de actividad
	{
		st, body := doReq(t, ts.URL, "DELETE", "/doctors/"+doctor.ID, admin, nil)
		if st != http.StatusNoContent {
			t.Fatalf("expected 204 delete doctor, got %d body=%s", st, string(body))
		}

		st, body = doReq(t, ts.URL, "GET", "/activities?limit=50", admin, nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 activities after delete, got %d", st)
		}
		var entries []struct {
			ActionType string `json:"action_type"`
		}
		_ = json.Unmarshal(body, &entries)
		if len(entries) == 0 {
			t.Fatal("activity log must survive doctor deletion")
		}
	}
}

func TestHTTP_Reanalyze_WithoutImage(t *testing.T) {
	ts := newTestServer(t)
	doc := debugUser{ID: "ext-1", Role: "doctor"}

	st, body := doReq(t, ts.URL, "POST", "/patients/", doc, map[string]any{"name": "Ana"})
	if st != http.StatusCreated {
		t.Fatalf("expected 201 create patient, got %d", st)
	}
	var patient struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &patient)

	st, _ = doReq(t, ts.URL, "POST", "/patients/"+patient.ID+"/reanalyze", doc, nil)
	if st != http.StatusNotFound {
		t.Fatalf("expected 404 reanalyze without image, got %d", st)
	}
}

func TestHTTP_Unauthenticated(t *testing.T) {
	ts := newTestServer(t)

	st, _ := doReq(t, ts.URL, "GET", "/patients/", debugUser{}, nil)
	if st != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", st)
	}
}

type debugUser struct {
	ID    string
	Role  string
	Email string
}

func doReq(t *testing.T, baseURL, method, path string, u debugUser, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setDebugHeaders(req, u)

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}

func uploadImage(t *testing.T, baseURL, path string, u debugUser, fileName string, data []byte) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	_ = mw.Close()

	req, err := http.NewRequest("POST", baseURL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	setDebugHeaders(req, u)

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}

func setDebugHeaders(req *http.Request, u debugUser) {
	if u.ID != "" {
		req.Header.Set("X-Debug-User-ID", u.ID)
	}
	if u.Role != "" {
		req.Header.Set("X-Debug-User-Role", u.Role)
	}
	if u.Email != "" {
		req.Header.Set("X-Debug-User-Email", u.Email)
	}
}
