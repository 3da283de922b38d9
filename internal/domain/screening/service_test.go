package screening_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	objmem "breast-screening-service/internal/adapters/objectstore/memory"
	mem "breast-screening-service/internal/adapters/storage/memory"
	"breast-screening-service/internal/domain/records"
	"breast-screening-service/internal/domain/screening"
	"breast-screening-service/internal/ports/auth"
	"breast-screening-service/internal/ports/inference"
	"breast-screening-service/internal/ports/objectstore"
)

// fakeAI devuelve una predicción fija o falla siempre.
type fakeAI struct {
	pred      inference.Prediction
	predErr   error
	artifacts map[string][]byte
	calls     int
}

func (f *fakeAI) Predict(ctx context.Context, image []byte, fileName string) (inference.Prediction, error) {
	f.calls++
	if f.predErr != nil {
		return inference.Prediction{}, f.predErr
	}
	return f.pred, nil
}

func (f *fakeAI) FetchArtifact(ctx context.Context, fileName string) ([]byte, error) {
	data, ok := f.artifacts[fileName]
	if !ok {
		return nil, errors.New("artifact not found")
	}
	return data, nil
}

// brokenStore falla todas las subidas.
type brokenStore struct{}

func (brokenStore) Upload(ctx context.Context, path string, data []byte, opts objectstore.UploadOptions) error {
	return errors.New("storage down")
}
func (brokenStore) Download(ctx context.Context, path string) ([]byte, error) {
	return nil, errors.New("storage down")
}
func (brokenStore) PublicURL(path string) string { return path }

type activityEntry struct {
	ActorID    *string
	ActionType string
}

type fakeActivity struct {
	entries []activityEntry
	err     error
}

func (f *fakeActivity) Record(ctx context.Context, actorID *string, actionType, description string) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, activityEntry{ActorID: actorID, ActionType: actionType})
	return nil
}

type fakeStaffDir struct {
	id *string
}

func (f fakeStaffDir) ResolveActorID(ctx context.Context, claims auth.Claims) *string {
	return f.id
}

func doctorClaims() auth.Claims {
	return auth.Claims{UserID: "u-1", Email: "doc@clinic.test", Role: auth.RoleDoctor}
}

func TestIngest_HappyPath(t *testing.T) {
	ctx := context.Background()
	store := objmem.NewStore("")
	repo := mem.NewRecordsRepo()
	ai := &fakeAI{
		pred: inference.Prediction{
			Class:       "malignant",
			Confidence:  0.93,
			GradCamPath: "static/gradcam/heat_1.png",
		},
		artifacts: map[string][]byte{
			"heat_1.png": []byte("heatmap-bytes"),
		},
	}
	act := &fakeActivity{}
	actorID := "acct-1"

	svc := screening.NewService(store, ai, repo, fakeStaffDir{id: &actorID}, act, nil)

	res, err := svc.Ingest(ctx, doctorClaims(), "pat-1", []byte("image-bytes"), "scan.png")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", res.Warnings)
	}

	rec := res.Record
	if rec.ValidationStatus != records.StatusPending {
		t.Fatalf("expected PENDING, got %s", rec.ValidationStatus)
	}
	if rec.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", rec.Seq)
	}
	if !strings.HasPrefix(rec.OriginalImagePath, "raw/pat-1_") || !strings.HasSuffix(rec.OriginalImagePath, ".png") {
		t.Fatalf("unexpected image path %q", rec.OriginalImagePath)
	}
	if !strings.Contains(rec.AIDiagnosis, "malignant") || !strings.Contains(rec.AIDiagnosis, "0.93") {
		t.Fatalf("unexpected ai diagnosis %q", rec.AIDiagnosis)
	}
	if rec.AIGradCamPath == nil || *rec.AIGradCamPath != "gradcam/heat_1.png" {
		t.Fatalf("unexpected gradcam path %v", rec.AIGradCamPath)
	}

	// La imagen original y el heatmap quedaron en el store.
	if _, err := store.Download(ctx, rec.OriginalImagePath); err != nil {
		t.Fatalf("original image not stored: %v", err)
	}
	if _, err := store.Download(ctx, *rec.AIGradCamPath); err != nil {
		t.Fatalf("gradcam not stored: %v", err)
	}

	// Dos entradas de actividad: análisis + subida.
	if len(act.entries) != 2 {
		t.Fatalf("expected 2 activity entries, got %d", len(act.entries))
	}
	if act.entries[0].ActionType != "AI_ANALYSIS" || act.entries[1].ActionType != "UPLOAD_IMAGE" {
		t.Fatalf("unexpected activity actions: %+v", act.entries)
	}
}

func TestIngest_InferenceDown_PreservesImage(t *testing.T) {
	ctx := context.Background()
	store := objmem.NewStore("")
	repo := mem.NewRecordsRepo()
	ai := &fakeAI{predErr: errors.New("model offline")}
	act := &fakeActivity{}

	svc := screening.NewService(store, ai, repo, nil, act, nil)

	res, err := svc.Ingest(ctx, doctorClaims(), "pat-1", []byte("image-bytes"), "scan.jpg")
	if err != nil {
		t.Fatalf("ingest should not fail when inference is down: %v", err)
	}

	rec := res.Record
	if rec.ValidationStatus != records.StatusPending {
		t.Fatalf("expected PENDING, got %s", rec.ValidationStatus)
	}
	if rec.AIDiagnosis != records.DiagnosisFailed {
		t.Fatalf("expected %q, got %q", records.DiagnosisFailed, rec.AIDiagnosis)
	}
	if rec.AIGradCamPath != nil {
		t.Fatalf("expected nil gradcam path, got %v", *rec.AIGradCamPath)
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a warning for the failed analysis")
	}

	// Custodia intacta: la imagen quedó subida igual.
	if _, err := store.Download(ctx, rec.OriginalImagePath); err != nil {
		t.Fatalf("original image not stored: %v", err)
	}

	// Solo UPLOAD_IMAGE, sin AI_ANALYSIS.
	if len(act.entries) != 1 || act.entries[0].ActionType != "UPLOAD_IMAGE" {
		t.Fatalf("unexpected activity entries: %+v", act.entries)
	}
}

func TestIngest_UploadFails_NoRecordCreated(t *testing.T) {
	ctx := context.Background()
	repo := mem.NewRecordsRepo()
	ai := &fakeAI{pred: inference.Prediction{Class: "benign", Confidence: 0.8}}

	svc := screening.NewService(brokenStore{}, ai, repo, nil, nil, nil)

	if _, err := svc.Ingest(ctx, doctorClaims(), "pat-1", []byte("image-bytes"), "scan.png"); err == nil {
		t.Fatal("expected error when upload fails")
	}
	if ai.calls != 0 {
		t.Fatalf("inference should not run after a failed upload, ran %d times", ai.calls)
	}
	if _, err := repo.LatestByPatient(ctx, "pat-1"); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected no record, got err=%v", err)
	}
}

func TestIngest_InvalidInput(t *testing.T) {
	svc := screening.NewService(objmem.NewStore(""), &fakeAI{}, mem.NewRecordsRepo(), nil, nil, nil)

	if _, err := svc.Ingest(context.Background(), doctorClaims(), "", []byte("x"), "a.png"); !errors.Is(err, screening.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty patient, got %v", err)
	}
	if _, err := svc.Ingest(context.Background(), doctorClaims(), "pat-1", nil, "a.png"); !errors.Is(err, screening.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty image, got %v", err)
	}
}

func TestReview_AppendsNewRecord(t *testing.T) {
	ctx := context.Background()
	store := objmem.NewStore("")
	repo := mem.NewRecordsRepo()
	ai := &fakeAI{pred: inference.Prediction{Class: "benign", Confidence: 0.71}}
	act := &fakeActivity{}
	actorID := "acct-9"

	svc := screening.NewService(store, ai, repo, fakeStaffDir{id: &actorID}, act, nil)

	ingested, err := svc.Ingest(ctx, doctorClaims(), "pat-1", []byte("image"), "scan.png")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	res, err := svc.Review(ctx, doctorClaims(), ingested.Record.ID, screening.ReviewInput{
		Agreement:       screening.AgreementAgree,
		Note:            "clear margins",
		AnnotationImage: []byte("png-bytes"),
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}

	review := res.Record
	if review.ID == ingested.Record.ID {
		t.Fatal("review must be a new record, not a mutation")
	}
	if review.Seq != ingested.Record.Seq+1 {
		t.Fatalf("expected seq %d, got %d", ingested.Record.Seq+1, review.Seq)
	}
	if review.ValidationStatus != records.StatusValidated {
		t.Fatalf("expected VALIDATED, got %s", review.ValidationStatus)
	}
	if review.DoctorDiagnosis != records.DiagnosisAgreed {
		t.Fatalf("expected %q, got %q", records.DiagnosisAgreed, review.DoctorDiagnosis)
	}
	if review.IsAIAccurate == nil || !*review.IsAIAccurate {
		t.Fatal("expected IsAIAccurate=true")
	}
	if review.ValidatorID == nil || *review.ValidatorID != actorID {
		t.Fatalf("unexpected validator %v", review.ValidatorID)
	}
	if review.DoctorNotes != "clear margins" {
		t.Fatalf("unexpected notes %q", review.DoctorNotes)
	}
	if review.OriginalImagePath != ingested.Record.OriginalImagePath {
		t.Fatal("review must carry the original image path")
	}
	if review.DoctorBrushPath == nil || !strings.HasPrefix(*review.DoctorBrushPath, "masks/pat-1_review_") {
		t.Fatalf("unexpected brush path %v", review.DoctorBrushPath)
	}
	if review.ValidatedAt == nil {
		t.Fatal("expected ValidatedAt set")
	}

	// El registro original no se tocó.
	original, err := repo.GetByID(ctx, ingested.Record.ID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if original.ValidationStatus != records.StatusPending {
		t.Fatalf("original record mutated: status=%s", original.ValidationStatus)
	}
	if original.ValidatorID != nil || original.IsAIAccurate != nil {
		t.Fatal("original record mutated: review fields set")
	}
}

func TestReview_Disagree(t *testing.T) {
	ctx := context.Background()
	repo := mem.NewRecordsRepo()
	svc := screening.NewService(objmem.NewStore(""), &fakeAI{pred: inference.Prediction{Class: "benign", Confidence: 0.6}}, repo, nil, nil, nil)

	ingested, err := svc.Ingest(ctx, doctorClaims(), "pat-1", []byte("image"), "scan.png")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	res, err := svc.Review(ctx, doctorClaims(), ingested.Record.ID, screening.ReviewInput{
		Agreement: screening.AgreementDisagree,
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if res.Record.DoctorDiagnosis != records.DiagnosisDisagreed {
		t.Fatalf("expected %q, got %q", records.DiagnosisDisagreed, res.Record.DoctorDiagnosis)
	}
	if res.Record.IsAIAccurate == nil || *res.Record.IsAIAccurate {
		t.Fatal("expected IsAIAccurate=false")
	}
	if res.Record.DoctorBrushPath != nil {
		t.Fatal("expected no brush path without annotation")
	}
}

func TestReview_InvalidAgreement(t *testing.T) {
	svc := screening.NewService(objmem.NewStore(""), &fakeAI{}, mem.NewRecordsRepo(), nil, nil, nil)

	_, err := svc.Review(context.Background(), doctorClaims(), "rec-1", screening.ReviewInput{
		Agreement: screening.Agreement("maybe"),
	})
	if !errors.Is(err, screening.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReview_RecordNotFound(t *testing.T) {
	svc := screening.NewService(objmem.NewStore(""), &fakeAI{}, mem.NewRecordsRepo(), nil, nil, nil)

	_, err := svc.Review(context.Background(), doctorClaims(), "missing", screening.ReviewInput{
		Agreement: screening.AgreementAgree,
	})
	if !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReanalyze_MutatesLatestInPlace(t *testing.T) {
	ctx := context.Background()
	store := objmem.NewStore("")
	repo := mem.NewRecordsRepo()
	ai := &fakeAI{
		pred:      inference.Prediction{Class: "benign", Confidence: 0.55},
		artifacts: map[string][]byte{"heat_a.png": []byte("a")},
	}
	svc := screening.NewService(store, ai, repo, nil, nil, nil)

	ingested, err := svc.Ingest(ctx, doctorClaims(), "pat-1", []byte("image"), "scan.png")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// El modelo ahora responde distinto.
	ai.pred = inference.Prediction{Class: "malignant", Confidence: 0.97, GradCamPath: "out/heat_a.png"}

	res, err := svc.Reanalyze(ctx, doctorClaims(), "pat-1")
	if err != nil {
		t.Fatalf("reanalyze: %v", err)
	}

	rec := res.Record
	if rec.ID != ingested.Record.ID || rec.Seq != ingested.Record.Seq {
		t.Fatal("reanalyze must mutate the latest record, not create one")
	}
	if rec.ValidationStatus != ingested.Record.ValidationStatus {
		t.Fatalf("status must not change, got %s", rec.ValidationStatus)
	}
	if !strings.Contains(rec.AIDiagnosis, "malignant") || !strings.Contains(rec.AIDiagnosis, "0.97") {
		t.Fatalf("unexpected ai diagnosis %q", rec.AIDiagnosis)
	}
	if rec.AIGradCamPath == nil || *rec.AIGradCamPath != "gradcam/heat_a.png" {
		t.Fatalf("unexpected gradcam path %v", rec.AIGradCamPath)
	}

	history, _ := repo.ListByPatient(ctx, "pat-1")
	if len(history) != 1 {
		t.Fatalf("expected 1 record after reanalyze, got %d", len(history))
	}
}

func TestReanalyze_NoImage(t *testing.T) {
	svc := screening.NewService(objmem.NewStore(""), &fakeAI{}, mem.NewRecordsRepo(), nil, nil, nil)

	_, err := svc.Reanalyze(context.Background(), doctorClaims(), "pat-without-images")
	if !errors.Is(err, screening.ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
}

func TestReanalyze_InferenceDownAborts(t *testing.T) {
	ctx := context.Background()
	store := objmem.NewStore("")
	repo := mem.NewRecordsRepo()
	ai := &fakeAI{pred: inference.Prediction{Class: "benign", Confidence: 0.8}}
	svc := screening.NewService(store, ai, repo, nil, nil, nil)

	ingested, err := svc.Ingest(ctx, doctorClaims(), "pat-1", []byte("image"), "scan.png")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	ai.predErr = errors.New("model offline")

	if _, err := svc.Reanalyze(ctx, doctorClaims(), "pat-1"); err == nil {
		t.Fatal("expected error when inference is down")
	}

	// El registro quedó como estaba.
	current, _ := repo.GetByID(ctx, ingested.Record.ID)
	if current.AIDiagnosis != ingested.Record.AIDiagnosis {
		t.Fatal("failed reanalyze must not touch the record")
	}
}

func TestIngest_GradCamRelocationFailure_Degrades(t *testing.T) {
	ctx := context.Background()
	store := objmem.NewStore("")
	repo := mem.NewRecordsRepo()
	// Predicción con gradcam pero sin artifact descargable.
	ai := &fakeAI{pred: inference.Prediction{Class: "malignant", Confidence: 0.9, GradCamPath: "out/missing.png"}}
	svc := screening.NewService(store, ai, repo, nil, nil, nil)

	res, err := svc.Ingest(ctx, doctorClaims(), "pat-1", []byte("image"), "scan.png")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Record.AIGradCamPath != nil {
		t.Fatal("expected nil gradcam path when relocation fails")
	}
	if len(res.Warnings) == 0 {
		t.Fatal("expected a relocation warning")
	}
	if !strings.Contains(res.Record.AIDiagnosis, "malignant") {
		t.Fatal("diagnosis must survive a failed relocation")
	}
}
