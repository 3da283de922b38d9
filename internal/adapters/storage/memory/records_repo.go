package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"breast-screening-service/internal/domain/records"
)

type recordsRepo struct {
	mu   sync.RWMutex
	byID map[string]records.MedicalRecord
}

func NewRecordsRepo() records.Repository {
	return &recordsRepo{
		byID: make(map[string]records.MedicalRecord),
	}
}

func (r *recordsRepo) Create(ctx context.Context, rec records.MedicalRecord) (records.MedicalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if strings.TrimSpace(rec.ID) == "" {
		return records.MedicalRecord{}, errors.New("record id required")
	}
	if _, exists := r.byID[rec.ID]; exists {
		return records.MedicalRecord{}, errors.New("record already exists")
	}

	// Seq siguiente por paciente, bajo el mismo lock que el insert.
	maxSeq := 0
	for _, other := range r.byID {
		if other.PatientID == rec.PatientID && other.Seq > maxSeq {
			maxSeq = other.Seq
		}
	}
	rec.Seq = maxSeq + 1

	r.byID[rec.ID] = rec
	return rec, nil
}

func (r *recordsRepo) GetByID(ctx context.Context, id string) (records.MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.byID[id]
	if !ok {
		return records.MedicalRecord{}, records.ErrNotFound
	}
	return rec, nil
}

func (r *recordsRepo) ListByPatient(ctx context.Context, patientID string) ([]records.MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]records.MedicalRecord, 0)
	for _, rec := range r.byID {
		if rec.PatientID == patientID {
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Seq < out[j].Seq
	})

	return out, nil
}

func (r *recordsRepo) LatestByPatient(ctx context.Context, patientID string) (records.MedicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest records.MedicalRecord
	found := false
	for _, rec := range r.byID {
		if rec.PatientID != patientID {
			continue
		}
		if !found || rec.Seq > latest.Seq {
			latest = rec
			found = true
		}
	}

	if !found {
		return records.MedicalRecord{}, records.ErrNotFound
	}
	return latest, nil
}

func (r *recordsRepo) UpdateAIFields(ctx context.Context, id string, in records.AIFieldsUpdate) (records.MedicalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return records.MedicalRecord{}, records.ErrNotFound
	}

	rec.AIDiagnosis = in.AIDiagnosis
	if in.AIGradCamPath != nil {
		rec.AIGradCamPath = in.AIGradCamPath
	}
	rec.UploadedAt = in.UploadedAt

	r.byID[id] = rec
	return rec, nil
}

func (r *recordsRepo) CountByStatus(ctx context.Context, status records.ValidationStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.byID {
		if rec.ValidationStatus == status {
			n++
		}
	}
	return n, nil
}

func (r *recordsRepo) CountWithImage(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, rec := range r.byID {
		if strings.TrimSpace(rec.OriginalImagePath) != "" {
			n++
		}
	}
	return n, nil
}
