package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"breast-screening-service/internal/domain/records"
)

type RecordsRepo struct {
	db *sql.DB
}

func NewRecordsRepo(db *sql.DB) *RecordsRepo {
	return &RecordsRepo{db: db}
}

const recordColumns = `
	id, patient_id, seq,
	original_image_path, validation_status,
	ai_diagnosis, ai_gradcam_path,
	validator_id, doctor_diagnosis, doctor_notes, doctor_brush_path,
	is_ai_accurate, uploaded_at, validated_at
`

// Create inserta la revisión calculando el seq siguiente en el mismo
// statement; la unicidad (patient_id, seq) la garantiza la base.
func (r *RecordsRepo) Create(ctx context.Context, rec records.MedicalRecord) (records.MedicalRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO medical_records (
			id, patient_id, seq,
			original_image_path, validation_status,
			ai_diagnosis, ai_gradcam_path,
			validator_id, doctor_diagnosis, doctor_notes, doctor_brush_path,
			is_ai_accurate, uploaded_at, validated_at
		) VALUES (
			$1, $2,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM medical_records WHERE patient_id = $2),
			$3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING seq
	`,
		rec.ID,
		rec.PatientID,
		rec.OriginalImagePath,
		string(rec.ValidationStatus),
		rec.AIDiagnosis,
		toNullString(rec.AIGradCamPath),
		toNullString(rec.ValidatorID),
		rec.DoctorDiagnosis,
		rec.DoctorNotes,
		toNullString(rec.DoctorBrushPath),
		toNullBool(rec.IsAIAccurate),
		rec.UploadedAt,
		toNullTime(rec.ValidatedAt),
	)

	if err := row.Scan(&rec.Seq); err != nil {
		return records.MedicalRecord{}, err
	}
	return rec, nil
}

func (r *RecordsRepo) GetByID(ctx context.Context, id string) (records.MedicalRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return records.MedicalRecord{}, records.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM medical_records
		WHERE id = $1
	`, id)

	return scanRecord(row)
}

func (r *RecordsRepo) ListByPatient(ctx context.Context, patientID string) ([]records.MedicalRecord, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM medical_records
		WHERE patient_id = $1
		ORDER BY seq ASC
	`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]records.MedicalRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

func (r *RecordsRepo) LatestByPatient(ctx context.Context, patientID string) (records.MedicalRecord, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return records.MedicalRecord{}, records.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM medical_records
		WHERE patient_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, patientID)

	return scanRecord(row)
}

func (r *RecordsRepo) UpdateAIFields(ctx context.Context, id string, in records.AIFieldsUpdate) (records.MedicalRecord, error) {
	// ai_gradcam_path solo se pisa si vino valor nuevo (COALESCE con el
	// existente); el re-análisis conserva el path anterior cuando la
	// relocación falló.
	res, err := r.db.ExecContext(ctx, `
		UPDATE medical_records
		SET
			ai_diagnosis = $2,
			ai_gradcam_path = COALESCE($3, ai_gradcam_path),
			uploaded_at = $4
		WHERE id = $1
	`,
		id,
		in.AIDiagnosis,
		toNullString(in.AIGradCamPath),
		in.UploadedAt,
	)
	if err != nil {
		return records.MedicalRecord{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return records.MedicalRecord{}, records.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *RecordsRepo) CountByStatus(ctx context.Context, status records.ValidationStatus) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM medical_records WHERE validation_status = $1
	`, string(status)).Scan(&n)
	return n, err
}

func (r *RecordsRepo) CountWithImage(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM medical_records
		WHERE original_image_path IS NOT NULL AND original_image_path <> ''
	`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (records.MedicalRecord, error) {
	var rec records.MedicalRecord
	var status string
	var gradcam, validator, brush sql.NullString
	var accurate sql.NullBool
	var validatedAt sql.NullTime

	if err := row.Scan(
		&rec.ID,
		&rec.PatientID,
		&rec.Seq,
		&rec.OriginalImagePath,
		&status,
		&rec.AIDiagnosis,
		&gradcam,
		&validator,
		&rec.DoctorDiagnosis,
		&rec.DoctorNotes,
		&brush,
		&accurate,
		&rec.UploadedAt,
		&validatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return records.MedicalRecord{}, records.ErrNotFound
		}
		return records.MedicalRecord{}, err
	}

	rec.ValidationStatus = records.ValidationStatus(status)
	rec.AIGradCamPath = fromNullString(gradcam)
	rec.ValidatorID = fromNullString(validator)
	rec.DoctorBrushPath = fromNullString(brush)
	if accurate.Valid {
		v := accurate.Bool
		rec.IsAIAccurate = &v
	}
	if validatedAt.Valid {
		t := validatedAt.Time
		rec.ValidatedAt = &t
	}

	return rec, nil
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func toNullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
