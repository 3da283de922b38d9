package router

import (
	"context"
	"database/sql"
	"net/http"
	"os"

	objmem "breast-screening-service/internal/adapters/objectstore/memory"
	mem "breast-screening-service/internal/adapters/storage/memory"
	pg "breast-screening-service/internal/adapters/storage/postgres"
	"breast-screening-service/internal/domain/activity"
	"breast-screening-service/internal/domain/patients"
	"breast-screening-service/internal/domain/records"
	"breast-screening-service/internal/domain/screening"
	"breast-screening-service/internal/domain/staff"
	"breast-screening-service/internal/middleware"
	"breast-screening-service/internal/platform/logger"
	"breast-screening-service/internal/ports/auth"
	"breast-screening-service/internal/ports/inference"
	"breast-screening-service/internal/ports/objectstore"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcional: object store para imágenes. Si no viene, in-memory.
	Store objectstore.Store

	// Cliente de inferencia. Puede ser nil: el ingest degrada a
	// "Analysis Failed" y el re-análisis falla, pero el resto del API
	// funciona.
	AI inference.Client

	// Opcional: notifier de eventos de actividad (SQS). Nil => no publica.
	Notifier activity.Notifier

	Logger logger.Logger
}

// doctorCounter adapta el conteo por rol del repo de staff a lo que el
// dashboard espera.
type doctorCounter struct {
	repo staff.Repository
}

func (c doctorCounter) CountDoctors(ctx context.Context) (int, error) {
	return c.repo.CountByRole(ctx, auth.RoleDoctor)
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	log := opts.Logger
	if log == nil {
		log = logger.NewFromEnv()
	}

	var (
		patientsRepo patients.Repository
		staffRepo    staff.Repository
		recordsRepo  records.Repository
		activityRepo activity.Repository
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			}
		}
	}

	if db != nil {
		patientsRepo = pg.NewPatientsRepo(db)
		staffRepo = pg.NewStaffRepo(db)
		recordsRepo = pg.NewRecordsRepo(db)
		activityRepo = pg.NewActivityRepo(db)
	} else {
		patientsRepo = mem.NewPatientsRepo()
		staffRepo = mem.NewStaffRepo()
		recordsRepo = mem.NewRecordsRepo()
		activityRepo = mem.NewActivityRepo(staffRepo)
	}

	store := opts.Store
	if store == nil {
		store = objmem.NewStore(os.Getenv("STORAGE_PUBLIC_BASE"))
	}

	// Services por módulo
	activitySvc := activity.NewService(activityRepo, opts.Notifier, log)
	staffSvc := staff.NewService(staffRepo, activitySvc, activityRepo, log)
	patientsSvc := patients.NewService(patientsRepo, activitySvc, log)
	recordsSvc := records.NewService(recordsRepo, patientsRepo, doctorCounter{repo: staffRepo})
	screeningSvc := screening.NewService(store, opts.AI, recordsRepo, staffSvc, activitySvc, log)

	// Rutas por módulo
	patients.RegisterRoutes(r, patientsSvc, recordsSvc, store, staffSvc.ResolveActorID)
	staff.RegisterRoutes(r, staffSvc)
	records.RegisterRoutes(r, recordsSvc)
	screening.RegisterRoutes(r, screeningSvc)
	activity.RegisterRoutes(r, activitySvc)

	return r
}
