package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"breast-screening-service/internal/adapters/auth/authapi"
	"breast-screening-service/internal/adapters/inference/aiapi"
	"breast-screening-service/internal/adapters/notify/sqs"
	s3store "breast-screening-service/internal/adapters/objectstore/s3"
	"breast-screening-service/internal/domain/activity"
	"breast-screening-service/internal/platform/logger"
	"breast-screening-service/internal/ports/auth"
	"breast-screening-service/internal/ports/inference"
	"breast-screening-service/internal/ports/objectstore"
	"breast-screening-service/internal/router"
)

func main() {
	ctx := context.Background()
	appLog := logger.NewFromEnv()

	addr := ":8080"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	// Sin AUTH_API_URL el verifier queda nil y el middleware acepta los
	// headers X-Debug-* (modo dev).
	var verifier auth.AuthVerifier
	if base := os.Getenv("AUTH_API_URL"); base != "" {
		client, err := authapi.NewClient(authapi.Config{
			BaseURL: base,
			APIKey:  os.Getenv("AUTH_API_KEY"),
		})
		if err != nil {
			log.Fatalf("auth client: %v", err)
		}
		verifier = authapi.NewVerifier(client)
	}

	var ai inference.Client
	if base := os.Getenv("AI_API_URL"); base != "" {
		client, err := aiapi.NewClient(aiapi.Config{BaseURL: base})
		if err != nil {
			log.Fatalf("inference client: %v", err)
		}
		ai = client
	} else {
		appLog.Warn("AI_API_URL not set, uploads will be stored without analysis", nil)
	}

	var store objectstore.Store
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		s3Client, err := s3store.NewClient(ctx)
		if err != nil {
			log.Fatalf("s3 client: %v", err)
		}
		store = s3store.NewStore(s3Client, s3store.Config{
			Bucket:     bucket,
			PublicBase: os.Getenv("S3_PUBLIC_BASE"),
		})
	}

	var notifier activity.Notifier
	if queue := os.Getenv("SQS_ACTIVITY_QUEUE"); queue != "" {
		n, err := sqs.NewNotifier(ctx, queue)
		if err != nil {
			log.Fatalf("sqs notifier: %v", err)
		}
		notifier = n
	}

	r := router.NewRouter(router.Options{
		AuthVerifier: verifier,
		Store:        store,
		AI:           ai,
		Notifier:     notifier,
		Logger:       appLog,
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("starting server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
