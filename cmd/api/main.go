package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"fieldsync/internal/auth"
	"fieldsync/internal/authflow"
	"fieldsync/internal/authstore"
	"fieldsync/internal/docstore"
	"fieldsync/internal/httpserver"
	"fieldsync/internal/identity"
	"fieldsync/internal/logger"
	"fieldsync/internal/mailer"
	"fieldsync/internal/models"
	"fieldsync/internal/syncengine"
)

func main() {
	_ = godotenv.Load()
	lg := logger.New()
	defer lg.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		lg.Fatalw("DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(&models.Document{}, &models.AuthUser{}); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}

	docs := docstore.New(db)
	authS := authstore.New(db)
	mail := mailer.New()
	engine := syncengine.New(docs, identity.PasswordVerifier(authS.VerifyPasswordHash))
	flow := authflow.New(authS, docs, mail, auth.Sign)

	router := httpserver.NewRouter(docs, engine, flow, lg)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}
	lg.Infow("listening", "port", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		lg.Fatalw("server exited", "error", err)
	}
}
