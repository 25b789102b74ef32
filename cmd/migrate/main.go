package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-electives-api/internal/models"
	"github.com/noah-isme/sma-electives-api/internal/repository"
	"github.com/noah-isme/sma-electives-api/internal/service"
	"github.com/noah-isme/sma-electives-api/migrations"
	"github.com/noah-isme/sma-electives-api/pkg/config"
	"github.com/noah-isme/sma-electives-api/pkg/database"
	"github.com/noah-isme/sma-electives-api/pkg/logger"
	"github.com/noah-isme/sma-electives-api/pkg/migrate"
)

func main() {
	adminEmail := flag.String("admin-email", "", "create or reset this staff account after migrating")
	adminName := flag.String("admin-name", "Coordinación Académica", "full name of the staff account")
	adminRole := flag.String("admin-role", string(models.RoleSuperAdmin), "role of the staff account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	applied, err := migrate.Apply(ctx, db, migrations.FS, ".", logr)
	if err != nil {
		logr.Fatal("migration failed", zap.Strings("applied", applied), zap.Error(err))
	}
	logr.Info("migrations complete", zap.Int("applied", len(applied)))

	if *adminEmail == "" {
		return
	}
	// The password never goes through argv.
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		logr.Fatal("ADMIN_PASSWORD must be set when -admin-email is given")
	}
	authSvc := service.NewAuthService(repository.NewUserRepository(db), nil, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	if _, err := authSvc.ProvisionStaff(ctx, models.StaffAccount{
		Email:    *adminEmail,
		FullName: *adminName,
		Role:     models.UserRole(*adminRole),
		Password: password,
	}); err != nil {
		logr.Fatal("failed to provision staff account", zap.String("email", *adminEmail), zap.Error(err))
	}
}
