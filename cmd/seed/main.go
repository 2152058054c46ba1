package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hugh/orchestra/internal/apperr"
	"github.com/hugh/orchestra/internal/database"
	"github.com/hugh/orchestra/internal/enterprise"
	"github.com/hugh/orchestra/internal/entitlement"
	"github.com/hugh/orchestra/internal/events"
	"github.com/hugh/orchestra/pkg/config"
	"github.com/hugh/orchestra/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	reset := flag.Bool("reset", false, "drop every table before migrating")
	demo := flag.Bool("demo", false, "register a demo enterprise after seeding")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Server.LogLevel)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if *reset {
		if err := database.Reset(db); err != nil {
			log.Fatalf("failed to reset database: %v", err)
		}
		fmt.Println("Database reset")
	} else if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	if err := database.SeedCatalog(db); err != nil {
		log.Fatalf("failed to seed catalog: %v", err)
	}
	fmt.Println("Module catalog and system roles seeded")

	if !*demo {
		return
	}

	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	name := os.Getenv("ENTERPRISE_NAME")

	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		password = "Admin12345"
	}
	if name == "" {
		name = "Demo Enterprise"
	}

	svc := enterprise.NewService(db, entitlement.NewTracker(db), events.Nop{}, logger)
	reg, err := svc.Register(context.Background(), enterprise.RegisterInput{
		EnterpriseName: name,
		FirstName:      "Admin",
		LastName:       "Demo",
		Email:          email,
		Password:       password,
	})
	if err != nil {
		if apperr.IsValidation(err) {
			fmt.Printf("Demo enterprise not created: %v\n", err)
			return
		}
		log.Fatalf("failed to register demo enterprise: %v", err)
	}

	fmt.Printf("Demo enterprise created successfully!\n")
	fmt.Printf("Enterprise: %s\n", reg.Enterprise.Name)
	fmt.Printf("Enterprise-Key: %s\n", reg.Enterprise.Key)
	fmt.Printf("Email: %s\n", reg.User.Email)
}
