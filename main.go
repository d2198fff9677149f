package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"nexus-progression-engine/handlers"
	"nexus-progression-engine/middleware"
	"nexus-progression-engine/models"
	"nexus-progression-engine/services"
	"nexus-progression-engine/utils"
	"nexus-progression-engine/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // icons only, 10MB is plenty
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-Service-Token, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	r2Ready, err := utils.InitR2()
	if err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}
	if !r2Ready {
		log.Println("⚠️  R2 not configured, badge icons will be stored locally")
	}

	// TranslateError maps driver unique-violations onto gorm.ErrDuplicatedKey,
	// which the purchase ownership guard relies on.
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.LedgerEntry{},
		&models.ActivityCounter{},
		&models.ActivityEvent{},
		&models.BadgeDefinition{},
		&models.BadgeAward{},
		&models.BadgeFirstHolder{},
		&models.ShowcaseSelection{},
		&models.StreakState{},
		&models.DailyRewardClaim{},
		&models.Challenge{},
		&models.ChallengeProgress{},
		&models.Collection{},
		&models.CollectionBadge{},
		&models.CollectionBonusAward{},
		&models.ShopItem{},
		&models.Purchase{},
		&models.Season{},
		&models.SeasonScore{},
		&models.RankSnapshot{},
		&models.Campaign{},
		&models.CampaignRun{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	engine := services.NewEngine(db, utils.NewClock())

	if err := engine.Badges.SeedDefinitions(); err != nil {
		log.Fatal("failed to seed badge definitions:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventWorker := workers.NewEventWorker(db, engine)
	eventWorker.Start(ctx)

	reconcileWorker := workers.NewReconcileWorker(db)
	reconcileWorker.Start(ctx)

	engine.StartScheduler()

	handlers.SetupGamificationRoutes(app, engine)

	app.Static("/uploads", "./uploads")

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Activity Event Worker running")
	log.Println("✅ Ledger Reconcile Worker running (hourly)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
