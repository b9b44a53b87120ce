package main

import (
  "context"
  "fmt"
  "os"
  "github.com/joho/godotenv"
  "github.com/lumira/lumira-backend/internal/cache"
  "github.com/lumira/lumira-backend/internal/clients/openai"
  "github.com/lumira/lumira-backend/internal/clients/seaweedfs"
  "github.com/lumira/lumira-backend/internal/db"
  "github.com/lumira/lumira-backend/internal/handlers"
  "github.com/lumira/lumira-backend/internal/logger"
  "github.com/lumira/lumira-backend/internal/repos"
  "github.com/lumira/lumira-backend/internal/server"
  "github.com/lumira/lumira-backend/internal/services"
  "github.com/lumira/lumira-backend/internal/utils"
)

func main() {
  _ = godotenv.Load()

  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Fatal("Postgres init failed", "error", err)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Fatal("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Cache
  kv, err := cache.NewRedis(log)
  if err != nil {
    log.Warn("Redis init failed, using in-memory cache", "error", err)
    kv = cache.NewMemory()
  }
  defer kv.Close()

  // Clients
  generator, err := openai.NewClient(log)
  if err != nil {
    log.Fatal("OpenAI client init failed", "error", err)
  }
  blobs, err := seaweedfs.NewClient(log)
  if err != nil {
    log.Fatal("SeaweedFS client init failed", "error", err)
  }

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, kv, log)
  balanceRepo := repos.NewBalanceRepo(thePG, kv, log)
  invoiceRepo := repos.NewInvoiceRepo(thePG, kv, log)
  courseRepo := repos.NewCourseRepo(thePG, kv, log)
  moduleRepo := repos.NewModuleRepo(thePG, kv, log)
  subModuleRepo := repos.NewSubModuleRepo(thePG, kv, log)
  contentRepo := repos.NewContentRepo(thePG, kv, log)
  questionRepo := repos.NewQuestionRepo(thePG, kv, log)
  userCourseRepo := repos.NewUserCourseRepo(thePG, kv, log)
  answerRepo := repos.NewAnswerRepo(thePG, kv, log)
  promptRepo := repos.NewPromptRepo(thePG, kv, log)
  gptModelRepo := repos.NewGPTModelRepo(thePG, kv, log)
  translationRepo := repos.NewTranslationRepo(thePG, kv, log)
  promoRepo := repos.NewPromoRepo(thePG, kv, log)
  runRepo := repos.NewGenerationRunRepo(thePG, log)

  // Services
  log.Info("Setting up Services from main...")
  userService := services.NewUserService(thePG, log, userRepo, balanceRepo, invoiceRepo, promoRepo)
  courseService := services.NewCourseService(thePG, kv, log, courseRepo, moduleRepo, subModuleRepo, contentRepo, questionRepo)
  progressService := services.NewProgressService(thePG, log, userCourseRepo, courseRepo, moduleRepo, subModuleRepo, contentRepo, questionRepo)
  generationService := services.NewGenerationService(
    thePG, log, generator, blobs,
    courseRepo, moduleRepo, subModuleRepo, contentRepo, questionRepo,
    userCourseRepo, answerRepo, promptRepo, gptModelRepo, runRepo,
  )

  // Generation worker
  ctx, cancel := context.WithCancel(context.Background())
  defer cancel()
  go generationService.StartWorker(ctx)

  // Handlers
  userHandler := handlers.NewUserHandler(log, userService)
  courseHandler := handlers.NewCourseHandler(log, courseService, generationService)
  userCourseHandler := handlers.NewUserCourseHandler(log, thePG, progressService, generationService, userCourseRepo, answerRepo)
  referenceHandler := handlers.NewReferenceHandler(log, promptRepo, gptModelRepo, translationRepo)

  router := server.NewRouter(server.RouterConfig{
    UserHandler:       userHandler,
    CourseHandler:     courseHandler,
    UserCourseHandler: userCourseHandler,
    ReferenceHandler:  referenceHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  log.Info("Starting server...", "port", port)
  if err := router.Run(":" + port); err != nil {
    log.Fatal("Server failed", "error", err)
  }
}
