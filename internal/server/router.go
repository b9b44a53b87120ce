package server

import (
  "github.com/gin-gonic/gin"
  "github.com/gin-contrib/cors"
  "github.com/lumira/lumira-backend/internal/handlers"
)

type RouterConfig struct {
  UserHandler       *handlers.UserHandler
  CourseHandler     *handlers.CourseHandler
  UserCourseHandler *handlers.UserCourseHandler
  ReferenceHandler  *handlers.ReferenceHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", func(c *gin.Context) {
    handlers.RespondOK(c, gin.H{"status": "ok"})
  })

  api := router.Group("/api")
  {
    // Users
    api.POST("/users", cfg.UserHandler.Register)
    api.GET("/users/external/:external_id", cfg.UserHandler.GetByExternalID)
    api.POST("/users/:id/balance", cfg.UserHandler.ChangeBalance)
    api.POST("/users/:id/invoices", cfg.UserHandler.RecordInvoice)
    api.POST("/users/:id/promo", cfg.UserHandler.RedeemPromoCode)

    // Courses
    api.GET("/courses", cfg.CourseHandler.ListAvailable)
    api.GET("/courses/:id", cfg.CourseHandler.GetByID)
    api.GET("/courses/:id/tree", cfg.CourseHandler.Tree)
    api.POST("/courses/plan", cfg.CourseHandler.CreatePlan)
    api.POST("/courses/:id/generate", cfg.CourseHandler.Generate)

    // User courses
    api.POST("/user_courses", cfg.UserCourseHandler.Enroll)
    api.GET("/user_courses/:id", cfg.UserCourseHandler.GetByID)
    api.GET("/users/:id/user_courses/active", cfg.UserCourseHandler.GetActive)
    api.GET("/users/:id/user_courses", cfg.UserCourseHandler.ListByUser)
    api.POST("/user_courses/:id/next_stage", cfg.UserCourseHandler.NextStage)
    api.POST("/user_courses/:id/archive", cfg.UserCourseHandler.Archive)
    api.POST("/user_courses/:id/pause", cfg.UserCourseHandler.Pause)
    api.POST("/user_courses/:id/resume", cfg.UserCourseHandler.Resume)
    api.POST("/user_courses/:id/restart", cfg.UserCourseHandler.Restart)
    api.POST("/user_courses/:id/rate", cfg.UserCourseHandler.Rate)

    // Answers
    api.POST("/answers", cfg.UserCourseHandler.SubmitAnswer)
    api.GET("/users/:id/answers", cfg.UserCourseHandler.ListAnswers)

    // Reference data
    api.GET("/prompts", cfg.ReferenceHandler.ListPrompts)
    api.GET("/prompts/:name", cfg.ReferenceHandler.GetPrompt)
    api.POST("/prompts", cfg.ReferenceHandler.CreatePrompt)
    api.GET("/gpt_models", cfg.ReferenceHandler.ListGPTModels)
    api.GET("/gpt_models/:name", cfg.ReferenceHandler.GetGPTModel)
    api.GET("/translations", cfg.ReferenceHandler.ListTranslations)
    api.GET("/translations/:key", cfg.ReferenceHandler.GetTranslation)
    api.POST("/translations", cfg.ReferenceHandler.CreateTranslation)
  }

  return router
}
