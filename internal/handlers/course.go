package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumira/lumira-backend/internal/logger"
	"github.com/lumira/lumira-backend/internal/services"
)

type CourseHandler struct {
	log               *logger.Logger
	courseService     services.CourseService
	generationService services.GenerationService
}

func NewCourseHandler(log *logger.Logger, courseService services.CourseService, generationService services.GenerationService) *CourseHandler {
	return &CourseHandler{
		log:               log.With("handler", "CourseHandler"),
		courseService:     courseService,
		generationService: generationService,
	}
}

func (h *CourseHandler) ListAvailable(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := h.courseService.ListAvailable(c.Request.Context(), page, pageSize)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *CourseHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	course, err := h.courseService.GetByID(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, course)
}

func (h *CourseHandler) Tree(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tree, err := h.courseService.Tree(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, tree)
}

type createPlanRequest struct {
	Topic        string `json:"topic" binding:"required"`
	LanguageCode string `json:"language_code"`
	OwnerID      *uint  `json:"owner_id"`
	Personalized bool   `json:"personalized"`
}

// CreatePlan generates a blueprint for the topic and persists the course
// skeleton from it.
func (h *CourseHandler) CreatePlan(c *gin.Context) {
	var req createPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
		return
	}
	if req.LanguageCode == "" {
		req.LanguageCode = "en"
	}

	totals := &services.UsageTotals{}
	plan, err := h.generationService.GeneratePlan(c.Request.Context(), req.Topic, req.LanguageCode, totals)
	if err != nil {
		h.log.Error("GeneratePlan failed", "error", err, "topic", req.Topic)
		RespondDomainError(c, err)
		return
	}

	course, err := h.courseService.CreatePlan(c.Request.Context(), req.OwnerID, *plan, req.LanguageCode, req.Personalized)
	if err != nil {
		h.log.Error("CreatePlan failed", "error", err, "topic", req.Topic)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"course":            course,
		"prompt_tokens":     totals.PromptTokens,
		"completion_tokens": totals.CompletionTokens,
		"spent_amount":      totals.SpentAmount,
	})
}

type generateRequest struct {
	UserID       uint   `json:"user_id" binding:"required"`
	UserCourseID uint   `json:"user_course_id" binding:"required"`
	LanguageCode string `json:"language_code"`
}

func (h *CourseHandler) Generate(c *gin.Context) {
	courseID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
		return
	}
	if req.LanguageCode == "" {
		req.LanguageCode = "en"
	}

	run, err := h.generationService.Enqueue(c.Request.Context(), req.UserID, courseID, req.UserCourseID, req.LanguageCode)
	if err != nil {
		h.log.Error("Generate enqueue failed", "error", err, "course_id", courseID)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, run)
}
