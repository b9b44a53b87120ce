package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lumira/lumira-backend/internal/logger"
	"github.com/lumira/lumira-backend/internal/repos"
	"github.com/lumira/lumira-backend/internal/services"
)

type UserCourseHandler struct {
	log               *logger.Logger
	db                *gorm.DB
	progressService   services.ProgressService
	generationService services.GenerationService
	userCourses       repos.UserCourseRepo
	answers           repos.AnswerRepo
}

func NewUserCourseHandler(
	log *logger.Logger,
	db *gorm.DB,
	progressService services.ProgressService,
	generationService services.GenerationService,
	userCourses repos.UserCourseRepo,
	answers repos.AnswerRepo,
) *UserCourseHandler {
	return &UserCourseHandler{
		log:               log.With("handler", "UserCourseHandler"),
		db:                db,
		progressService:   progressService,
		generationService: generationService,
		userCourses:       userCourses,
		answers:           answers,
	}
}

type enrollRequest struct {
	UserID   uint `json:"user_id" binding:"required"`
	CourseID uint `json:"course_id" binding:"required"`
}

func (h *UserCourseHandler) Enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
		return
	}

	uc, err := h.progressService.Enroll(c.Request.Context(), req.UserID, req.CourseID)
	if err != nil {
		h.log.Error("Enroll failed", "error", err, "user_id", req.UserID, "course_id", req.CourseID)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, uc)
}

func (h *UserCourseHandler) GetByID(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	uc, err := h.userCourses.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, uc)
}

func (h *UserCourseHandler) GetActive(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	uc, err := h.userCourses.GetActiveByUser(c.Request.Context(), nil, userID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if uc == nil {
		RespondError(c, http.StatusNotFound, "not_found", nil)
		return
	}
	RespondOK(c, uc)
}

func (h *UserCourseHandler) ListByUser(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	view := c.DefaultQuery("view", "all")
	switch view {
	case "unfinished":
		result, err := h.userCourses.ListUnfinishedByUser(c.Request.Context(), nil, userID, page, pageSize)
		if err != nil {
			RespondDomainError(c, err)
			return
		}
		RespondOK(c, result)
	case "archived":
		result, err := h.userCourses.ListArchivedByUser(c.Request.Context(), nil, userID, page, pageSize)
		if err != nil {
			RespondDomainError(c, err)
			return
		}
		RespondOK(c, result)
	default:
		result, err := h.userCourses.ListByUser(c.Request.Context(), nil, userID, page, pageSize)
		if err != nil {
			RespondDomainError(c, err)
			return
		}
		RespondOK(c, result)
	}
}

func (h *UserCourseHandler) NextStage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	uc, err := h.progressService.NextStage(c.Request.Context(), id)
	if err != nil {
		h.log.Error("NextStage failed", "error", err, "user_course_id", id)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, uc)
}

func (h *UserCourseHandler) Archive(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	uc, err := h.progressService.Archive(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, uc)
}

func (h *UserCourseHandler) Pause(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	uc, err := h.progressService.Pause(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, uc)
}

func (h *UserCourseHandler) Resume(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	uc, err := h.progressService.Resume(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, uc)
}

func (h *UserCourseHandler) Restart(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	uc, err := h.progressService.Restart(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, uc)
}

type rateRequest struct {
	Rating int `json:"rating" binding:"required"`
}

func (h *UserCourseHandler) Rate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req rateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
		return
	}
	uc, err := h.progressService.Rate(c.Request.Context(), id, req.Rating)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, uc)
}

type answerRequest struct {
	UserID     uint   `json:"user_id" binding:"required"`
	QuestionID uint   `json:"question_id" binding:"required"`
	Answer     string `json:"answer" binding:"required"`
}

func (h *UserCourseHandler) SubmitAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
		return
	}

	answer, err := h.generationService.CheckAnswer(c.Request.Context(), req.UserID, req.QuestionID, req.Answer)
	if err != nil {
		h.log.Error("SubmitAnswer failed", "error", err, "user_id", req.UserID, "question_id", req.QuestionID)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, answer)
}

func (h *UserCourseHandler) ListAnswers(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	page, pageSize := pageParams(c)
	result, err := h.answers.ListByUser(c.Request.Context(), nil, userID, page, pageSize)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, result)
}
