package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumira/lumira-backend/internal/logger"
	"github.com/lumira/lumira-backend/internal/repos"
	"github.com/lumira/lumira-backend/internal/types"
)

// ReferenceHandler serves the operator-tunable configuration entities:
// prompts, model pricing and translations.
type ReferenceHandler struct {
	log          *logger.Logger
	prompts      repos.PromptRepo
	gptModels    repos.GPTModelRepo
	translations repos.TranslationRepo
}

func NewReferenceHandler(
	log *logger.Logger,
	prompts repos.PromptRepo,
	gptModels repos.GPTModelRepo,
	translations repos.TranslationRepo,
) *ReferenceHandler {
	return &ReferenceHandler{
		log:          log.With("handler", "ReferenceHandler"),
		prompts:      prompts,
		gptModels:    gptModels,
		translations: translations,
	}
}

func (h *ReferenceHandler) GetPrompt(c *gin.Context) {
	name := c.Param("name")
	prompt, err := h.prompts.GetByName(c.Request.Context(), nil, name)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, prompt)
}

func (h *ReferenceHandler) ListPrompts(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := h.prompts.List(c.Request.Context(), nil, page, pageSize)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *ReferenceHandler) CreatePrompt(c *gin.Context) {
	var row types.Prompt
	if err := c.ShouldBindJSON(&row); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
		return
	}
	created, err := h.prompts.Create(c.Request.Context(), nil, &row)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, created)
}

func (h *ReferenceHandler) GetGPTModel(c *gin.Context) {
	name := c.Param("name")
	model, err := h.gptModels.GetByName(c.Request.Context(), nil, name)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, model)
}

func (h *ReferenceHandler) ListGPTModels(c *gin.Context) {
	page, pageSize := pageParams(c)
	result, err := h.gptModels.List(c.Request.Context(), nil, page, pageSize)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *ReferenceHandler) GetTranslation(c *gin.Context) {
	messageKey := c.Param("key")
	languageCode := c.DefaultQuery("lang", "en")
	translation, err := h.translations.Get(c.Request.Context(), nil, messageKey, languageCode)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, translation)
}

func (h *ReferenceHandler) CreateTranslation(c *gin.Context) {
	var row types.Translation
	if err := c.ShouldBindJSON(&row); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
		return
	}
	created, err := h.translations.Create(c.Request.Context(), nil, &row)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, created)
}

func (h *ReferenceHandler) ListTranslations(c *gin.Context) {
	languageCode := c.DefaultQuery("lang", "en")
	page, pageSize := pageParams(c)
	result, err := h.translations.ListByLanguage(c.Request.Context(), nil, languageCode, page, pageSize)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, result)
}
