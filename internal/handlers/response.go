package handlers

import (
  "errors"
  "net/http"
  "github.com/gin-gonic/gin"
  perrors "github.com/lumira/lumira-backend/internal/pkg/errors"
)

type APIError struct {
  Message     string	`json:"message"`
  Code	      string	`json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error	      APIError	`json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(status, ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    code,
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}

// RespondDomainError maps the store/service error taxonomy onto transport
// statuses so every handler translates failures identically.
func RespondDomainError(c *gin.Context, err error) {
  switch {
  case errors.Is(err, perrors.ErrNotFound):
    RespondError(c, http.StatusNotFound, "not_found", err)
  case errors.Is(err, perrors.ErrDuplicateKey):
    RespondError(c, http.StatusConflict, "duplicate", err)
  case errors.Is(err, perrors.ErrInvalidState):
    RespondError(c, http.StatusConflict, "invalid_state", err)
  case errors.Is(err, perrors.ErrInvalidArgument),
    errors.Is(err, perrors.ErrInvalidFilter),
    errors.Is(err, perrors.ErrInvalidFilterValue):
    RespondError(c, http.StatusUnprocessableEntity, "invalid_request", err)
  case errors.Is(err, perrors.ErrGenerationFailure):
    RespondError(c, http.StatusBadGateway, "generation_failed", err)
  default:
    RespondError(c, http.StatusInternalServerError, "internal", err)
  }
}
