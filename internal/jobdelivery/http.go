// Package jobdelivery exposes dead lettered verification jobs to admins.
package jobdelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

// Service provides service layer interface needed by job delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package jobdelivery
type Service interface {
	ListDead(ctx context.Context, pageID, pageSize int32) ([]domain.VerificationJob, error)
	Requeue(ctx context.Context, id int64) (domain.VerificationJob, error)
}

// Handler facilitates job delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns job handler.
func NewHandler(js Service) Handler {
	return Handler{service: js}
}

func bindError(gctx *gin.Context, err error) {
	var (
		ve     validator.ValidationErrors
		errMsg = "invalid request"
	)

	if errors.As(err, &ve) {
		errMsg = web.GetErrorMsg(ve)
	}

	zerolog.Ctx(gctx.Request.Context()).Info().Err(err).Send()
	gctx.JSON(http.StatusBadRequest, web.Response{Error: errMsg})
}

type listRequest struct {
	PageID   int32 `form:"page_id" binding:"required,min=1"`
	PageSize int32 `form:"page_size" binding:"required,min=1,max=100"`
}

type listData struct {
	Jobs []domain.VerificationJob `json:"jobs"`
}

// ListDead handles http request to list dead lettered jobs.
func (h *Handler) ListDead(gctx *gin.Context) {
	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		bindError(gctx, err)
		return
	}

	jobs, err := h.service.ListDead(gctx.Request.Context(), req.PageID, req.PageSize)
	if err != nil {
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: listData{jobs}})
}

type requeueRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

type jobData struct {
	Job domain.VerificationJob `json:"job"`
}

// Requeue handles http request to put a dead job back on the queue.
func (h *Handler) Requeue(gctx *gin.Context) {
	var req requeueRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		bindError(gctx, err)
		return
	}

	job, err := h.service.Requeue(gctx.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			gctx.JSON(http.StatusNotFound, web.Error(err))
			return
		}

		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))

		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: jobData{job}})
}
