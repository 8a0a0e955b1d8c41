// Package ledgerdelivery manages delivery layer of ledger transactions.
package ledgerdelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/web"
)

// Service provides service layer interface needed by ledger delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package ledgerdelivery
type Service interface {
	Submit(ctx context.Context, kind string, arg domain.MutationParams) (domain.LedgerResult, error)
	Get(ctx context.Context, viewer domain.Viewer, id int64) (domain.Transaction, error)
	List(ctx context.Context, viewer domain.Viewer, username string, pageID, pageSize int32) ([]domain.Transaction, error)
}

// Handler facilitates ledger delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns ledger handler.
func NewHandler(s Service) Handler {
	return Handler{service: s}
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

func serviceError(gctx *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidKind),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrSelfTransferNotAllowed):
		gctx.JSON(http.StatusBadRequest, web.Error(err))
	case errors.Is(err, domain.ErrCounterpartyNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		gctx.JSON(http.StatusNotFound, web.Error(err))
	default:
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
	}
}

type createRequest struct {
	Kind      string `json:"kind" binding:"required,oneof=deposit withdrawal transfer"`
	Amount    string `json:"amount" binding:"required"`
	Recipient string `json:"recipient" binding:"required_if=Kind transfer"`
}

type createData struct {
	Transaction domain.Transaction  `json:"transaction"`
	Counterpart *domain.Transaction `json:"counterpart,omitempty"`
	Balance     string              `json:"balance"`
}

// Create handles http request to submit a deposit, withdrawal or transfer.
func (h *Handler) Create(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var req createRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindError(gctx, err)
		return
	}

	viewer := middleware.Viewer(gctx)

	res, err := h.service.Submit(ctx, req.Kind, domain.MutationParams{
		Owner:        viewer.Username,
		Counterparty: req.Recipient,
		Amount:       req.Amount,
	})
	if err != nil {
		serviceError(gctx, err)
		return
	}

	gctx.JSON(http.StatusCreated, web.Response{
		Data: createData{
			Transaction: res.Transaction,
			Counterpart: res.Counterpart,
			Balance:     res.Account.Balance,
		},
	})
}

type getRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

type getData struct {
	Transaction domain.Transaction `json:"transaction"`
}

// Get handles http request to get a transaction.
func (h *Handler) Get(gctx *gin.Context) {
	var req getRequest
	if err := gctx.ShouldBindUri(&req); err != nil {
		bindError(gctx, err)
		return
	}

	t, err := h.service.Get(gctx.Request.Context(), middleware.Viewer(gctx), req.ID)
	if err != nil {
		serviceError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: getData{t}})
}

type listRequest struct {
	PageID   int32  `form:"page_id" binding:"required,min=1"`
	PageSize int32  `form:"page_size" binding:"required,min=1,max=100"`
	Username string `form:"username"`
}

type listData struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// List handles http request to list transactions, newest first.
func (h *Handler) List(gctx *gin.Context) {
	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		bindError(gctx, err)
		return
	}

	transactions, err := h.service.List(gctx.Request.Context(), middleware.Viewer(gctx), req.Username, req.PageID, req.PageSize)
	if err != nil {
		serviceError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: listData{transactions}})
}
