package interest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sahakari/sahakari-cbs/internal/platform/httpx"
	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// Handler wires HTTP endpoints for the interest batch.
type Handler struct {
	logger    *slog.Logger
	engine    *Engine
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine, validator: validator.New()}
}

// MountRoutes registers interest routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/calculate", h.calculate)
	r.Post("/post", h.post)
	r.Get("/accruals", h.accruals)
}

type batchRequest struct {
	Date string `json:"date" validate:"required,len=10"`
}

type calcResultView struct {
	Date            string `json:"date"`
	AccountsScanned int    `json:"accountsScanned"`
	AccrualsWritten int    `json:"accrualsWritten"`
	TotalGross      int64  `json:"totalGross"`
	TotalTDS        int64  `json:"totalTds"`
	TotalNet        int64  `json:"totalNet"`
}

type postFailureView struct {
	AccountID int64  `json:"accountId"`
	Reason    string `json:"reason"`
}

type postedAccrualView struct {
	AccountID     int64  `json:"accountId"`
	TransactionID string `json:"transactionId"`
}

type postResultView struct {
	Date       string              `json:"date"`
	Posted     []postedAccrualView `json:"posted"`
	Skipped    int                 `json:"skipped"`
	TotalGross int64               `json:"totalGross"`
	TotalTDS   int64               `json:"totalTds"`
	TotalNet   int64               `json:"totalNet"`
	Failures   []postFailureView   `json:"failures"`
}

type accrualView struct {
	AccountID     int64  `json:"accountId"`
	Date          string `json:"date"`
	Gross         int64  `json:"gross"`
	TDS           int64  `json:"tds"`
	Net           int64  `json:"net"`
	RateBps       int64  `json:"rateBps"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
}

func (h *Handler) calculate(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id := shared.IdentityFromContext(r.Context())
	result, err := h.engine.Calculate(r.Context(), id.TenantID, shared.BSDate(req.Date))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, calcResultView{
		Date:            result.Date.String(),
		AccountsScanned: result.AccountsScanned,
		AccrualsWritten: result.AccrualsWritten,
		TotalGross:      result.TotalGross,
		TotalTDS:        result.TotalTDS,
		TotalNet:        result.TotalNet,
	})
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id := shared.IdentityFromContext(r.Context())
	result, err := h.engine.PostAll(r.Context(), id.TenantID, shared.BSDate(req.Date), id.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	view := postResultView{
		Date:       result.Date.String(),
		Posted:     make([]postedAccrualView, 0, len(result.Posted)),
		Skipped:    result.Skipped,
		TotalGross: result.TotalGross,
		TotalTDS:   result.TotalTDS,
		TotalNet:   result.TotalNet,
		Failures:   make([]postFailureView, 0, len(result.Failures)),
	}
	for _, p := range result.Posted {
		view.Posted = append(view.Posted, postedAccrualView{AccountID: p.AccountID, TransactionID: p.TransactionID.String()})
	}
	for _, f := range result.Failures {
		view.Failures = append(view.Failures, postFailureView{AccountID: f.AccountID, Reason: f.Reason})
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) accruals(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := shared.ParseBSDate(date); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date query parameter is required as YYYY-MM-DD")
		return
	}
	id := shared.IdentityFromContext(r.Context())
	accruals, err := h.engine.Accruals(r.Context(), id.TenantID, shared.BSDate(date))
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]accrualView, 0, len(accruals))
	for _, a := range accruals {
		view := accrualView{
			AccountID: a.AccountID,
			Date:      a.BusinessDate.String(),
			Gross:     a.Gross,
			TDS:       a.TDS,
			Net:       a.Net,
			RateBps:   a.RateBps,
			Status:    string(a.Status),
		}
		if a.TransactionID != nil {
			view.TransactionID = a.TransactionID.String()
		}
		views = append(views, view)
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBatchRunning):
		httpx.ProblemKind(w, http.StatusConflict, "InterestBatchRunning", err.Error())
	case errors.Is(err, ErrNoSavingsAccounts):
		httpx.ProblemKind(w, http.StatusUnprocessableEntity, "NoSavingsAccounts", err.Error())
	case errors.Is(err, shared.ErrInvalidDate):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("interest request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
