package daybook

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sahakari/sahakari-cbs/internal/platform/httpx"
	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// Handler wires HTTP endpoints for the business-day lifecycle.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers day-book routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/begin", h.dayBegin)
	r.Post("/end", h.dayEnd)
	r.Get("/status", h.status)
	r.Get("/report", h.report)
}

type dayBeginRequest struct {
	Date        string `json:"date" validate:"required,len=10"`
	OpeningCash int64  `json:"openingCash" validate:"gte=0"`
}

type dayView struct {
	Date              string `json:"date,omitempty"`
	Status            string `json:"status"`
	OpeningCash       int64  `json:"openingCash"`
	ClosingCash       int64  `json:"closingCash"`
	OpenedBy          string `json:"openedBy,omitempty"`
	ClosedBy          string `json:"closedBy,omitempty"`
	TransactionsCount int64  `json:"transactionsCount"`
}

type movementView struct {
	AccountID int64  `json:"accountId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Amount    int64  `json:"amount"`
	Entries   int64  `json:"entries"`
}

type reportView struct {
	Date              string         `json:"date"`
	OpeningCash       int64          `json:"openingCash"`
	ClosingCash       int64          `json:"closingCash"`
	TransactionsCount int64          `json:"transactionsCount"`
	Movements         []movementView `json:"movements"`
}

func (h *Handler) dayBegin(w http.ResponseWriter, r *http.Request) {
	var req dayBeginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id := shared.IdentityFromContext(r.Context())
	day, err := h.service.DayBegin(r.Context(), DayBeginInput{
		TenantID:    id.TenantID,
		Date:        shared.BSDate(req.Date),
		OpeningCash: req.OpeningCash,
		OpenedBy:    id.UserID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDayView(day))
}

func (h *Handler) dayEnd(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	report, err := h.service.DayEnd(r.Context(), id.TenantID, id.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReportView(report))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	day, err := h.service.Status(r.Context(), id.TenantID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toDayView(day))
}

func (h *Handler) report(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	date := r.URL.Query().Get("date")
	if date == "" {
		day, err := h.service.Status(r.Context(), id.TenantID)
		if err != nil || day.Status == DayStatusNone {
			httpx.ProblemKind(w, http.StatusNotFound, "NoDayOpen", "no business day to report on")
			return
		}
		date = day.Date.String()
	}
	report, err := h.service.Report(r.Context(), id.TenantID, shared.BSDate(date))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toReportView(report))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPreviousDayNotClosed):
		httpx.ProblemKind(w, http.StatusConflict, "PreviousDayNotClosed", err.Error())
	case errors.Is(err, ErrDateNotAfterLast):
		httpx.ProblemKind(w, http.StatusConflict, "PreviousDayNotClosed", err.Error())
	case errors.Is(err, ErrNoDayOpen):
		httpx.ProblemKind(w, http.StatusConflict, "NoDayOpen", err.Error())
	case errors.Is(err, ErrDayNotFound):
		httpx.ProblemKind(w, http.StatusNotFound, "NoDayOpen", err.Error())
	case errors.Is(err, shared.ErrInvalidDate):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("daybook request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toDayView(day BusinessDay) dayView {
	view := dayView{
		Date:              day.Date.String(),
		Status:            string(day.Status),
		OpeningCash:       day.OpeningCash,
		ClosingCash:       day.ClosingCash,
		OpenedBy:          day.OpenedBy,
		TransactionsCount: day.TransactionsCount,
	}
	if day.ClosedBy != nil {
		view.ClosedBy = *day.ClosedBy
	}
	return view
}

func toReportView(report EODReport) reportView {
	view := reportView{
		Date:              report.Date.String(),
		OpeningCash:       report.OpeningCash,
		ClosingCash:       report.ClosingCash,
		TransactionsCount: report.TransactionsCount,
		Movements:         make([]movementView, 0, len(report.Movements)),
	}
	for _, m := range report.Movements {
		view.Movements = append(view.Movements, movementView{
			AccountID: m.AccountID,
			Code:      m.Code,
			Name:      m.Name,
			Amount:    m.Amount,
			Entries:   m.Entries,
		})
	}
	return view
}
