package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sahakari/sahakari-cbs/internal/coa"
	"github.com/sahakari/sahakari-cbs/internal/platform/httpx"
	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// Handler wires HTTP endpoints for posting and querying the ledger.
type Handler struct {
	logger    *slog.Logger
	poster    *Poster
	balances  *BalanceService
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, poster *Poster, balances *BalanceService) *Handler {
	return &Handler{logger: logger, poster: poster, balances: balances, validator: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/transactions", h.post)
	r.Get("/transactions", h.listByDate)
	r.Get("/transactions/{id}", h.getTransaction)
	r.Get("/accounts/{id}/balance", h.accountBalance)
}

type entryRequest struct {
	AccountID int64 `json:"accountId" validate:"required"`
	Amount    int64 `json:"amount" validate:"required"`
}

type postRequest struct {
	Date    string         `json:"date" validate:"required,len=10"`
	Memo    string         `json:"memo" validate:"max=500"`
	Entries []entryRequest `json:"entries" validate:"required,min=2,dive"`
}

type entryView struct {
	ID        int64 `json:"id"`
	AccountID int64 `json:"accountId"`
	Amount    int64 `json:"amount"`
}

type transactionView struct {
	ID        string      `json:"id"`
	Date      string      `json:"date"`
	Memo      string      `json:"memo,omitempty"`
	CreatedBy string      `json:"createdBy"`
	Entries   []entryView `json:"entries"`
}

type balanceView struct {
	AccountID int64  `json:"accountId"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	IsGroup   bool   `json:"isGroup"`
	AsOf      string `json:"asOf,omitempty"`
	Amount    int64  `json:"amount"`
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id := shared.IdentityFromContext(r.Context())
	in := PostingInput{
		TenantID:     id.TenantID,
		BusinessDate: shared.BSDate(req.Date),
		Memo:         req.Memo,
		CreatedBy:    id.UserID,
	}
	for _, e := range req.Entries {
		in.Entries = append(in.Entries, EntryInput{AccountID: e.AccountID, Amount: e.Amount})
	}
	txn, err := h.poster.Post(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toTransactionView(txn))
}

func (h *Handler) listByDate(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if _, err := shared.ParseBSDate(date); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date query parameter is required as YYYY-MM-DD")
		return
	}
	id := shared.IdentityFromContext(r.Context())
	txns, err := h.poster.ListByDate(r.Context(), id.TenantID, shared.BSDate(date))
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]transactionView, 0, len(txns))
	for _, txn := range txns {
		views = append(views, toTransactionView(txn))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}
	id := shared.IdentityFromContext(r.Context())
	txn, err := h.poster.GetTransaction(r.Context(), id.TenantID, txID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTransactionView(txn))
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid account id")
		return
	}
	var asOf shared.BSDate
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		parsed, err := shared.ParseBSDate(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		asOf = parsed
	}
	id := shared.IdentityFromContext(r.Context())
	balance, err := h.balances.AccountBalance(r.Context(), id.TenantID, accountID, asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balanceView{
		AccountID: balance.AccountID,
		Code:      balance.Code,
		Name:      balance.Name,
		IsGroup:   balance.IsGroup,
		AsOf:      balance.AsOf.String(),
		Amount:    balance.Amount,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	kind := FailureKind(err)
	switch {
	case errors.Is(err, ErrTransactionNotFound), errors.Is(err, coa.ErrAccountNotFound):
		httpx.ProblemKind(w, http.StatusNotFound, "UnknownAccount", err.Error())
	case errors.Is(err, shared.ErrInvalidDate):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case kind == "DayNotOpen":
		httpx.ProblemKind(w, http.StatusConflict, kind, err.Error())
	case kind == "UnknownAccount":
		httpx.ProblemKind(w, http.StatusNotFound, kind, err.Error())
	case kind != "Internal":
		httpx.ProblemKind(w, http.StatusUnprocessableEntity, kind, err.Error())
	default:
		h.logger.Error("ledger request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toTransactionView(txn Transaction) transactionView {
	view := transactionView{
		ID:        txn.ID.String(),
		Date:      txn.BusinessDate.String(),
		Memo:      txn.Memo,
		CreatedBy: txn.CreatedBy,
		Entries:   make([]entryView, 0, len(txn.Entries)),
	}
	for _, e := range txn.Entries {
		view.Entries = append(view.Entries, entryView{ID: e.ID, AccountID: e.AccountID, Amount: e.Amount})
	}
	return view
}
