package coa

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sahakari/sahakari-cbs/internal/platform/httpx"
	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// Handler wires HTTP endpoints for the account registry.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers account registry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/tree", h.tree)
	r.Post("/", h.create)
	r.Patch("/{id}", h.update)
	r.Post("/{id}/deactivate", h.deactivate)
}

type createAccountRequest struct {
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY INCOME EXPENSE"`
	ParentID *int64 `json:"parentId"`
	Code     string `json:"code"`
	IsGroup  bool   `json:"isGroup"`
	IsCash   bool   `json:"isCash"`
	NFRSMap  string `json:"nfrsMap"`
}

type updateAccountRequest struct {
	Name    string `json:"name"`
	NFRSMap string `json:"nfrsMap"`
}

type accountView struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID *int64 `json:"parentId,omitempty"`
	IsGroup  bool   `json:"isGroup"`
	IsCash   bool   `json:"isCash"`
	NFRSMap  string `json:"nfrsMap,omitempty"`
	IsActive bool   `json:"isActive"`
}

type treeView struct {
	accountView
	Children []treeView `json:"children,omitempty"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	accounts, err := h.service.ListAccounts(r.Context(), id.TenantID, AccountType(r.URL.Query().Get("type")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, toAccountView(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": views})
}

func (h *Handler) tree(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	roots, err := h.service.AccountTree(r.Context(), id.TenantID, AccountType(r.URL.Query().Get("type")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]treeView, 0, len(roots))
	for _, root := range roots {
		views = append(views, toTreeView(root))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tree": views})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	id := shared.IdentityFromContext(r.Context())
	account, err := h.service.CreateAccount(r.Context(), CreateAccountInput{
		TenantID: id.TenantID,
		Name:     req.Name,
		Type:     AccountType(req.Type),
		ParentID: req.ParentID,
		Code:     req.Code,
		IsGroup:  req.IsGroup,
		IsCash:   req.IsCash,
		NFRSMap:  req.NFRSMap,
		ActorID:  id.UserID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAccountView(account))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req updateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	id := shared.IdentityFromContext(r.Context())
	account, err := h.service.UpdateAccount(r.Context(), id.TenantID, UpdateAccountInput{
		ID:      accountID,
		Name:    req.Name,
		NFRSMap: req.NFRSMap,
		ActorID: id.UserID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountView(account))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	id := shared.IdentityFromContext(r.Context())
	account, err := h.service.DeactivateAccount(r.Context(), id.TenantID, accountID, id.UserID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAccountView(account))
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		httpx.ProblemKind(w, http.StatusNotFound, "UnknownAccount", err.Error())
	case errors.Is(err, ErrInvalidParent):
		httpx.ProblemKind(w, http.StatusBadRequest, "InvalidParent", err.Error())
	case errors.Is(err, ErrTypeMismatch):
		httpx.ProblemKind(w, http.StatusBadRequest, "TypeMismatch", err.Error())
	case errors.Is(err, ErrDuplicateCode):
		httpx.ProblemKind(w, http.StatusConflict, "DuplicateCode", err.Error())
	case errors.Is(err, ErrUnknownType):
		httpx.ProblemKind(w, http.StatusBadRequest, "TypeMismatch", err.Error())
	default:
		h.logger.Error("coa request failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toAccountView(a Account) accountView {
	return accountView{
		ID:       a.ID,
		Code:     a.Code,
		Name:     a.Name,
		Type:     string(a.Type),
		ParentID: a.ParentID,
		IsGroup:  a.IsGroup,
		IsCash:   a.IsCash,
		NFRSMap:  a.NFRSMap,
		IsActive: a.IsActive,
	}
}

func toTreeView(node *TreeNode) treeView {
	view := treeView{accountView: toAccountView(node.Account)}
	for _, child := range node.Children {
		view.Children = append(view.Children, toTreeView(child))
	}
	return view
}
