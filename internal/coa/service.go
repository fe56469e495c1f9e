package coa

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sahakari/sahakari-cbs/internal/shared"
)

// AuditPort records registry mutations in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the account registry lifecycle.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ListAccounts returns the tenant's accounts, optionally filtered by type.
func (s *Service) ListAccounts(ctx context.Context, tenantID string, accType AccountType) ([]Account, error) {
	if accType != "" && !isKnownType(accType) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, accType)
	}
	return s.repo.List(ctx, tenantID, accType)
}

// GetAccount returns a single account by id.
func (s *Service) GetAccount(ctx context.Context, tenantID string, id int64) (Account, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// AccountTree returns the reconstructed hierarchy, optionally filtered by type.
func (s *Service) AccountTree(ctx context.Context, tenantID string, accType AccountType) ([]*TreeNode, error) {
	accounts, err := s.ListAccounts(ctx, tenantID, accType)
	if err != nil {
		return nil, err
	}
	return BuildTree(accounts), nil
}

// CreateAccount inserts a new account. When the code is omitted it derives
// the next unused code within the parent's numeric namespace.
func (s *Service) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	if err := in.Validate(); err != nil {
		return Account{}, err
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if in.ParentID != nil {
			parent, err := tx.GetForUpdate(ctx, in.TenantID, *in.ParentID)
			if err != nil {
				if errors.Is(err, ErrAccountNotFound) {
					return fmt.Errorf("%w: parent %d", ErrInvalidParent, *in.ParentID)
				}
				return err
			}
			if !parent.IsGroup {
				return fmt.Errorf("%w: parent %s is a ledger account", ErrInvalidParent, parent.Code)
			}
			if parent.Type != in.Type {
				return fmt.Errorf("%w: parent %s is %s, child is %s", ErrTypeMismatch, parent.Code, parent.Type, in.Type)
			}
		}
		code := in.Code
		if code == "" {
			generated, err := s.nextCode(ctx, tx, in)
			if err != nil {
				return err
			}
			code = generated
		}
		created, err := tx.Insert(ctx, in, code)
		if err != nil {
			return err
		}
		account = created
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.recordAudit(ctx, in.TenantID, in.ActorID, "coa.create", account)
	return account, nil
}

// UpdateAccount mutates name and NFRS mapping. Code and type stay fixed.
func (s *Service) UpdateAccount(ctx context.Context, tenantID string, in UpdateAccountInput) (Account, error) {
	if in.ID == 0 {
		return Account{}, errors.New("coa: account id required")
	}
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, tenantID, in.ID)
		if err != nil {
			return err
		}
		name := in.Name
		if name == "" {
			name = current.Name
		}
		updated, err := tx.UpdateNameAndNFRS(ctx, tenantID, in.ID, name, in.NFRSMap)
		if err != nil {
			return err
		}
		account = updated
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.recordAudit(ctx, tenantID, in.ActorID, "coa.update", account)
	return account, nil
}

// DeactivateAccount flags the account inactive; history stays intact.
func (s *Service) DeactivateAccount(ctx context.Context, tenantID string, id int64, actorID string) (Account, error) {
	var account Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, tenantID, id); err != nil {
			return err
		}
		updated, err := tx.SetActive(ctx, tenantID, id, false)
		if err != nil {
			return err
		}
		account = updated
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	s.recordAudit(ctx, tenantID, actorID, "coa.deactivate", account)
	return account, nil
}

// maxCodeProbes bounds the scan for a free code above the seed.
const maxCodeProbes = 100

// nextCode derives the next unused numeric code among the siblings. Roots
// seed from the type base; children seed from the parent's code. Generated
// codes keep the sibling width so lexical order matches numeric order.
// Codes are unique across the whole tenant, not just among siblings, so
// the candidate is probed upward until a free code is found.
func (s *Service) nextCode(ctx context.Context, tx TxRepository, in CreateAccountInput) (string, error) {
	siblings, err := tx.SiblingCodes(ctx, in.TenantID, in.ParentID, in.Type)
	if err != nil {
		return "", err
	}
	max := int64(0)
	width := 0
	for _, code := range siblings {
		n, err := strconv.ParseInt(code, 10, 64)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
		if len(code) > width {
			width = len(code)
		}
	}
	var candidate string
	if max == 0 {
		candidate, err = s.codeSeed(ctx, tx, in)
		if err != nil {
			return "", err
		}
	} else {
		candidate = padCode(max+1, width)
	}
	for i := 0; i < maxCodeProbes; i++ {
		exists, err := tx.CodeExists(ctx, in.TenantID, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		n, err := strconv.ParseInt(candidate, 10, 64)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrDuplicateCode, candidate)
		}
		candidate = padCode(n+1, len(candidate))
	}
	return "", fmt.Errorf("%w: no free code near %s", ErrDuplicateCode, candidate)
}

func padCode(n int64, width int) string {
	code := strconv.FormatInt(n, 10)
	for len(code) < width {
		code = "0" + code
	}
	return code
}

func (s *Service) codeSeed(ctx context.Context, tx TxRepository, in CreateAccountInput) (string, error) {
	if in.ParentID == nil {
		return typeBaseCode(in.Type), nil
	}
	parent, err := tx.GetForUpdate(ctx, in.TenantID, *in.ParentID)
	if err != nil {
		return "", err
	}
	n, err := strconv.ParseInt(parent.Code, 10, 64)
	if err != nil {
		// Non-numeric parent namespace, fall back to suffixing.
		return parent.Code + "1", nil
	}
	return strconv.FormatInt(n+1, 10), nil
}

func typeBaseCode(t AccountType) string {
	switch t {
	case AccountTypeAsset:
		return "1000"
	case AccountTypeLiability:
		return "2000"
	case AccountTypeEquity:
		return "3000"
	case AccountTypeIncome:
		return "4000"
	default:
		return "5000"
	}
}

func (s *Service) recordAudit(ctx context.Context, tenantID, actorID, action string, account Account) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		TenantID: tenantID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "account",
		EntityID: strconv.FormatInt(account.ID, 10),
		Meta: map[string]any{
			"code": account.Code,
			"type": string(account.Type),
		},
		At: s.now(),
	})
}
