// Package bank is the request handler in front of the ledger. It decodes
// {operation, payload} requests, validates and authorizes them, and runs
// each one to completion under a single writer lock.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/dto"
	"github.com/amirasaad/ledger/pkg/ledger"
	"github.com/amirasaad/ledger/pkg/repository"
	"github.com/go-playground/validator/v10"
)

// Operation names accepted by Handle.
const (
	OpGet                = "get"
	OpRegister           = "register"
	OpLogIn              = "logIn"
	OpCreateAccount      = "createAccount"
	OpListAccounts       = "listAccounts"
	OpTransfer           = "transfer"
	OpDeposit            = "deposit"
	OpWithdraw           = "withdraw"
	OpApproveTransaction = "approveTransaction"
	OpCancelTransaction  = "cancelTransaction"
	OpRevertTransaction  = "revertTransaction"
	OpRequestLoan        = "requestLoan"
	OpPayLoan            = "payLoan"
	OpIssueShare         = "issueShare"
	OpTransferShare      = "transferShare"
	OpFreezeAccount      = "freezeAccount"
	OpUnfreezeAccount    = "unfreezeAccount"
)

type handlerFunc func(caller *ledger.User, payload json.RawMessage) (any, error)

type handler struct {
	// anonymous handlers run without a resolved caller.
	anonymous bool
	fn        handlerFunc
}

// Service serializes access to one ledger and persists it through a
// SnapshotStore.
type Service struct {
	mu       sync.Mutex
	ledger   *ledger.Ledger
	store    repository.SnapshotStore
	validate *validator.Validate
	logger   *slog.Logger
	handlers map[string]handler
}

// New creates a Service over l. store may be nil when persistence is not wanted.
func New(l *ledger.Ledger, store repository.SnapshotStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		ledger:   l,
		store:    store,
		validate: validator.New(),
		logger:   logger,
	}
	s.handlers = map[string]handler{
		OpGet:                {fn: s.get},
		OpRegister:           {anonymous: true, fn: s.register},
		OpLogIn:              {anonymous: true, fn: s.logIn},
		OpCreateAccount:      {fn: s.createAccount},
		OpListAccounts:       {fn: s.listAccounts},
		OpTransfer:           {fn: s.transfer},
		OpDeposit:            {fn: s.deposit},
		OpWithdraw:           {fn: s.withdraw},
		OpApproveTransaction: {fn: s.approveTransaction},
		OpCancelTransaction:  {fn: s.cancelTransaction},
		OpRevertTransaction:  {fn: s.revertTransaction},
		OpRequestLoan:        {fn: s.requestLoan},
		OpPayLoan:            {fn: s.payLoan},
		OpIssueShare:         {fn: s.issueShare},
		OpTransferShare:      {fn: s.transferShare},
		OpFreezeAccount:      {fn: s.freezeAccount},
		OpUnfreezeAccount:    {fn: s.unfreezeAccount},
	}
	return s
}

// Operations lists the accepted operation names in sorted order.
func (s *Service) Operations() []string {
	ops := make([]string, 0, len(s.handlers))
	for op := range s.handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Handle runs req on behalf of caller, the username the channel has
// already authenticated. caller may be empty for register and logIn.
func (s *Service) Handle(ctx context.Context, caller string, req dto.Request) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, ok := s.handlers[req.Operation]
	if !ok {
		return nil, fmt.Errorf("%q: %w", req.Operation, domain.ErrUnknownOperation)
	}
	log := s.logger.With("operation", req.Operation, "caller", caller)

	s.mu.Lock()
	defer s.mu.Unlock()

	var user *ledger.User
	if !h.anonymous {
		u, err := s.ledger.User(caller)
		if err != nil {
			log.Info("Request from unknown caller")
			return nil, domain.ErrUnauthorized
		}
		user = u
	}
	result, err := h.fn(user, req.Payload)
	if err != nil {
		log.Info("Request refused", "error", err)
		return nil, err
	}
	log.Debug("Request handled")
	return result, nil
}

// Tick drives every non-terminal transaction and returns the number of
// state changes made.
func (s *Service) Tick(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.TickAll()
}

// Save serializes the ledger between requests and writes it to the store.
// The store write happens outside the lock.
func (s *Service) Save(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	data, err := s.ledger.Marshal()
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}
	if err := s.store.Save(ctx, data); err != nil {
		return err
	}
	s.logger.Info("Ledger saved", "bytes", len(data))
	return nil
}

// Restore loads the latest snapshot into the ledger. An empty store leaves
// the ledger empty. When the current snapshot does not decode and the store
// keeps a backup, the backup is tried.
func (s *Service) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	data, err := s.store.Load(ctx)
	if errors.Is(err, repository.ErrNoSnapshot) {
		s.logger.Info("No snapshot found, starting with an empty ledger")
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.ledger.Load(data)
	if err == nil {
		s.logger.Info("Ledger restored", "bytes", len(data), "accounts", len(s.ledger.Accounts))
		return nil
	}
	backups, ok := s.store.(repository.BackupLoader)
	if !ok {
		return fmt.Errorf("restore ledger: %w", err)
	}
	s.logger.Warn("Snapshot unreadable, trying backup", "error", err)
	prev, berr := backups.LoadBackup(ctx)
	if berr != nil {
		return fmt.Errorf("restore ledger: %w", errors.Join(err, berr))
	}
	if berr = s.ledger.Load(prev); berr != nil {
		return fmt.Errorf("restore ledger from backup: %w", errors.Join(err, berr))
	}
	s.logger.Warn("Ledger restored from backup", "bytes", len(prev))
	return nil
}

// Stats summarizes the ledger for health reporting.
type Stats struct {
	Users        int `json:"users"`
	Accounts     int `json:"accounts"`
	Transactions int `json:"transactions"`
	Pending      int `json:"pending"`
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Users:        len(s.ledger.Users),
		Accounts:     len(s.ledger.Accounts),
		Transactions: len(s.ledger.Transactions),
		Pending:      len(s.ledger.Pending()),
	}
}

// bind decodes payload into T and validates it.
func bind[T any](v *validator.Validate, payload json.RawMessage) (*T, error) {
	var in T
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return nil, fmt.Errorf("decode payload: %v: %w", err, domain.ErrValidation)
	}
	if err := v.Struct(in); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrValidation)
	}
	return &in, nil
}

// Authenticate runs logIn for the auth service.
func (s *Service) Authenticate(ctx context.Context, username, credential string) (dto.UserRead, error) {
	payload, err := json.Marshal(dto.Credentials{Username: username, Credential: credential})
	if err != nil {
		return dto.UserRead{}, err
	}
	out, err := s.Handle(ctx, "", dto.Request{Operation: OpLogIn, Payload: payload})
	if err != nil {
		return dto.UserRead{}, err
	}
	return out.(dto.UserRead), nil
}
