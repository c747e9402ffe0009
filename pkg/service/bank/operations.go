package bank

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/amirasaad/ledger/pkg/domain"
	"github.com/amirasaad/ledger/pkg/dto"
	"github.com/amirasaad/ledger/pkg/interest"
	"github.com/amirasaad/ledger/pkg/ledger"
)

func (s *Service) get(caller *ledger.User, payload json.RawMessage) (any, error) {
	in, err := bind[dto.GetRequest](s.validate, payload)
	if err != nil {
		return nil, err
	}
	switch in.Collection {
	case ledger.CollUsers:
		if in.ID != caller.ID {
			return nil, fmt.Errorf("user %s: %w", in.ID, domain.ErrForbidden)
		}
		return userRead(caller), nil
	case ledger.CollAccounts:
		a, err := s.ownedAccount(caller, in.ID)
		if err != nil {
			return nil, err
		}
		return s.accountRead(a), nil
	case ledger.CollLoans:
		loan, err := s.ledger.Loan(in.ID)
		if err != nil {
			return nil, err
		}
		if !caller.Owns(loan.Account) {
			return nil, fmt.Errorf("loan %s: %w", in.ID, domain.ErrForbidden)
		}
		return s.loanRead(loan), nil
	case ledger.CollTransactions:
		tx, err := s.involvedTransaction(caller, in.ID)
		if err != nil {
			return nil, err
		}
		return transactionRead(tx), nil
	case ledger.CollShares:
		sh, err := s.ledger.Share(in.ID)
		if err != nil {
			return nil, err
		}
		return shareRead(sh), nil
	}
	return nil, fmt.Errorf("collection %q: %w", in.Collection, domain.ErrValidation)
}

func (s *Service) register(_ *ledger.User, payload json.RawMessage) (any, error) {
	in, err := bind[dto.Credentials](s.validate, payload)
	if err != nil {
		return nil, err
	}
	u, err := s.ledger.CreateUser(in.Username, in.Credential)
	if err != nil {
		return nil, err
	}
	return userRead(u), nil
}

func (s *Service) logIn(_ *ledger.User, payload json.RawMessage) (any, error) {
	in, err := bind[dto.Credentials](s.validate, payload)
	if err != nil {
		return nil, err
	}
	u, err := s.ledger.Authenticate(in.Username, in.Credential)
	if err != nil {
		return nil, err
	}
	return userRead(u), nil
}

func (s *Service) createAccount(caller *ledger.User, payload json.RawMessage) (any, error) {
	in, err := bind[dto.CreateAccountRequest](s.validate, payload)
	if err != nil {
		return nil, err
	}
	defaults := s.ledger.AccountDefaults()
	opts := []ledger.AccountOption{ledger.WithPubliclyTraded(in.PubliclyTraded)}
	if in.InterestRateBps != nil || in.InterestType != "" {
		rate, typ := defaults.InterestRateBps, defaults.InterestType
		if in.InterestRateBps != nil {
			rate = *in.InterestRateBps
		}
		if in.InterestType != "" {
			typ = interest.Type(in.InterestType)
		}
		opts = append(opts, ledger.WithInterest(rate, typ))
	}
	if in.InterestEnabled != nil && !*in.InterestEnabled {
		opts = append(opts, ledger.WithoutInterest())
	}
	if in.OverdraftEnabled != nil {
		opts = append(opts, ledger.WithOverdraft(*in.OverdraftEnabled, defaults.MaxAutoLoan))
	}
	a, err := s.ledger.CreateAccount(caller, in.Name, opts...)
	if err != nil {
		return nil, err
	}
	return s.accountRead(a), nil
}

func (s *Service) listAccounts(caller *ledger.User, _ json.RawMessage) (any, error) {
	accounts := make([]*ledger.Account, 0, len(caller.Accounts))
	for _, a := range caller.Accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	out := make([]dto.AccountRead, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, s.accountRead(a))
	}
	return out, nil
}

func (s *Service) transfer(caller *ledger.User, payload json.RawMessage) (any, error) {
	in, err := bind[dto.TransferRequest](s.validate, payload)
	if err != nil {
		return nil, err
	}
	from, err := s.ownedAccount(caller, in.From)
	if err != nil {
		return nil, err
	}
	to, err := s.ledger.Account(in.To)
	if err != nil {
		return nil, err
	}
	tx, err := s.ledger.Transfer(from, to, in.Amount)
	if err != nil {
		return nil, err
	}
	return transactionRead(tx), nil
}

func (s *Service) deposit(caller *ledger.User, payload json.RawMessage) (any, error) {
	in, err := bind[dto.AmountRequest](s.validate, payload)
	if err != nil {
		return nil, err
	}
	a, err := s.ownedAccount(caller, in.Account)
	if err != nil {
		return nil, err
	}
	tx, err := s.ledger.Deposit(a, in.Amount)
	if err != nil {
		return nil, err
	}
	return transactionRead(tx), nil
}

func (s *Service) withdraw(caller *ledger.User, payload json.RawMessage) (any, error) {
	in, err := bind[dto.AmountRequest](s.validate, payload)
	if err != nil {
		return nil, err
	}
	a, err := s.ownedAccount(caller, in.Account)
	if err != nil {
		return nil, err
	}
	tx, err := s.ledger.Withdraw(a, in.Amount)
	if err != nil {
		return nil, err
	}
	return transactionRead(tx), nil
}

// approveTransaction is done by an owner of the receiving account.
func (s *Service) approveTransaction(caller *ledger.User, payload json.RawMessage) (any, error) {
	tx, err := s.transactionFor(caller, payload, func(tx *ledger.Transaction) bool {
		return caller.Owns(tx.Destination())
	})
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Approve(tx); err != nil {
		return nil, err
	}
	return transactionRead(tx), nil
}

func (s *Service) cancelTransaction(caller *ledger.User, payload json.RawMessage) (any, error) {
	tx, err := s.transactionFor(caller, payload, func(tx *ledger.Transaction) bool {
		return involves(caller, tx)
	})
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Cancel(tx); err != nil {
		return nil, err
	}
	return transactionRead(tx), nil
}

// revertTransaction is done by the side that gives the money back: the
// receiving owner of a currency transfer, the seller of a share and the
// owner of a deposit. Withdrawals are never reverted on request.
func (s *Service) revertTransaction(caller *ledger.User, payload json.RawMessage) (any, error) {
	tx, err := s.transactionFor(caller, payload, func(tx *ledger.Transaction) bool {
		switch tx.Type {
		case ledger.CurrencyTransfer:
			return caller.Owns(tx.Destination())
		case ledger.Withdrawal:
			return false
		default:
			return caller.Owns(tx.Source())
		}
	})
	if err != nil {
		return nil, err
	}
	if err := s.ledger.Revert(tx); err != nil {
		return nil, err
	}
	return transactionRead(tx), nil
}

func (s *Service) requestLoan(caller *ledger.User, payload json.RawMessage) (any, error) {
	in, err := bind[dto.AmountRequest](s.validate, payload)
	if err != nil {
		return nil, err
	}
	a, err := s.ownedAccount(caller, in.Account)
	if err != nil {
		return nil, err
	}
	loan, err := s.ledger.CreateLoan(a, in.Amount)
	if err != nil {
		return nil, err
	}
	return s.loanRead(loan), nil
}

func (s *Service) payLoan(caller *ledger.User, payload json.RawMessage) (any, error) {
	in, err := bind[dto.PayLoanRequest](s.validate, payload)
	if err != nil {
		return nil, err
	}
	from, err := s.ownedAccount(caller, in.Account)
	if err != nil {
		return nil, err
	}
	loan, err := s.ledger.Loan(in.Loan)
	if err != nil {
		return nil, err
	}
	paid, err := s.ledger.PayLoan(loan, from, in.Amount)
	if err != nil {
		return nil, err
	}
	return dto.PaymentRead{Paid: paid, Loan: s.loanRead(loan)}, nil
}

func (s *Service) issueShare(caller *ledger.User, payload json.RawMessage) (any, error) {
	in, err := bind[dto.AccountRequest](s.validate, payload)
	if err != nil {
		return nil, err
	}
	a, err := s.ownedAccount(caller, in.Account)
	if err != nil {
		return nil, err
	}
	sh, err := s.ledger.CreateShare(a)
	if err != nil {
		return nil, err
	}
	return shareRead(sh), nil
}

// transferShare is requested by the buyer, who owns the To account.
func (s *Service) transferShare(caller *ledger.User, payload json.RawMessage) (any, error) {
	in, err := bind[dto.TransferShareRequest](s.validate, payload)
	if err != nil {
		return nil, err
	}
	buyer, err := s.ownedAccount(caller, in.To)
	if err != nil {
		return nil, err
	}
	sh, err := s.ledger.Share(in.Share)
	if err != nil {
		return nil, err
	}
	sale, err := s.ledger.TransferShare(sh, buyer, in.Price)
	if err != nil {
		return nil, err
	}
	return dto.ShareSaleRead{Sale: transactionRead(sale), Payment: transactionRead(sale.Linked)}, nil
}

func (s *Service) freezeAccount(caller *ledger.User, payload json.RawMessage) (any, error) {
	return s.setFrozen(caller, payload, true)
}

func (s *Service) unfreezeAccount(caller *ledger.User, payload json.RawMessage) (any, error) {
	return s.setFrozen(caller, payload, false)
}

func (s *Service) setFrozen(caller *ledger.User, payload json.RawMessage, frozen bool) (any, error) {
	in, err := bind[dto.AccountRequest](s.validate, payload)
	if err != nil {
		return nil, err
	}
	a, err := s.ownedAccount(caller, in.Account)
	if err != nil {
		return nil, err
	}
	if frozen {
		s.ledger.Freeze(a)
	} else {
		s.ledger.Unfreeze(a)
	}
	return s.accountRead(a), nil
}

func (s *Service) ownedAccount(caller *ledger.User, id string) (*ledger.Account, error) {
	a, err := s.ledger.Account(id)
	if err != nil {
		return nil, err
	}
	if !caller.Owns(a) {
		return nil, fmt.Errorf("account %s: %w", id, domain.ErrForbidden)
	}
	return a, nil
}

func (s *Service) involvedTransaction(caller *ledger.User, id string) (*ledger.Transaction, error) {
	tx, err := s.ledger.Transaction(id)
	if err != nil {
		return nil, err
	}
	if !involves(caller, tx) {
		return nil, fmt.Errorf("transaction %s: %w", id, domain.ErrForbidden)
	}
	return tx, nil
}

func (s *Service) transactionFor(caller *ledger.User, payload json.RawMessage, allowed func(*ledger.Transaction) bool) (*ledger.Transaction, error) {
	in, err := bind[dto.TransactionRequest](s.validate, payload)
	if err != nil {
		return nil, err
	}
	tx, err := s.ledger.Transaction(in.Transaction)
	if err != nil {
		return nil, err
	}
	if !allowed(tx) {
		return nil, fmt.Errorf("transaction %s: %w", tx.ID, domain.ErrForbidden)
	}
	return tx, nil
}

func involves(u *ledger.User, tx *ledger.Transaction) bool {
	for _, a := range tx.Accounts {
		if u.Owns(a) {
			return true
		}
	}
	return false
}
