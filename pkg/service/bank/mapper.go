package bank

import (
	"sort"

	"github.com/amirasaad/ledger/pkg/dto"
	"github.com/amirasaad/ledger/pkg/interest"
	"github.com/amirasaad/ledger/pkg/ledger"
)

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func userRead(u *ledger.User) dto.UserRead {
	return dto.UserRead{
		Username:  u.ID,
		Accounts:  sortedKeys(u.Accounts),
		CreatedAt: u.CreatedAt,
	}
}

func interestRead(a interest.Accrual) dto.InterestRead {
	return dto.InterestRead{
		Enabled:     a.Enabled,
		RateBps:     a.RateBps,
		Type:        string(a.Type),
		LastApplied: a.LastApplied,
	}
}

// accountRead applies any due interest before reporting the balance.
func (s *Service) accountRead(a *ledger.Account) dto.AccountRead {
	balance := s.ledger.Balance(a)
	headroom := s.ledger.Headroom(a)
	out := dto.AccountRead{
		ID:               a.ID,
		Name:             a.Name,
		Balance:          balance,
		State:            string(a.State),
		PubliclyTraded:   a.PubliclyTraded,
		TotalShares:      a.TotalShares,
		Interest:         interestRead(a.Interest),
		OverdraftEnabled: a.Overdraft.Enabled,
		MaxAutoLoan:      a.Overdraft.MaxAutoLoan,
		Headroom:         headroom,
		Owners:           sortedKeys(a.Owners),
		Loans:            make([]string, 0, len(a.Loans)),
		Transactions:     make([]string, 0, len(a.Transactions)),
		Shares:           sortedKeys(a.Shares),
		CreatedAt:        a.CreatedAt,
	}
	for _, loan := range a.Loans {
		out.Loans = append(out.Loans, loan.ID)
	}
	for _, tx := range a.Transactions {
		out.Transactions = append(out.Transactions, tx.ID)
	}
	return out
}

// loanRead brings the loan's interest up to date first.
func (s *Service) loanRead(loan *ledger.Loan) dto.LoanRead {
	if loan.Account != nil {
		s.ledger.OutstandingLoans(loan.Account)
	}
	out := dto.LoanRead{
		ID:             loan.ID,
		Balance:        loan.Balance,
		InitialBalance: loan.InitialBalance,
		State:          string(loan.State),
		Interest:       interestRead(loan.Interest),
		CreatedAt:      loan.CreatedAt,
	}
	if loan.Account != nil {
		out.Account = loan.Account.ID
	}
	return out
}

func transactionRead(tx *ledger.Transaction) dto.TransactionRead {
	out := dto.TransactionRead{
		ID:        tx.ID,
		Type:      string(tx.Type),
		State:     string(tx.State),
		Amount:    tx.Amount,
		Accounts:  make([]string, 0, len(tx.Accounts)),
		Reason:    tx.Reason,
		History:   make([]dto.StateChangeRead, 0, len(tx.History)),
		CreatedAt: tx.CreatedAt,
		UpdatedAt: tx.UpdatedAt,
	}
	for _, a := range tx.Accounts {
		out.Accounts = append(out.Accounts, a.ID)
	}
	if tx.Share != nil {
		out.Share = tx.Share.ID
	}
	if tx.Linked != nil {
		out.Linked = tx.Linked.ID
	}
	for _, h := range tx.History {
		out.History = append(out.History, dto.StateChangeRead{From: string(h.From), To: string(h.To), At: h.At})
	}
	return out
}

func shareRead(sh *ledger.Share) dto.ShareRead {
	out := dto.ShareRead{ID: sh.ID, CreatedAt: sh.CreatedAt}
	if sh.Issuer != nil {
		out.Issuer = sh.Issuer.ID
	}
	if sh.Owner != nil {
		out.Owner = sh.Owner.ID
	}
	return out
}
