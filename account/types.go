/*
Package account wraps the enrollment engine with account-level concerns:
member records, household-head resolution, the validation round trip, and
persistence of the engine's mutations.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: The subscriber household; owns members and a timeline
  - Member: One person on the account; exactly one is the household head
  - Exchange subscriber id: Derived from the household head's exchange
    member id, stamped onto every new enrollment span

The enrollment package has no knowledge of members; it receives the
derived exchange subscriber id on the transaction. Deriving it is this
package's job, and failing to (no household head) is a malformed
transaction: fail fast, nothing committed.
*/
package account

import (
	"context"
	"fmt"
	"sync"

	"github.com/zeus-health/account-processor/enrollment"
)

// =============================================================================
// ACCOUNT / MEMBER
// =============================================================================

// Member is one person on an account.
type Member struct {
	Code             string
	FirstName        string
	LastName         string
	Relationship     string
	HouseholdHead    bool
	ExchangeMemberID string
}

// Account is the subscriber household that owns an enrollment timeline.
type Account struct {
	ID            enrollment.AccountID
	AccountNumber string
	StateCode     string
	Marketplace   string
	BusinessUnit  string
	Members       []Member
}

// HouseholdHead returns the account's household-head member.
func (a *Account) HouseholdHead() (*Member, error) {
	for i := range a.Members {
		if a.Members[i].HouseholdHead {
			return &a.Members[i], nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", a.ID, enrollment.ErrNoHouseholdHead)
}

// ExchangeSubscriberID derives the subscriber identifier stamped onto
// new enrollment spans: the household head's exchange member id.
func (a *Account) ExchangeSubscriberID() (string, error) {
	hoh, err := a.HouseholdHead()
	if err != nil {
		return "", err
	}
	if hoh.ExchangeMemberID == "" {
		return "", fmt.Errorf("account %s: household head %s has no exchange member id: %w",
			a.ID, hoh.Code, enrollment.ErrMalformedTransaction)
	}
	return hoh.ExchangeMemberID, nil
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

// Store persists account and member records.
type Store interface {
	// Account returns the account, or ErrAccountNotFound.
	Account(ctx context.Context, id enrollment.AccountID) (*Account, error)

	// SaveAccount upserts the account and its members.
	SaveAccount(ctx context.Context, a *Account) error

	// AccountIDs lists every known account (for the delinquency sweep).
	AccountIDs(ctx context.Context) ([]enrollment.AccountID, error)
}

// MemoryStore is an in-memory Store for tests and dev.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[enrollment.AccountID]*Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[enrollment.AccountID]*Account)}
}

func (m *MemoryStore) Account(_ context.Context, id enrollment.AccountID) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, enrollment.ErrAccountNotFound)
	}
	copied := *a
	copied.Members = append([]Member(nil), a.Members...)
	return &copied, nil
}

func (m *MemoryStore) SaveAccount(_ context.Context, a *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *a
	copied.Members = append([]Member(nil), a.Members...)
	m.accounts[a.ID] = &copied
	return nil
}

func (m *MemoryStore) AccountIDs(_ context.Context) ([]enrollment.AccountID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]enrollment.AccountID, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	return ids, nil
}
