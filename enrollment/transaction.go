/*
transaction.go - Inbound enrollment transactions and rate line-items

PURPOSE:
  Defines the transaction record the engine consumes: type, effective
  date range, coverage classifiers, dated rate line-items, and member
  sub-transactions. The engine never mutates a transaction; it only reads
  it to compute timeline mutations.

RATE VOCABULARY:
  Line-items are tagged with a fixed rate-type code:
    TOTPREMAMT   total premium amount (drives premium span slicing)
    TOTRESAMT    total responsible amount
    APTCAMT      advance premium tax credit
    CSRAMT       cost-sharing reduction amount
    OTHERPAYAMT1 other pay, first source
    OTHERPAYAMT2 other pay, second source
  "Other pay" on a premium span is the sum of the two OTHERPAY sources.

CARRY-FORWARD:
  A rate stays in force until a later line-item of the same type takes
  effect. RatesAt(date) therefore picks, per type, the latest line-item
  effective on or before the date.

SEE ALSO:
  - reconcile.go: Slices TOTPREMAMT items into premium spans
  - classify.go: Uses member sub-transactions for dependent detection
*/
package enrollment

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

type TransactionType string

const (
	TransactionAdd           TransactionType = "ADD"
	TransactionChange        TransactionType = "CHANGE"
	TransactionCancel        TransactionType = "CANCEL"
	TransactionTerm          TransactionType = "TERM"
	TransactionReinstatement TransactionType = "REINSTATEMENT"
)

// =============================================================================
// RATE LINE-ITEMS
// =============================================================================

type RateType string

const (
	RateTotalPremium     RateType = "TOTPREMAMT"
	RateTotalResponsible RateType = "TOTRESAMT"
	RateAPTC             RateType = "APTCAMT"
	RateCSR              RateType = "CSRAMT"
	RateOtherPay1        RateType = "OTHERPAYAMT1"
	RateOtherPay2        RateType = "OTHERPAYAMT2"
)

// RateItem is one dated financial line-item of a transaction.
type RateItem struct {
	Type          RateType
	EffectiveDate Date
	Amount        decimal.Decimal
	// CSRVariant rides on TOTPREMAMT items; empty elsewhere.
	CSRVariant string
}

// MemberTransaction is a member-level sub-transaction. The engine uses
// these only to detect dependent add/cancel/term side effects.
type MemberTransaction struct {
	MemberCode    string
	Type          TransactionType
	EffectiveDate Date
	Subscriber    bool
}

// =============================================================================
// TRANSACTION
// =============================================================================

// Transaction is one inbound enrollment transaction for one account.
type Transaction struct {
	ID        string
	AccountID AccountID
	Type      TransactionType

	StartDate Date
	// EndDate nil means the transaction omitted it; EffectiveEnd defaults
	// it to Dec 31 of the start year.
	EndDate *Date

	CoverageType  CoverageType
	GroupPolicyID string
	PlanID        string
	CSRVariant    string

	StateCode    string
	Marketplace  string
	BusinessUnit string

	// ExchangeSubscriberID is derived from the household head by the
	// account layer before the engine runs.
	ExchangeSubscriberID string

	RateItems []RateItem
	Members   []MemberTransaction
}

// EffectiveEnd returns the transaction's end date, defaulting to Dec 31
// of the start year when omitted.
func (t *Transaction) EffectiveEnd() Date {
	if t.EndDate != nil {
		return *t.EndDate
	}
	return EndOfYear(t.StartDate.Year())
}

// TotalPremiumItems returns the TOTPREMAMT line-items sorted ascending by
// effective date.
func (t *Transaction) TotalPremiumItems() []RateItem {
	var items []RateItem
	for _, it := range t.RateItems {
		if it.Type == RateTotalPremium {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].EffectiveDate.Before(items[j].EffectiveDate)
	})
	return items
}

// HasRateItems reports whether the transaction carries any rate
// line-items at all.
func (t *Transaction) HasRateItems() bool { return len(t.RateItems) > 0 }

// RatesAt assembles the five monetary fields in force at the given date:
// per rate type the latest line-item effective on or before the date.
// OtherPay sums the two OTHERPAY sources.
func (t *Transaction) RatesAt(date Date) Rates {
	return Rates{
		TotalPremium:     t.rateAt(RateTotalPremium, date),
		TotalResponsible: t.rateAt(RateTotalResponsible, date),
		APTC:             t.rateAt(RateAPTC, date),
		OtherPay:         t.rateAt(RateOtherPay1, date).Add(t.rateAt(RateOtherPay2, date)),
		CSR:              t.rateAt(RateCSR, date),
	}
}

func (t *Transaction) rateAt(rt RateType, date Date) decimal.Decimal {
	var (
		amount decimal.Decimal
		found  bool
		best   Date
	)
	for _, it := range t.RateItems {
		if it.Type != rt || it.EffectiveDate.After(date) {
			continue
		}
		if !found || it.EffectiveDate.After(best) {
			amount = it.Amount
			best = it.EffectiveDate
			found = true
		}
	}
	return amount
}

// CSRVariantAt returns the CSR variant in force at the given date: the
// latest TOTPREMAMT item on or before it, falling back to the
// transaction-level variant.
func (t *Transaction) CSRVariantAt(date Date) string {
	variant := t.CSRVariant
	var best Date
	var found bool
	for _, it := range t.RateItems {
		if it.Type != RateTotalPremium || it.EffectiveDate.After(date) || it.CSRVariant == "" {
			continue
		}
		if !found || it.EffectiveDate.After(best) {
			variant = it.CSRVariant
			best = it.EffectiveDate
			found = true
		}
	}
	return variant
}

// TotalResponsibleIsZero reports whether the transaction carries a
// TOTRESAMT line-item that is exactly zero. Feeds effectuation-date
// derivation.
func (t *Transaction) TotalResponsibleIsZero() bool {
	for _, it := range t.RateItems {
		if it.Type == RateTotalResponsible {
			return it.Amount.IsZero()
		}
	}
	return false
}

// HasDependentChange reports whether any non-subscriber member is being
// added, canceled or termed by this transaction.
func (t *Transaction) HasDependentChange() bool {
	for _, m := range t.Members {
		if m.Subscriber {
			continue
		}
		switch m.Type {
		case TransactionAdd, TransactionCancel, TransactionTerm:
			return true
		}
	}
	return false
}
