/*
Package factory provides JSON to Go transaction conversion.

PURPOSE:
  Converts JSON transaction documents, as produced by the upstream EDI
  translator, into enrollment.Transaction values. This keeps the wire
  shape out of the engine: the engine consumes typed records and never
  sees JSON.

JSON SCHEMA:
  {
    "transaction_id": "txn-001",
    "account_id": "acct-100",
    "type": "ADD",
    "start_date": "2023-01-01",
    "end_date": "2023-12-31",
    "coverage_type": "FAM",
    "group_policy_id": "GP-1",
    "plan_id": "PLAN-A",
    "csr_variant": "01",
    "state_code": "FL",
    "marketplace": "FFM",
    "business_unit": "IFP",
    "rates": [
      {"type": "TOTPREMAMT", "effective_date": "2023-01-01",
       "amount": "450.00", "csr_variant": "01"},
      {"type": "APTCAMT", "effective_date": "2023-01-01", "amount": "300.00"}
    ],
    "members": [
      {"member_code": "01", "type": "ADD",
       "effective_date": "2023-01-01", "subscriber": true}
    ]
  }

KEY FEATURES:
  - Validates dates and amounts at the boundary; a bad document fails
    here, not deep in the engine
  - Amounts parse into decimal.Decimal, never float64
  - Unknown transaction or rate types are rejected

SEE ALSO:
  - enrollment/transaction.go: Transaction type definition
  - api/dto.go: HTTP request/response shapes built on this package
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/zeus-health/account-processor/enrollment"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TransactionJSON is the JSON representation of an inbound transaction.
type TransactionJSON struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Type          string `json:"type"`

	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`

	CoverageType  string `json:"coverage_type,omitempty"`
	GroupPolicyID string `json:"group_policy_id"`
	PlanID        string `json:"plan_id,omitempty"`
	CSRVariant    string `json:"csr_variant,omitempty"`

	StateCode    string `json:"state_code,omitempty"`
	Marketplace  string `json:"marketplace,omitempty"`
	BusinessUnit string `json:"business_unit,omitempty"`

	Rates   []RateItemJSON  `json:"rates,omitempty"`
	Members []MemberTxnJSON `json:"members,omitempty"`
}

// RateItemJSON is one dated financial line-item. Amount is a decimal
// string ("450.00"); floats are not accepted.
type RateItemJSON struct {
	Type          string `json:"type"`
	EffectiveDate string `json:"effective_date"`
	Amount        string `json:"amount"`
	CSRVariant    string `json:"csr_variant,omitempty"`
}

// MemberTxnJSON is one member-level sub-transaction.
type MemberTxnJSON struct {
	MemberCode    string `json:"member_code"`
	Type          string `json:"type"`
	EffectiveDate string `json:"effective_date"`
	Subscriber    bool   `json:"subscriber,omitempty"`
}

// =============================================================================
// TRANSACTION FACTORY
// =============================================================================

// TransactionFactory converts JSON transactions to engine records.
type TransactionFactory struct{}

// NewTransactionFactory creates a new transaction factory.
func NewTransactionFactory() *TransactionFactory {
	return &TransactionFactory{}
}

// ParseTransaction parses a JSON document into a Transaction.
func (f *TransactionFactory) ParseTransaction(data []byte) (*enrollment.Transaction, error) {
	var tj TransactionJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, &enrollment.MalformedTransactionError{
			Field:  "body",
			Reason: fmt.Sprintf("invalid JSON: %v", err),
		}
	}
	return f.FromJSON(tj)
}

// FromJSON converts TransactionJSON to an enrollment.Transaction.
func (f *TransactionFactory) FromJSON(tj TransactionJSON) (*enrollment.Transaction, error) {
	txnType, err := parseTransactionType(tj.Type)
	if err != nil {
		return nil, malformed(tj.TransactionID, "type", err)
	}

	start, err := enrollment.ParseDate(tj.StartDate)
	if err != nil {
		return nil, malformed(tj.TransactionID, "start_date", err)
	}

	coverage, err := parseCoverageType(tj.CoverageType)
	if err != nil {
		return nil, malformed(tj.TransactionID, "coverage_type", err)
	}

	txn := &enrollment.Transaction{
		ID:        tj.TransactionID,
		AccountID: enrollment.AccountID(tj.AccountID),
		Type:      txnType,

		StartDate: start,

		CoverageType:  coverage,
		GroupPolicyID: tj.GroupPolicyID,
		PlanID:        tj.PlanID,
		CSRVariant:    tj.CSRVariant,

		StateCode:    tj.StateCode,
		Marketplace:  tj.Marketplace,
		BusinessUnit: tj.BusinessUnit,
	}

	if tj.EndDate != "" {
		end, err := enrollment.ParseDate(tj.EndDate)
		if err != nil {
			return nil, malformed(tj.TransactionID, "end_date", err)
		}
		txn.EndDate = &end
	}

	for i, rj := range tj.Rates {
		item, err := parseRateItem(rj)
		if err != nil {
			return nil, malformed(tj.TransactionID, fmt.Sprintf("rates[%d]", i), err)
		}
		txn.RateItems = append(txn.RateItems, item)
	}

	for i, mj := range tj.Members {
		member, err := parseMemberTxn(mj)
		if err != nil {
			return nil, malformed(tj.TransactionID, fmt.Sprintf("members[%d]", i), err)
		}
		txn.Members = append(txn.Members, member)
	}

	return txn, nil
}

// ToJSON converts a Transaction back to its JSON representation.
func (f *TransactionFactory) ToJSON(txn *enrollment.Transaction) TransactionJSON {
	tj := TransactionJSON{
		TransactionID: txn.ID,
		AccountID:     string(txn.AccountID),
		Type:          string(txn.Type),
		StartDate:     txn.StartDate.String(),
		CoverageType:  string(txn.CoverageType),
		GroupPolicyID: txn.GroupPolicyID,
		PlanID:        txn.PlanID,
		CSRVariant:    txn.CSRVariant,
		StateCode:     txn.StateCode,
		Marketplace:   txn.Marketplace,
		BusinessUnit:  txn.BusinessUnit,
	}
	if txn.EndDate != nil {
		tj.EndDate = txn.EndDate.String()
	}
	for _, it := range txn.RateItems {
		tj.Rates = append(tj.Rates, RateItemJSON{
			Type:          string(it.Type),
			EffectiveDate: it.EffectiveDate.String(),
			Amount:        it.Amount.String(),
			CSRVariant:    it.CSRVariant,
		})
	}
	for _, m := range txn.Members {
		tj.Members = append(tj.Members, MemberTxnJSON{
			MemberCode:    m.MemberCode,
			Type:          string(m.Type),
			EffectiveDate: m.EffectiveDate.String(),
			Subscriber:    m.Subscriber,
		})
	}
	return tj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseTransactionType(s string) (enrollment.TransactionType, error) {
	switch enrollment.TransactionType(s) {
	case enrollment.TransactionAdd, enrollment.TransactionChange,
		enrollment.TransactionCancel, enrollment.TransactionTerm,
		enrollment.TransactionReinstatement:
		return enrollment.TransactionType(s), nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// parseCoverageType accepts the empty string: coverage type is only
// required for ADD, which the engine's own validation enforces.
func parseCoverageType(s string) (enrollment.CoverageType, error) {
	switch enrollment.CoverageType(s) {
	case "", enrollment.CoverageFamily, enrollment.CoverageDependentOnly:
		return enrollment.CoverageType(s), nil
	default:
		return "", fmt.Errorf("unknown coverage type %q", s)
	}
}

func parseRateType(s string) (enrollment.RateType, error) {
	switch enrollment.RateType(s) {
	case enrollment.RateTotalPremium, enrollment.RateTotalResponsible,
		enrollment.RateAPTC, enrollment.RateCSR,
		enrollment.RateOtherPay1, enrollment.RateOtherPay2:
		return enrollment.RateType(s), nil
	default:
		return "", fmt.Errorf("unknown rate type %q", s)
	}
}

func parseRateItem(rj RateItemJSON) (enrollment.RateItem, error) {
	rt, err := parseRateType(rj.Type)
	if err != nil {
		return enrollment.RateItem{}, err
	}
	effective, err := enrollment.ParseDate(rj.EffectiveDate)
	if err != nil {
		return enrollment.RateItem{}, fmt.Errorf("effective_date: %w", err)
	}
	amount, err := decimal.NewFromString(rj.Amount)
	if err != nil {
		return enrollment.RateItem{}, fmt.Errorf("amount %q: %w", rj.Amount, err)
	}
	return enrollment.RateItem{
		Type:          rt,
		EffectiveDate: effective,
		Amount:        amount,
		CSRVariant:    rj.CSRVariant,
	}, nil
}

func parseMemberTxn(mj MemberTxnJSON) (enrollment.MemberTransaction, error) {
	txnType, err := parseTransactionType(mj.Type)
	if err != nil {
		return enrollment.MemberTransaction{}, err
	}
	effective, err := enrollment.ParseDate(mj.EffectiveDate)
	if err != nil {
		return enrollment.MemberTransaction{}, fmt.Errorf("effective_date: %w", err)
	}
	return enrollment.MemberTransaction{
		MemberCode:    mj.MemberCode,
		Type:          txnType,
		EffectiveDate: effective,
		Subscriber:    mj.Subscriber,
	}, nil
}

func malformed(txnID, field string, err error) error {
	return &enrollment.MalformedTransactionError{
		TransactionID: txnID,
		Field:         field,
		Reason:        err.Error(),
	}
}
