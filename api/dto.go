/*
dto.go - Request and response data structures for the HTTP API

PURPOSE:
  Data Transfer Objects separate the API wire format from domain types.
  The engine's records carry typed dates and decimals; DTOs carry
  strings. Conversion happens here and only here.

CONVENTIONS:
  - Dates are YYYY-MM-DD strings; nullable dates are omitted when unset
  - Amounts are decimal strings ("450.00"), never floats
  - Field names are snake_case

SEE ALSO:
  - handlers.go: Uses these types
  - factory/transaction.go: Inbound transaction JSON schema
*/
package api

import (
	"github.com/zeus-health/account-processor/account"
	"github.com/zeus-health/account-processor/enrollment"
)

// =============================================================================
// ACCOUNT DTOs
// =============================================================================

// MemberDTO is one person on an account.
type MemberDTO struct {
	Code             string `json:"code"`
	FirstName        string `json:"first_name,omitempty"`
	LastName         string `json:"last_name,omitempty"`
	Relationship     string `json:"relationship,omitempty"`
	HouseholdHead    bool   `json:"household_head"`
	ExchangeMemberID string `json:"exchange_member_id,omitempty"`
}

// AccountDTO is a subscriber household.
type AccountDTO struct {
	ID            string      `json:"id"`
	AccountNumber string      `json:"account_number"`
	StateCode     string      `json:"state_code,omitempty"`
	Marketplace   string      `json:"marketplace,omitempty"`
	BusinessUnit  string      `json:"business_unit,omitempty"`
	Members       []MemberDTO `json:"members"`
}

// CreateAccountRequest registers an account with its members.
type CreateAccountRequest struct {
	ID            string      `json:"id"`
	AccountNumber string      `json:"account_number"`
	StateCode     string      `json:"state_code,omitempty"`
	Marketplace   string      `json:"marketplace,omitempty"`
	BusinessUnit  string      `json:"business_unit,omitempty"`
	Members       []MemberDTO `json:"members"`
}

// =============================================================================
// TIMELINE DTOs
// =============================================================================

// EnrollmentSpanDTO is one coverage period.
type EnrollmentSpanDTO struct {
	ID                   string `json:"id"`
	AccountID            string `json:"account_id"`
	CoverageType         string `json:"coverage_type"`
	StartDate            string `json:"start_date"`
	EndDate              string `json:"end_date"`
	ExchangeSubscriberID string `json:"exchange_subscriber_id,omitempty"`
	EffectuationDate     string `json:"effectuation_date,omitempty"`
	Delinquent           bool   `json:"delinquent"`
	PaidThroughDate      string `json:"paid_through_date,omitempty"`
	PlanID               string `json:"plan_id"`
	GroupPolicyID        string `json:"group_policy_id"`
	Status               string `json:"status"`

	Premiums []PremiumSpanDTO `json:"premiums"`
}

// PremiumSpanDTO is one financial sub-period.
type PremiumSpanDTO struct {
	ID               string `json:"id"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	Status           string `json:"status"`
	CSRVariant       string `json:"csr_variant,omitempty"`
	TotalPremium     string `json:"total_premium"`
	TotalResponsible string `json:"total_responsible"`
	APTC             string `json:"aptc"`
	OtherPay         string `json:"other_pay"`
	CSR              string `json:"csr"`
}

// TimelineDTO is the full timeline of one account.
type TimelineDTO struct {
	AccountID string              `json:"account_id"`
	Spans     []EnrollmentSpanDTO `json:"spans"`
}

// =============================================================================
// TRANSACTION DTOs
// =============================================================================

// DecisionDTO is one per-premium-span reconciliation outcome.
type DecisionDTO struct {
	PremiumSpanID string `json:"premium_span_id"`
	Code          int    `json:"code"`
	Decision      string `json:"decision"`
}

// TransactionResultDTO reports what a processed transaction changed.
type TransactionResultDTO struct {
	TransactionID   string        `json:"transaction_id"`
	AccountID       string        `json:"account_id"`
	NewSpans        int           `json:"new_spans"`
	UpdatedSpans    int           `json:"updated_spans"`
	NewPremiums     int           `json:"new_premiums"`
	UpdatedPremiums int           `json:"updated_premiums"`
	Decisions       []DecisionDTO `json:"decisions,omitempty"`
}

// SweepResultDTO reports a delinquency sweep.
type SweepResultDTO struct {
	SpansChanged int `json:"spans_changed"`
}

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTO(a *account.Account) AccountDTO {
	dto := AccountDTO{
		ID:            string(a.ID),
		AccountNumber: a.AccountNumber,
		StateCode:     a.StateCode,
		Marketplace:   a.Marketplace,
		BusinessUnit:  a.BusinessUnit,
		Members:       make([]MemberDTO, len(a.Members)),
	}
	for i, m := range a.Members {
		dto.Members[i] = MemberDTO{
			Code:             m.Code,
			FirstName:        m.FirstName,
			LastName:         m.LastName,
			Relationship:     m.Relationship,
			HouseholdHead:    m.HouseholdHead,
			ExchangeMemberID: m.ExchangeMemberID,
		}
	}
	return dto
}

func toTimelineDTO(tl *enrollment.Timeline) TimelineDTO {
	dto := TimelineDTO{
		AccountID: string(tl.AccountID),
		Spans:     []EnrollmentSpanDTO{},
	}
	for _, s := range tl.AllSpans() {
		sd := EnrollmentSpanDTO{
			ID:                   string(s.ID),
			AccountID:            string(s.AccountID),
			CoverageType:         string(s.CoverageType),
			StartDate:            s.StartDate.String(),
			EndDate:              s.EndDate.String(),
			ExchangeSubscriberID: s.ExchangeSubscriberID,
			Delinquent:           s.Delinquent,
			PlanID:               s.PlanID,
			GroupPolicyID:        s.GroupPolicyID,
			Status:               string(s.Status),
			Premiums:             []PremiumSpanDTO{},
		}
		if s.EffectuationDate != nil {
			sd.EffectuationDate = s.EffectuationDate.String()
		}
		if s.PaidThroughDate != nil {
			sd.PaidThroughDate = s.PaidThroughDate.String()
		}
		for _, p := range tl.PremiumsOf(s.ID) {
			sd.Premiums = append(sd.Premiums, toPremiumDTO(p))
		}
		dto.Spans = append(dto.Spans, sd)
	}
	return dto
}

func toPremiumDTO(p *enrollment.PremiumSpan) PremiumSpanDTO {
	return PremiumSpanDTO{
		ID:               string(p.ID),
		StartDate:        p.StartDate.String(),
		EndDate:          p.EndDate.String(),
		Status:           string(p.Status),
		CSRVariant:       p.CSRVariant,
		TotalPremium:     p.Rates.TotalPremium.String(),
		TotalResponsible: p.Rates.TotalResponsible.String(),
		APTC:             p.Rates.APTC.String(),
		OtherPay:         p.Rates.OtherPay.String(),
		CSR:              p.Rates.CSR.String(),
	}
}

func toResultDTO(txn *enrollment.Transaction, muts *enrollment.Mutations) TransactionResultDTO {
	dto := TransactionResultDTO{
		TransactionID:   txn.ID,
		AccountID:       string(txn.AccountID),
		NewSpans:        len(muts.NewSpans),
		UpdatedSpans:    len(muts.UpdatedSpans),
		NewPremiums:     len(muts.NewPremiums),
		UpdatedPremiums: len(muts.UpdatedPremiums),
	}
	for _, d := range muts.Decisions {
		dto.Decisions = append(dto.Decisions, DecisionDTO{
			PremiumSpanID: string(d.Existing.ID),
			Code:          d.Kind.Code(),
			Decision:      d.Kind.String(),
		})
	}
	return dto
}
