package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeus-health/account-processor/account"
	"github.com/zeus-health/account-processor/api"
	"github.com/zeus-health/account-processor/enrollment"
	"github.com/zeus-health/account-processor/enrollment/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *account.Processor) {
	t.Helper()

	p := account.NewProcessor(account.NewMemoryStore(), store.NewMemory(), nil)
	p.Engine.Today = func() enrollment.Date { return enrollment.NewDate(2023, time.January, 5) }
	spans, premiums := 0, 0
	p.Engine.NewSpanID = func() enrollment.SpanID {
		spans++
		return enrollment.SpanID(fmt.Sprintf("span-%d", spans))
	}
	p.Engine.NewPremiumID = func() enrollment.PremiumSpanID {
		premiums++
		return enrollment.PremiumSpanID(fmt.Sprintf("prem-%d", premiums))
	}

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(p, nil)))
	t.Cleanup(srv.Close)
	return srv, p
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

const accountJSON = `{
	"id": "acct-1",
	"account_number": "A-1000",
	"state_code": "FL",
	"members": [
		{"code": "01", "first_name": "Ana", "household_head": true, "exchange_member_id": "EX-100"},
		{"code": "02", "first_name": "Luis", "relationship": "child"}
	]
}`

const addTxnJSON = `{
	"transaction_id": "txn-1",
	"account_id": "acct-1",
	"type": "ADD",
	"start_date": "2023-01-01",
	"coverage_type": "FAM",
	"group_policy_id": "GP-1",
	"plan_id": "PLAN-A",
	"rates": [
		{"type": "TOTPREMAMT", "effective_date": "2023-01-01", "amount": "450.00"}
	]
}`

// =============================================================================
// ACCOUNT ENDPOINTS
// =============================================================================

func TestCreateAndGetAccount(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/accounts", accountJSON)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	getResp, err := http.Get(srv.URL + "/api/accounts/acct-1")
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	dto := decode[api.AccountDTO](t, getResp)
	assert.Equal(t, "acct-1", dto.ID)
	assert.Len(t, dto.Members, 2)
}

func TestGetAccount_Unknown_404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/accounts/nobody")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateAccount_MissingID_400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/accounts", `{"account_number": "A-1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// TRANSACTION ENDPOINT
// =============================================================================

func TestProcessTransaction_Add(t *testing.T) {
	// GIVEN: A registered account
	// WHEN: An ADD transaction is posted
	// THEN: 200 with mutation counts, and the timeline shows the span

	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/accounts", accountJSON)

	resp := postJSON(t, srv.URL+"/api/transactions", addTxnJSON)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[api.TransactionResultDTO](t, resp)
	assert.Equal(t, "txn-1", result.TransactionID)
	assert.Equal(t, 1, result.NewSpans)
	assert.Equal(t, 1, result.NewPremiums)

	tlResp, err := http.Get(srv.URL + "/api/accounts/acct-1/timeline")
	require.NoError(t, err)
	defer tlResp.Body.Close()
	require.Equal(t, http.StatusOK, tlResp.StatusCode)

	tl := decode[api.TimelineDTO](t, tlResp)
	require.Len(t, tl.Spans, 1)
	assert.Equal(t, "2023-01-01", tl.Spans[0].StartDate)
	assert.Equal(t, "2023-12-31", tl.Spans[0].EndDate)
	assert.Equal(t, "EX-100", tl.Spans[0].ExchangeSubscriberID)
	require.Len(t, tl.Spans[0].Premiums, 1)
	assert.Equal(t, "450", tl.Spans[0].Premiums[0].TotalPremium)
}

func TestProcessTransaction_UnknownAccount_404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/transactions", addTxnJSON)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProcessTransaction_UnknownType_400(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/accounts", accountJSON)

	resp := postJSON(t, srv.URL+"/api/transactions",
		`{"transaction_id": "txn-x", "account_id": "acct-1", "type": "UPGRADE", "start_date": "2023-01-01"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessTransaction_NoHouseholdHead_400(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/accounts", `{
		"id": "acct-1", "account_number": "A-1000",
		"members": [{"code": "01", "first_name": "Ana"}]
	}`)

	resp := postJSON(t, srv.URL+"/api/transactions", addTxnJSON)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	errResp := decode[api.ErrorResponse](t, resp)
	assert.Contains(t, errResp.Details, "household")
}

func TestProcessTransaction_AmbiguousOverlap_409(t *testing.T) {
	// GIVEN: Two spans straddling Jun 1 seeded directly (inconsistent
	//        historic data)
	// WHEN: An ADD starting Jun 1 is posted
	// THEN: 409, operator intervention required

	srv, p := newTestServer(t)
	postJSON(t, srv.URL+"/api/accounts", accountJSON)

	seed := &enrollment.Mutations{NewSpans: []*enrollment.EnrollmentSpan{
		{
			ID: "bad-1", AccountID: "acct-1", CoverageType: enrollment.CoverageFamily,
			StartDate: enrollment.NewDate(2023, time.January, 1), EndDate: enrollment.NewDate(2023, time.December, 31),
			PlanID: "PLAN-A", GroupPolicyID: "GP-old-1", Status: enrollment.StatusEnrolled,
		},
		{
			ID: "bad-2", AccountID: "acct-1", CoverageType: enrollment.CoverageFamily,
			StartDate: enrollment.NewDate(2023, time.March, 1), EndDate: enrollment.NewDate(2023, time.September, 30),
			PlanID: "PLAN-A", GroupPolicyID: "GP-old-2", Status: enrollment.StatusEnrolled,
		},
	}}
	require.NoError(t, p.Timelines.Apply(context.Background(), "acct-1", seed))

	txn := `{
		"transaction_id": "txn-2", "account_id": "acct-1", "type": "ADD",
		"start_date": "2023-06-01", "coverage_type": "FAM",
		"group_policy_id": "GP-2", "plan_id": "PLAN-A",
		"rates": [{"type": "TOTPREMAMT", "effective_date": "2023-06-01", "amount": "450.00"}]
	}`
	resp := postJSON(t, srv.URL+"/api/transactions", txn)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// ADMIN ENDPOINT
// =============================================================================

func TestTriggerSweep(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/accounts", accountJSON)

	resp := postJSON(t, srv.URL+"/api/admin/sweep", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[api.SweepResultDTO](t, resp)
	assert.Zero(t, result.SpansChanged)
}
