package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/prrrssa/sarsabz/internal/exchange"
	"github.com/prrrssa/sarsabz/internal/service/ledger"
	"github.com/prrrssa/sarsabz/internal/service/registry"
	"github.com/prrrssa/sarsabz/internal/service/tier"
	"github.com/prrrssa/sarsabz/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testEnv struct {
	store    *memory.Store
	handler  http.Handler
	irt      exchange.Currency
	usd      exchange.Currency
	irtCash  exchange.ManagedAccount
	usdCash  exchange.ManagedAccount
	customer exchange.Customer
}

func setup(t *testing.T) testEnv {
	t.Helper()
	store := memory.New()
	irt := exchange.Currency{ID: uuid.New(), Code: "IRT", Name: "Toman", Kind: exchange.CurrencyKindFiat}
	usd := exchange.Currency{ID: uuid.New(), Code: "USD", Name: "US Dollar", Kind: exchange.CurrencyKindFiat}
	store.SeedCurrency(irt)
	store.SeedCurrency(usd)
	irtCash := exchange.ManagedAccount{ID: uuid.New(), Name: "Toman Cash", CurrencyID: irt.ID, Balance: decimal.NewFromInt(100_000_000), IsCashAccount: true}
	usdCash := exchange.ManagedAccount{ID: uuid.New(), Name: "Dollar Cash", CurrencyID: usd.ID, Balance: decimal.NewFromInt(5_000), IsCashAccount: true}
	store.SeedAccount(irtCash)
	store.SeedAccount(usdCash)
	customer := exchange.Customer{ID: uuid.New(), Name: "Dariush", MembershipDate: time.Now().UTC()}
	store.SeedCustomer(customer)

	var mu sync.Mutex
	engine := ledger.New(store, store, &mu)
	reg := registry.New(store, store, "IRT", &mu)
	tiers := tier.New(store, store, "IRT", &mu)
	h := New(engine, reg, tiers, store, nil, testLogger()).Handler()
	return testEnv{store: store, handler: h, irt: irt, usd: usd, irtCash: irtCash, usdCash: usdCash, customer: customer}
}

func (e testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", uuid.New().String())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func tradeBody(e testEnv, sourceAmount, targetAmount string) map[string]any {
	return map[string]any{
		"kind":             "customer_trade",
		"customerId":       e.customer.ID.String(),
		"sourceCurrencyId": e.usd.ID.String(),
		"sourceAmount":     sourceAmount,
		"targetCurrencyId": e.irt.ID.String(),
		"targetAmount":     targetAmount,
		"exchangeRate":     "100000",
		"commissionAmount": "0",
		"wageAmount":       "0",
		"date":             time.Now().UTC().Format(time.RFC3339),
	}
}

func TestPostTransaction_CreatesAndMirrors(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPost, "/v1/transactions", tradeBody(e, "100", "10000000"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			ID             string `json:"id"`
			SequenceNumber int64  `json:"sequenceNumber"`
		} `json:"data"`
		Warnings []warningDTO `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.SequenceNumber != 1 || len(resp.Warnings) != 0 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// The customer's ledger carries the mirrored rows.
	rec = e.do(t, http.MethodGet, "/v1/customers/"+e.customer.ID.String()+"/ledger", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ledger: expected 200, got %d", rec.Code)
	}
	var ledgerResp struct {
		Entries []struct {
			SystemManaged bool `json:"systemManaged"`
		} `json:"entries"`
		Balances map[string]string `json:"balances"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ledgerResp); err != nil {
		t.Fatalf("decode ledger: %v", err)
	}
	if len(ledgerResp.Entries) != 2 {
		t.Fatalf("expected 2 mirrored rows, got %d", len(ledgerResp.Entries))
	}
	for _, entry := range ledgerResp.Entries {
		if !entry.SystemManaged {
			t.Fatalf("mirrored row not flagged system managed")
		}
	}
}

func TestPostTransaction_Invalid(t *testing.T) {
	e := setup(t)

	body := tradeBody(e, "100", "10000000")
	body["kind"] = "mystery"
	rec := e.do(t, http.MethodPost, "/v1/transactions", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown kind, got %d: %s", rec.Code, rec.Body.String())
	}

	body = tradeBody(e, "100", "10000000")
	body["customerId"] = uuid.New().String()
	rec = e.do(t, http.MethodPost, "/v1/transactions", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown customer, got %d: %s", rec.Code, rec.Body.String())
	}

	body = tradeBody(e, "100", "10000000")
	body["surprise"] = true
	rec = e.do(t, http.MethodPost, "/v1/transactions", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestPostTransaction_OverdraftWarns(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPost, "/v1/transactions", tradeBody(e, "2000", "200000000"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Warnings []warningDTO `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Warnings) != 1 || resp.Warnings[0].Code != "insufficient_funds" {
		t.Fatalf("expected insufficient_funds warning, got %+v", resp.Warnings)
	}
}

func TestDeleteTransaction_RestoresBalances(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPost, "/v1/transactions", tradeBody(e, "100", "10000000"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = e.do(t, http.MethodDelete, "/v1/transactions/"+resp.Data.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/v1/accounts/"+e.usdCash.ID.String()+"/balance", nil)
	var bal struct {
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &bal); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	got, _ := decimal.NewFromString(bal.Balance)
	if !got.Equal(e.usdCash.Balance) {
		t.Fatalf("usd cash = %s, want %s", got, e.usdCash.Balance)
	}
}

func TestCurrencyLifecycle(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPost, "/v1/currencies", map[string]any{
		"code": "eur", "name": "Euro", "symbol": "€", "kind": "fiat",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var c currencyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Code != "EUR" {
		t.Fatalf("code not normalized: %q", c.Code)
	}

	// Duplicate code conflicts.
	rec = e.do(t, http.MethodPost, "/v1/currencies", map[string]any{
		"code": "EUR", "name": "Euro Again", "kind": "fiat",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	// The auto-created cash account shows up in the account list.
	rec = e.do(t, http.MethodGet, "/v1/accounts", nil)
	var accounts []accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &accounts); err != nil {
		t.Fatalf("decode accounts: %v", err)
	}
	var found bool
	for _, a := range accounts {
		if a.CurrencyID == c.ID && a.IsCashAccount {
			found = true
		}
	}
	if !found {
		t.Fatal("cash account for EUR not created")
	}
}

func TestCustomerTierAndFeeQuote(t *testing.T) {
	e := setup(t)

	// 600M toman of trades lands in silver (5% discount).
	rec := e.do(t, http.MethodPost, "/v1/transactions", tradeBody(e, "6000", "600000000"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/v1/customers/"+e.customer.ID.String()+"/tier", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("tier: expected 200, got %d", rec.Code)
	}
	var status struct {
		Tier struct {
			Name string `json:"name"`
		} `json:"tier"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Tier.Name != "silver" {
		t.Fatalf("tier = %s, want silver", status.Tier.Name)
	}

	rec = e.do(t, http.MethodGet, "/v1/customers/"+e.customer.ID.String()+"/fee-quote?commission=1000000&wage=0", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("fee quote: expected 200, got %d", rec.Code)
	}
	var quote struct {
		Commission string `json:"commission"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &quote); err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, _ := decimal.NewFromString(quote.Commission)
	if !got.Equal(decimal.NewFromInt(950_000)) {
		t.Fatalf("commission = %s, want 950000", got)
	}
}

func TestSystemManagedEntry_Conflicts(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPost, "/v1/transactions", tradeBody(e, "100", "10000000"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	entries, err := e.store.ListLedgerEntries(context.Background())
	if err != nil || len(entries) == 0 {
		t.Fatalf("no ledger entries: %v", err)
	}

	rec = e.do(t, http.MethodDelete, "/v1/ledger-entries/"+entries[0].ID.String(), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 deleting system-managed entry, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuditLog_RecordsAndFilters(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPost, "/v1/currencies", map[string]any{"code": "EUR", "name": "Euro", "kind": "fiat"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/v1/audit-log?entity=Currency", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit: expected 200, got %d", rec.Code)
	}
	var entries []auditEntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "create" {
		t.Fatalf("unexpected audit entries: %+v", entries)
	}

	rec = e.do(t, http.MethodGet, "/v1/audit-log?entity=Transaction", nil)
	var none []auditEntryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &none); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("filter leaked entries: %+v", none)
	}
}

func TestHealthAndReady(t *testing.T) {
	e := setup(t)

	if rec := e.do(t, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/readyz", nil); rec.Code != http.StatusOK {
		t.Fatalf("readyz: %d", rec.Code)
	}
}

func TestGoldSale_ValidatesAndReportsProfit(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPost, "/v1/gold", map[string]any{
		"name":               "Coin Pendant",
		"weight":             "4.2",
		"costPrice":          "50000000",
		"purchaseWageAmount": "2000000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item: %d: %s", rec.Code, rec.Body.String())
	}
	var item goldItemResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}

	saleBody := map[string]any{
		"customerId":       e.customer.ID.String(),
		"currencyId":       e.irt.ID.String(),
		"amount":           "0",
		"wageAmount":       "0",
		"commissionAmount": "0",
		"date":             time.Now().UTC().Format(time.RFC3339),
	}
	rec = e.do(t, http.MethodPost, "/v1/gold/"+item.ID.String()+"/sell", saleBody)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for zero sale amount, got %d: %s", rec.Code, rec.Body.String())
	}

	saleBody["amount"] = "60000000"
	rec = e.do(t, http.MethodPost, "/v1/gold/"+item.ID.String()+"/sell", saleBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("sell: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/v1/gold/"+item.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get item: %d", rec.Code)
	}
	var got struct {
		Status       string  `json:"status"`
		ProfitOnSale *string `json:"profitOnSale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "sold" || got.ProfitOnSale == nil {
		t.Fatalf("sold item without profit: %+v", got)
	}
	profit, _ := decimal.NewFromString(*got.ProfitOnSale)
	if !profit.Equal(decimal.NewFromInt(8_000_000)) {
		t.Fatalf("profit = %s, want 8000000", profit)
	}
}

func TestExpenseCategories(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodGet, "/v1/expense-categories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var cats []struct {
		Code  string `json:"code"`
		Label string `json:"label"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cats) == 0 {
		t.Fatal("no categories returned")
	}
}
