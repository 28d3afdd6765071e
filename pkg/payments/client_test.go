package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dishpatch/dishpatch/pkg/activity"
	"github.com/dishpatch/dishpatch/pkg/catalog"
	"github.com/dishpatch/dishpatch/pkg/logger"
)

func testLogger() logger.Logger {
	return logger.New(&logger.Config{Level: logger.ErrorLevel, Format: "text", Output: "stderr"})
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL, Timeout: 5 * time.Second}, testLogger())
}

func TestChargeSuccess(t *testing.T) {
	var gotPath string
	var gotBody transactionRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	product := catalog.Product{ID: 1, Name: "Margherita Pizza", Price: 29900}
	receipt, err := client.Charge(context.Background(), product)
	if err != nil {
		t.Fatalf("Charge failed: %v", err)
	}
	if gotPath != "/transaction/debit" {
		t.Errorf("expected debit endpoint, got %s", gotPath)
	}
	if gotBody.Amount != 29900 {
		t.Errorf("expected amount 29900, got %d", gotBody.Amount)
	}
	if !strings.Contains(receipt, "29900") {
		t.Errorf("receipt should mention amount, got %q", receipt)
	}
}

func TestChargeRejectionIsNonRetryable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(transactionResponse{Message: "Card declined"})
	})

	_, err := client.Charge(context.Background(), catalog.Product{ID: 1, Price: 100})
	if err == nil {
		t.Fatal("expected an error for a rejected charge")
	}
	if !activity.IsNonRetryable(err) {
		t.Errorf("rejection must be non-retryable, got %v", err)
	}
	if !strings.Contains(err.Error(), "status 402") || !strings.Contains(err.Error(), "Card declined") {
		t.Errorf("error should carry status and message, got %q", err.Error())
	}
}

func TestChargeUnreachableIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(Config{BaseURL: server.URL, Timeout: time.Second}, testLogger())
	_, err := client.Charge(context.Background(), catalog.Product{ID: 1, Price: 100})
	if err == nil {
		t.Fatal("expected an error when the payment service is down")
	}
	if activity.IsNonRetryable(err) {
		t.Errorf("transport failure must stay retryable, got %v", err)
	}
	if !strings.Contains(err.Error(), "payment service unreachable") {
		t.Errorf("unexpected error %q", err.Error())
	}
}

func TestRefundSuccess(t *testing.T) {
	var gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})

	receipt, err := client.Refund(context.Background(), catalog.Product{ID: 1, Price: 29900})
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if gotPath != "/transaction/credit" {
		t.Errorf("expected credit endpoint, got %s", gotPath)
	}
	if !strings.Contains(receipt, "Refunded") {
		t.Errorf("unexpected receipt %q", receipt)
	}
}

func TestRefundToleratesNon200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := client.Refund(context.Background(), catalog.Product{ID: 1, Price: 100}); err != nil {
		t.Fatalf("refund that reached the service must not error, got %v", err)
	}
}

func TestChargeHonoursContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Charge(ctx, catalog.Product{ID: 1, Price: 100})
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}
