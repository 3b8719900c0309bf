package digiflazz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:  srv.URL,
		Username: "tester",
		DevKey:   "dev-key",
	})
}

func TestCheckBalance(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cek-saldo" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["cmd"] != "deposit" {
			t.Errorf("unexpected cmd: %v", req["cmd"])
		}
		if req["sign"] != Sign("tester", "dev-key", "depo") {
			t.Errorf("unexpected sign: %v", req["sign"])
		}
		w.Write([]byte(`{"data":{"deposit":125000.5}}`))
	})

	deposit, err := client.CheckBalance(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deposit != 125000.5 {
		t.Fatalf("unexpected deposit: %f", deposit)
	}
}

func TestTransaction_SignUsesRefID(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		if req["sign"] != Sign("tester", "dev-key", "ref-123") {
			t.Errorf("sign must use ref_id discriminator, got %v", req["sign"])
		}
		if _, ok := req["commands"]; ok {
			t.Error("prepaid topup must omit commands")
		}
		w.Write([]byte(`{"data":{"ref_id":"ref-123","status":"Sukses","rc":"00","sn":"SN001"}}`))
	})

	result, err := client.Transaction(context.Background(), TransactionParams{
		BuyerSKUCode: "pulsa10",
		CustomerNo:   "0811",
		RefID:        "ref-123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Data.Status != "Sukses" || result.Data.SN != "SN001" {
		t.Fatalf("unexpected data: %+v", result.Data)
	}
	if len(result.RawRequest) == 0 || len(result.RawResponse) == 0 {
		t.Fatal("raw payloads must be retained")
	}
}

func TestTransaction_EmptyRefID(t *testing.T) {
	client := NewClient(Config{Username: "tester", DevKey: "k"})
	if _, err := client.Transaction(context.Background(), TransactionParams{BuyerSKUCode: "x"}); err == nil {
		t.Fatal("expected error for empty ref_id")
	}
}

func TestTransaction_Non2xxIsUnavailable(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	})

	result, err := client.Transaction(context.Background(), TransactionParams{RefID: "ref-1"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if result == nil || len(result.RawResponse) == 0 {
		t.Fatal("raw response body must survive transport failures")
	}
}

func TestTransaction_MalformedJSONIsUnavailable(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":`))
	})

	_, err := client.Transaction(context.Background(), TransactionParams{RefID: "ref-1"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestConfigAPIKeySelection(t *testing.T) {
	cfg := Config{DevKey: "dev", ProdKey: "prod"}
	if cfg.APIKey() != "dev" {
		t.Fatalf("expected sandbox key, got %s", cfg.APIKey())
	}
	cfg.UseProduction = true
	if cfg.APIKey() != "prod" {
		t.Fatalf("expected production key, got %s", cfg.APIKey())
	}
}
