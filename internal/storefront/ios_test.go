package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestIOSVerifyActive(t *testing.T) {
	expiry := time.Now().Add(time.Hour).UnixMilli()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprintf(w, `{"status":0,"latest_receipt_info":[{"product_id":"storage_200g_monthly","expires_date_ms":"%d"}]}`, expiry)
	}))
	defer srv.Close()

	v := NewIOSVerifier(IOSOptions{SharedSecret: "shh", Endpoint: srv.URL, Client: srv.Client()}, zerolog.Nop())

	res, err := v.Verify(context.Background(), "storage_200g_monthly", "base64-receipt")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.ExpiryMs != expiry {
		t.Errorf("expiry = %d, want %d", res.ExpiryMs, expiry)
	}

	if gotBody["receipt-data"] != "base64-receipt" || gotBody["password"] != "shh" {
		t.Errorf("request body = %v", gotBody)
	}
	if gotBody["exclude-old-transactions"] != true {
		t.Errorf("exclude-old-transactions not set: %v", gotBody)
	}
}

func TestIOSVerifySandboxFallback(t *testing.T) {
	expiry := time.Now().Add(time.Hour).UnixMilli()

	sandbox := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"status":0,"latest_receipt_info":[{"product_id":"storage_100g_yearly","expires_date_ms":"%d"}]}`, expiry)
	}))
	defer sandbox.Close()

	prodCalls := 0
	prod := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		prodCalls++
		fmt.Fprint(w, `{"status":21007}`)
	}))
	defer prod.Close()

	v := NewIOSVerifier(IOSOptions{
		SharedSecret:    "shh",
		Endpoint:        prod.URL,
		SandboxEndpoint: sandbox.URL,
	}, zerolog.Nop())

	res, err := v.Verify(context.Background(), "storage_100g_yearly", "receipt")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.ExpiryMs != expiry {
		t.Errorf("expiry = %d, want %d", res.ExpiryMs, expiry)
	}
	if prodCalls != 1 {
		t.Errorf("production endpoint called %d times, want 1", prodCalls)
	}
}

func TestIOSVerifyLatestRenewalWins(t *testing.T) {
	older := time.Now().Add(30 * time.Minute).UnixMilli()
	newer := time.Now().Add(2 * time.Hour).UnixMilli()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"status":0,"latest_receipt_info":[
			{"product_id":"storage_100g_monthly","expires_date_ms":"%d"},
			{"product_id":"storage_200g_monthly","expires_date_ms":"9999999999999"},
			{"product_id":"storage_100g_monthly","expires_date_ms":"%d"}
		]}`, older, newer)
	}))
	defer srv.Close()

	v := NewIOSVerifier(IOSOptions{SharedSecret: "shh", Endpoint: srv.URL}, zerolog.Nop())

	res, err := v.Verify(context.Background(), "storage_100g_monthly", "receipt")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.ExpiryMs != newer {
		t.Errorf("expiry = %d, want max matching %d", res.ExpiryMs, newer)
	}
}

func TestIOSVerifyInAppFallback(t *testing.T) {
	expiry := time.Now().Add(time.Hour).UnixMilli()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"status":0,"receipt":{"in_app":[{"product_id":"storage_2tb_monthly","expires_date_ms":"%d"}]}}`, expiry)
	}))
	defer srv.Close()

	v := NewIOSVerifier(IOSOptions{SharedSecret: "shh", Endpoint: srv.URL}, zerolog.Nop())

	res, err := v.Verify(context.Background(), "storage_2tb_monthly", "receipt")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.ExpiryMs != expiry {
		t.Errorf("expiry = %d, want %d", res.ExpiryMs, expiry)
	}
}

func TestIOSVerifyNoMatchingProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":0,"latest_receipt_info":[{"product_id":"other","expires_date_ms":"9999999999999"}]}`)
	}))
	defer srv.Close()

	v := NewIOSVerifier(IOSOptions{SharedSecret: "shh", Endpoint: srv.URL}, zerolog.Nop())

	_, err := v.Verify(context.Background(), "storage_100g_monthly", "receipt")
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
}

func TestIOSVerifyNonZeroStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status":21003}`)
	}))
	defer srv.Close()

	v := NewIOSVerifier(IOSOptions{SharedSecret: "shh", Endpoint: srv.URL}, zerolog.Nop())

	_, err := v.Verify(context.Background(), "storage_100g_monthly", "receipt")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UpstreamError", err)
	}
	if ue.StatusCode != 21003 {
		t.Errorf("status = %d, want 21003", ue.StatusCode)
	}
}

func TestIOSVerifyMissingSecret(t *testing.T) {
	v := NewIOSVerifier(IOSOptions{}, zerolog.Nop())

	_, err := v.Verify(context.Background(), "storage_100g_monthly", "receipt")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}
