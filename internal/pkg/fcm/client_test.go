package fcm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("unexpected authorization header: %s", got)
		}
		var req sendRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Message.Token != "device-a" || req.Message.Notification.Title != "hello" {
			t.Errorf("unexpected message: %+v", req.Message)
		}
		w.Write([]byte(`{"name":"projects/p/messages/m1"}`))
	}))
	defer srv.Close()

	client := NewClientWithEndpoint("p", srv.URL)
	name, err := client.Send(context.Background(), "token-1", &Message{
		Token: "device-a",
		Title: "hello",
		Body:  "world",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "projects/p/messages/m1" {
		t.Fatalf("unexpected message name: %s", name)
	}
}

func TestSend_Unregistered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"status":"NOT_FOUND","message":"Requested entity was not found.","details":[{"errorCode":"UNREGISTERED"}]}}`))
	}))
	defer srv.Close()

	client := NewClientWithEndpoint("p", srv.URL)
	_, err := client.Send(context.Background(), "token-1", &Message{Token: "stale"})
	if !errors.Is(err, ErrUnregistered) {
		t.Fatalf("expected ErrUnregistered, got %v", err)
	}
}

func TestSend_OtherErrorIsNotUnregistered(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"status":"INTERNAL","message":"boom"}}`))
	}))
	defer srv.Close()

	client := NewClientWithEndpoint("p", srv.URL)
	_, err := client.Send(context.Background(), "token-1", &Message{Token: "device-a"})
	if err == nil || errors.Is(err, ErrUnregistered) {
		t.Fatalf("expected non-unregistered error, got %v", err)
	}
}
