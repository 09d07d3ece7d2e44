package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testBackend(t *testing.T, handler http.Handler) (*Backend, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBackend(srv.URL, 5*time.Second), srv
}

func TestSendOtpChannelSelection(t *testing.T) {
	cases := []struct {
		name        string
		input       SendOtpInput
		wantChannel string
		wantPhone   string
	}{
		{"phone only", SendOtpInput{Phone: "+91 98765-43210"}, "sms", "+919876543210"},
		{"email only", SendOtpInput{Email: "guest@example.com"}, "email", ""},
		{"both prefers sms", SendOtpInput{Email: "guest@example.com", Phone: "9876543210"}, "sms", "9876543210"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got map[string]any
			backend, _ := testBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/auth/otp/send" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
					t.Fatalf("decode request: %v", err)
				}
				json.NewEncoder(w).Encode(map[string]any{"sent": true, "user_id": "u-77"})
			}))

			result, err := NewOtpService(backend).Send(context.Background(), tc.input)
			if err != nil {
				t.Fatalf("Send failed: %v", err)
			}
			if got["channel"] != tc.wantChannel {
				t.Errorf("channel = %v, want %s", got["channel"], tc.wantChannel)
			}
			if tc.wantPhone != "" && got["phone"] != tc.wantPhone {
				t.Errorf("phone = %v, want %s", got["phone"], tc.wantPhone)
			}
			if result.UserID != "u-77" {
				t.Errorf("user_id not captured: %q", result.UserID)
			}
			if !result.Sent {
				t.Error("expected sent=true")
			}
		})
	}
}

func TestSendOtpFallsBackOnNotFound(t *testing.T) {
	var paths []string
	var fallbackBody map[string]any
	backend, _ := testBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/auth/otp/send":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"message": "route not found", "code": "NOT_FOUND"})
		case "/bookings/otp/send":
			json.NewDecoder(r.Body).Decode(&fallbackBody)
			json.NewEncoder(w).Encode(map[string]any{"sent": true, "data": map[string]any{"user_id": 42}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	result, err := NewOtpService(backend).Send(context.Background(), SendOtpInput{
		Name:  "Asha",
		Phone: "9876543210",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(paths) != 2 || paths[0] != "/auth/otp/send" || paths[1] != "/bookings/otp/send" {
		t.Errorf("unexpected call sequence: %v", paths)
	}
	if fallbackBody["name"] != "Asha" {
		t.Errorf("fallback missing guest name: %v", fallbackBody)
	}
	if result.UserID != "42" {
		t.Errorf("numeric user_id not captured: %q", result.UserID)
	}
}

func TestSendOtpRequiresIdentifier(t *testing.T) {
	backend, _ := testBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no network call expected")
	}))

	_, err := NewOtpService(backend).Send(context.Background(), SendOtpInput{Name: "Asha"})
	if !errors.Is(err, ErrMissingIdentifier) {
		t.Errorf("expected ErrMissingIdentifier, got %v", err)
	}
}

func TestVerifyOtpPrefersUserID(t *testing.T) {
	var got map[string]any
	backend, _ := testBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/otp/verify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"verified": true,
			"token":    "upstream-token",
			"user":     map[string]any{"id": "u-77", "name": "Asha"},
		})
	}))

	result, err := NewOtpService(backend).Verify(context.Background(), VerifyOtpInput{
		UserID: "u-77",
		Phone:  "9876543210",
		Otp:    "123456",
	})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if got["user_id"] != "u-77" {
		t.Errorf("payload should carry user_id, got %v", got)
	}
	if _, present := got["phone"]; present {
		t.Error("phone must be omitted when user_id is available")
	}
	if result.Token != "upstream-token" {
		t.Errorf("token = %q", result.Token)
	}
}

func TestVerifyOtpFallsBackToPhone(t *testing.T) {
	var got map[string]any
	backend, _ := testBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"verified": true, "token": "tok"})
	}))

	if _, err := NewOtpService(backend).Verify(context.Background(), VerifyOtpInput{
		Phone: "+91 98765 43210",
		Otp:   "123456",
	}); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if got["phone"] != "+919876543210" {
		t.Errorf("phone not normalized in payload: %v", got["phone"])
	}
}

func TestVerifyOtpMissingIdentifierSkipsNetwork(t *testing.T) {
	called := false
	backend, _ := testBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := NewOtpService(backend).Verify(context.Background(), VerifyOtpInput{Otp: "123456"})
	if !errors.Is(err, ErrMissingIdentifier) {
		t.Errorf("expected ErrMissingIdentifier, got %v", err)
	}
	if called {
		t.Error("verify with no identifier must not issue a network call")
	}
}
