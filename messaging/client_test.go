// Copyright 2026 The Matrix-Bot Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/acheong08/matrix-bot/lib/secret"
)

// testBuffer creates a secret.Buffer from a string for testing. The
// buffer is automatically closed when the test completes.
func testBuffer(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromString(value)
	if err != nil {
		t.Fatalf("creating test buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

// writeJSON encodes v as the response body.
func writeJSON(writer http.ResponseWriter, v any) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(v)
}

// assertAuth fails the test if the request does not carry the expected
// bearer token.
func assertAuth(t *testing.T, request *http.Request, token string) {
	t.Helper()
	if got := request.Header.Get("Authorization"); got != "Bearer "+token {
		t.Errorf("unexpected Authorization header: %q", got)
	}
}

func TestNewClient(t *testing.T) {
	t.Run("valid URL", func(t *testing.T) {
		client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:8008"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client == nil {
			t.Fatal("NewClient returned nil")
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		if _, err := NewClient(ClientConfig{}); err == nil {
			t.Fatal("expected error for empty URL")
		}
	})

	t.Run("invalid URL", func(t *testing.T) {
		if _, err := NewClient(ClientConfig{HomeserverURL: "://invalid"}); err == nil {
			t.Fatal("expected error for invalid URL")
		}
	})
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/_matrix/client/v3/login" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			var body LoginRequest
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode login request: %v", err)
			}
			if body.Type != "m.login.password" {
				t.Errorf("unexpected login type: %q", body.Type)
			}
			if body.User != "@bot:example.org" {
				t.Errorf("unexpected user: %q", body.User)
			}
			if body.Password != "hunter2" {
				t.Errorf("unexpected password: %q", body.Password)
			}
			writeJSON(writer, map[string]string{
				"user_id":      "@bot:example.org",
				"access_token": "syt_token",
				"device_id":    "DEV1",
			})
		}))
		t.Cleanup(server.Close)

		client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		session, err := client.Login(context.Background(), "@bot:example.org", testBuffer(t, "hunter2"))
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		t.Cleanup(func() { session.Close() })

		if session.UserID().String() != "@bot:example.org" {
			t.Errorf("unexpected user ID: %s", session.UserID())
		}
		if session.DeviceID() != "DEV1" {
			t.Errorf("unexpected device ID: %s", session.DeviceID())
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusForbidden)
			json.NewEncoder(writer).Encode(map[string]string{
				"errcode": "M_FORBIDDEN",
				"error":   "Invalid password",
			})
		}))
		t.Cleanup(server.Close)

		client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		_, err = client.Login(context.Background(), "@bot:example.org", testBuffer(t, "wrong"))
		if err == nil {
			t.Fatal("expected login failure")
		}
		if !IsMatrixError(err, ErrCodeForbidden) {
			t.Errorf("expected M_FORBIDDEN, got: %v", err)
		}
	})

	t.Run("missing password", func(t *testing.T) {
		client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:8008"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if _, err := client.Login(context.Background(), "@bot:example.org", nil); err == nil {
			t.Fatal("expected error for nil password")
		}
	})
}

func TestMatrixErrorDecoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusNotFound)
		json.NewEncoder(writer).Encode(map[string]string{
			"errcode": "M_NOT_FOUND",
			"error":   "Room not found",
		})
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	session, err := client.SessionFromToken("@bot:example.org", "tok")
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	_, err = session.JoinedRooms(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsMatrixError(err, ErrCodeNotFound) {
		t.Errorf("expected M_NOT_FOUND, got: %v", err)
	}
	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) {
		t.Fatalf("error is not a MatrixError: %v", err)
	}
	if matrixErr.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected status code: %d", matrixErr.StatusCode)
	}
}

func TestSessionFromTokenRejectsBadUserID(t *testing.T) {
	client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:8008"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := client.SessionFromToken("not-a-user", "tok"); err == nil {
		t.Fatal("expected error for malformed user ID")
	}
}
