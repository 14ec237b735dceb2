// Package testhelpers provides common utilities and helper functions for testing the Roomcast server.
//
// This package contains reusable test utilities that are shared across unit and integration tests.
// It provides functions for creating test servers, opening WebSocket connections, exchanging
// protocol messages, and asserting response properties to reduce code duplication in test files.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// CreateTestServer creates a test HTTP server with the given handler.
// It returns a running httptest.Server that should be closed after use.
func CreateTestServer(handler http.Handler) *httptest.Server {
	return httptest.NewServer(handler)
}

// AssertStatusCode checks if the HTTP response has the expected status code.
// It fails the test with a descriptive error message if the status codes don't match.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket creates a WebSocket connection to the specified URL using
// the given Origin header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	headers.Set("Origin", origin)

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// SendAction sends a client action as a JSON message over the WebSocket connection.
func SendAction(t *testing.T, conn *websocket.Conn, action map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(action); err != nil {
		t.Fatalf("Failed to send action %v: %v", action["action"], err)
	}
}

// ReceiveMessage reads the next JSON message from the WebSocket connection,
// failing the test if nothing arrives within the timeout.
func ReceiveMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	var message map[string]any
	if err := conn.ReadJSON(&message); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return message
}

// ExpectNoMessage asserts that no message arrives on the connection within the
// given window.
func ExpectNoMessage(t *testing.T, conn *websocket.Conn, window time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}

	var message json.RawMessage
	if err := conn.ReadJSON(&message); err == nil {
		t.Errorf("Expected no message but received: %s", message)
	}
}

// AssertField checks that a decoded message carries the expected value under key.
func AssertField(t *testing.T, message map[string]any, key string, expected any) {
	t.Helper()

	value, ok := message[key]
	if !ok {
		t.Errorf("Message %v does not contain %q field", message, key)
		return
	}
	if value != expected {
		t.Errorf("Expected %q=%v, got %v", key, expected, value)
	}
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
