package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/neogan74/rockgate"
	"github.com/neogan74/rockgate/internal/logger"
	"github.com/neogan74/rockgate/internal/middleware"
)

func setupKVHandler(t *testing.T) (*rockgate.DB, *fiber.App) {
	t.Helper()

	db, err := rockgate.Open("", &rockgate.Options{Engine: "memory", Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	handler := NewKVHandler(db)
	app := fiber.New()
	app.Use(middleware.RequestLogging(logger.Nop()))

	app.Get("/kv/:key", handler.Get)
	app.Put("/kv/:key", handler.Set)
	app.Delete("/kv/:key", handler.Delete)
	app.Post("/kv", handler.GetMany)
	app.Delete("/kv", handler.Clear)
	app.Get("/query", handler.Query)

	return db, app
}

func TestKVHandler_Get(t *testing.T) {
	db, app := setupKVHandler(t)

	// Non-existent key
	req := httptest.NewRequest(http.MethodGet, "/kv/nonexistent", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("GET request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for non-existent key, got %d", resp.StatusCode)
	}

	if err := db.Put([]byte("test-key"), []byte("test-value")); err != nil {
		t.Fatalf("failed to seed key: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/kv/test-key", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("GET request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for existing key, got %d", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result["key"] != "test-key" || result["value"] != "test-value" {
		t.Errorf("unexpected response: %+v", result)
	}
}

func TestKVHandler_Set(t *testing.T) {
	db, app := setupKVHandler(t)

	body := bytes.NewReader([]byte(`{"value": "new-value"}`))
	req := httptest.NewRequest(http.MethodPut, "/kv/new-key", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("PUT request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("expected 201 for valid PUT, got %d", resp.StatusCode)
	}

	value, found, err := db.Get(context.Background(), []byte("new-key"))
	if err != nil || !found {
		t.Fatalf("key not stored: found=%v err=%v", found, err)
	}
	if string(value) != "new-value" {
		t.Errorf("expected 'new-value', got %q", value)
	}

	// Invalid JSON
	body = bytes.NewReader([]byte(`invalid json`))
	req = httptest.NewRequest(http.MethodPut, "/kv/test", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("PUT request with invalid JSON failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", resp.StatusCode)
	}
}

func TestKVHandler_Delete(t *testing.T) {
	db, app := setupKVHandler(t)

	if err := db.Put([]byte("to-delete"), []byte("v")); err != nil {
		t.Fatalf("failed to seed key: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/kv/to-delete", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("DELETE request failed: %v", err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204 for DELETE, got %d", resp.StatusCode)
	}

	_, found, err := db.Get(context.Background(), []byte("to-delete"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if found {
		t.Error("expected key to be deleted")
	}
}

func TestKVHandler_GetMany(t *testing.T) {
	db, app := setupKVHandler(t)

	if err := db.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("failed to seed key: %v", err)
	}
	if err := db.Put([]byte("b"), []byte("2")); err != nil {
		t.Fatalf("failed to seed key: %v", err)
	}

	body := bytes.NewReader([]byte(`{"keys": ["a", "missing", "b"]}`))
	req := httptest.NewRequest(http.MethodPost, "/kv", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("POST request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var result GetManyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.Found["a"] != "1" || result.Found["b"] != "2" {
		t.Errorf("unexpected found map: %+v", result.Found)
	}
	if len(result.NotFound) != 1 || result.NotFound[0] != "missing" {
		t.Errorf("unexpected not_found list: %+v", result.NotFound)
	}

	// Empty key list is rejected
	body = bytes.NewReader([]byte(`{"keys": []}`))
	req = httptest.NewRequest(http.MethodPost, "/kv", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("POST request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for empty keys, got %d", resp.StatusCode)
	}
}

func TestKVHandler_Clear(t *testing.T) {
	db, app := setupKVHandler(t)

	for _, k := range []string{"a", "b", "c"} {
		if err := db.Put([]byte(k), []byte("v")); err != nil {
			t.Fatalf("failed to seed key: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodDelete, "/kv?start=a&end=c", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("DELETE request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	for key, want := range map[string]bool{"a": false, "b": false, "c": true} {
		_, found, err := db.Get(context.Background(), []byte(key))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if found != want {
			t.Errorf("key %q: found=%v, want %v", key, found, want)
		}
	}
}

func TestKVHandler_Query(t *testing.T) {
	db, app := setupKVHandler(t)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("k%d", i)
		if err := db.Put([]byte(key), []byte("v")); err != nil {
			t.Fatalf("failed to seed key: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/query?start=k0&end=k9&limit=3", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("GET request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var result QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Rows) != 3 {
		t.Errorf("expected 3 rows, got %d", len(result.Rows))
	}
	if result.Finished {
		t.Error("expected finished=false with more rows remaining")
	}

	// Resume past the last row of the first page.
	last := result.Rows[len(result.Rows)-1].Key
	req = httptest.NewRequest(http.MethodGet, "/query?start="+last+"&end=k9&exclude_start=true", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("GET request failed: %v", err)
	}

	var second QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&second); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(second.Rows) != 2 {
		t.Errorf("expected 2 remaining rows, got %d", len(second.Rows))
	}
	if !second.Finished {
		t.Error("expected finished=true on the final page")
	}

	// Bad limit is rejected
	req = httptest.NewRequest(http.MethodGet, "/query?limit=zero", nil)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("GET request failed: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}
