package jsonutil

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestJSON_WritesHeaderStatusAndBody(t *testing.T) {
	rec := httptest.NewRecorder()
	type payload struct {
		Msg string `json:"msg"`
	}
	JSON(rec, http.StatusTeapot, payload{Msg: "hello"})
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("ct=%s", ct)
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("code=%d", rec.Code)
	}
	var got payload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Msg != "hello" {
		t.Fatalf("msg=%s", got.Msg)
	}
}

func TestJSON_EncodeFailureIs500AndLogged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, map[string]float64{"rate": math.NaN()})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code=%d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"error\":\"failed to encode response\"}\n" {
		t.Fatalf("body=%q", got)
	}
	if logs.FilterMessage("failed to encode response").Len() != 1 {
		t.Fatalf("encode failure not logged: %v", logs.All())
	}
}

func TestError_Body(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusConflict, "sync already running")
	if rec.Code != http.StatusConflict {
		t.Fatalf("code=%d", rec.Code)
	}
	if got := rec.Body.String(); got != "{\"error\":\"sync already running\"}\n" {
		t.Fatalf("body=%q", got)
	}
}
