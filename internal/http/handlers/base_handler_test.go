package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"agrimatch/internal/types"
)

func TestWriteServiceErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err       error
		want      int
		retryable bool
	}{
		{fmt.Errorf("%w: quantity", types.ErrValidation), http.StatusBadRequest, false},
		{fmt.Errorf("%w: not a party", types.ErrUnauthorized), http.StatusForbidden, false},
		{fmt.Errorf("%w: match x", types.ErrNotFound), http.StatusNotFound, false},
		{fmt.Errorf("%w: version 3", types.ErrConflict), http.StatusConflict, true},
		{fmt.Errorf("%w: requested -> completed", types.ErrInvalidTransition), http.StatusConflict, false},
		{fmt.Errorf("%w: completed", types.ErrTerminalState), http.StatusConflict, false},
		{fmt.Errorf("%w: offer booked", types.ErrInvalidState), http.StatusConflict, false},
		{errors.New("db down"), http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		writeServiceError(c, tt.err)
		if w.Code != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, w.Code)
		}
		var body errorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%v: decode body: %v", tt.err, err)
		}
		if body.Retryable != tt.retryable {
			t.Errorf("%v: retryable = %v, want %v", tt.err, body.Retryable, tt.retryable)
		}
	}
}

func TestQueryLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query string
		want  int
		ok    bool
	}{
		{"", 0, true},
		{"limit=20", 20, true},
		{"limit=5000", maxPageSize, true},
		{"limit=-1", 0, false},
		{"limit=abc", 0, false},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		got, ok := queryLimit(c)
		if got != tt.want || ok != tt.ok {
			t.Errorf("%q: got (%d, %v), want (%d, %v)", tt.query, got, ok, tt.want, tt.ok)
		}
	}
}
