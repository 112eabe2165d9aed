package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantKept bool
	}{
		{"absent", "", false},
		{"kept", "kiosk-01.req-7", true},
		{"too long", strings.Repeat("x", maxRequestIDLength+1), false},
		{"whitespace", "a b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestIDMiddleware())
			r.GET("/", func(c *gin.Context) { Success(c, http.StatusOK, nil) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("X-Request-ID", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got == "" {
				t.Fatal("no request id")
			}
			if (got == tt.header) != tt.wantKept {
				t.Fatalf("X-Request-ID = %q, header %q", got, tt.header)
			}

			var env Response
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatal(err)
			}
			if env.Metadata.RequestID != got {
				t.Fatalf("metadata id = %q, header %q", env.Metadata.RequestID, got)
			}
		})
	}
}

func TestFailWithData_CarriesSessionAndPayload(t *testing.T) {
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		c.Set(ContextKeySessionID, "sess-1")
		FailWithData(c, http.StatusServiceUnavailable, ErrStorageUnavailable, gin.H{"got": 2})
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", w.Code)
	}
	var env struct {
		Data     map[string]int `json:"data"`
		Error    ErrorBody      `json:"error"`
		Metadata Metadata       `json:"metadata"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Data["got"] != 2 || env.Error.Code != ErrStorageUnavailable || env.Metadata.SessionID != "sess-1" {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Error.Message != GetMessage(ErrStorageUnavailable) {
		t.Fatalf("message = %q", env.Error.Message)
	}
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(3, 20, 41)
	if p.TotalPages != 3 || p.Offset() != 40 {
		t.Fatalf("pagination = %+v offset %d", p, p.Offset())
	}
	if empty := NewPagination(1, 20, 0); empty.TotalPages != 0 {
		t.Fatalf("empty pages = %d", empty.TotalPages)
	}
}
