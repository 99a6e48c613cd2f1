package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"codearena/internal/common/http/middleware"
	"codearena/pkg/utils/contextkey"

	"github.com/gin-gonic/gin"
)

type traceResponse struct {
	TraceID      string `json:"trace_id"`
	RequestID    string `json:"request_id"`
	CtxTraceID   string `json:"ctx_trace_id"`
	CtxRequestID string `json:"ctx_request_id"`
}

func TestTraceContextMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.TraceContextMiddleware())
	router.GET("/trace", func(c *gin.Context) {
		ctx := c.Request.Context()
		c.JSON(http.StatusOK, traceResponse{
			TraceID:      c.GetString("trace_id"),
			RequestID:    c.GetString("request_id"),
			CtxTraceID:   toString(ctx.Value(contextkey.TraceID)),
			CtxRequestID: toString(ctx.Value(contextkey.RequestID)),
		})
	})

	cases := []struct {
		name              string
		headers           map[string]string
		expectedTraceID   string
		expectedRequestID string
	}{
		{name: "generate trace and request id"},
		{
			name: "preserve trace and request id",
			headers: map[string]string{
				middleware.TraceIDHeader:   "trace-123",
				middleware.RequestIDHeader: " req-456 ",
			},
			expectedTraceID:   "trace-123",
			expectedRequestID: "req-456",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/trace", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("unexpected status: %d", rec.Code)
			}
			var resp traceResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response failed: %v", err)
			}

			traceHeader := rec.Header().Get(middleware.TraceIDHeader)
			requestHeader := rec.Header().Get(middleware.RequestIDHeader)
			if traceHeader == "" || requestHeader == "" {
				t.Fatalf("trace and request headers must be set")
			}
			if resp.TraceID != traceHeader || resp.CtxTraceID != traceHeader {
				t.Fatalf("trace id mismatch: header=%q gin=%q ctx=%q", traceHeader, resp.TraceID, resp.CtxTraceID)
			}
			if resp.RequestID != requestHeader || resp.CtxRequestID != requestHeader {
				t.Fatalf("request id mismatch: header=%q gin=%q ctx=%q", requestHeader, resp.RequestID, resp.CtxRequestID)
			}
			if tc.expectedTraceID != "" && traceHeader != tc.expectedTraceID {
				t.Fatalf("expected trace id %q, got %q", tc.expectedTraceID, traceHeader)
			}
			if tc.expectedRequestID != "" && requestHeader != tc.expectedRequestID {
				t.Fatalf("expected request id %q, got %q", tc.expectedRequestID, requestHeader)
			}
		})
	}
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}
