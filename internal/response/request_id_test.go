package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func requestIDRouter(captured *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		*captured = c.GetString(ContextKeyRequestID)
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequestIDHonorsValidInboundHeader(t *testing.T) {
	var captured string
	r := requestIDRouter(&captured)

	inbound := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", inbound)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if captured != inbound {
		t.Errorf("expected context request id %q, got %q", inbound, captured)
	}
	if got := w.Header().Get("X-Request-ID"); got != inbound {
		t.Errorf("expected echoed header %q, got %q", inbound, got)
	}
}

func TestRequestIDReplacesNonUUIDHeader(t *testing.T) {
	for _, inbound := range []string{"", "evil\ninjected=line", "not-a-uuid"} {
		var captured string
		r := requestIDRouter(&captured)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if inbound != "" {
			req.Header.Set("X-Request-ID", inbound)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if _, err := uuid.Parse(captured); err != nil {
			t.Errorf("inbound %q: expected a generated UUID, got %q", inbound, captured)
		}
		if captured == inbound {
			t.Errorf("inbound %q must not be trusted", inbound)
		}
		if got := w.Header().Get("X-Request-ID"); got != captured {
			t.Errorf("inbound %q: header %q does not match context id %q", inbound, got, captured)
		}
	}
}
