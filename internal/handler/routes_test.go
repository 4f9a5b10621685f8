package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"jwt-proxy-go/internal/classifier"
)

func TestRegisterRoutes_EveryPathReachesDispatcher(t *testing.T) {
	h, _ := newTestHandler(t, classifier.NewStaticClassifier([]string{"proxy.local"}))
	e := echo.New()
	RegisterRoutes(e, h)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusNotFound},
		{http.MethodGet, StatusPath, http.StatusOK},
		{http.MethodHead, StatusPath, http.StatusOK},
		{http.MethodPut, "/a/b/c", http.StatusNotFound},
		{http.MethodPatch, HealthzPath, http.StatusOK},
		{http.MethodOptions, "/anything", http.StatusNotFound},
		{"PURGE", StatusPath, http.StatusOK},
		{"MKCOL", "/", http.StatusNotFound},
		{"LINK", "/a/b", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			req.Host = "proxy.local"
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
