package demoapp_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/williamokano/web_deployer/pkg/demoapp"
)

func TestGreeting_Routes(t *testing.T) {
	e := demoapp.NewGreeting(zerolog.Nop())

	tests := []struct {
		path string
		body string
	}{
		{path: "/", body: "Hello from web_deployer!"},
		{path: "/about", body: "This is the about page."},
		{path: "/contact", body: "Contact us at admin@example.com."},
		{path: "/status", body: "OK"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rec := httptest.NewRecorder()

			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestGreeting_Healthz(t *testing.T) {
	e := demoapp.NewGreeting(zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok"}`, rec.Body.String())
}

func TestGreeting_UnknownRoute(t *testing.T) {
	e := demoapp.NewGreeting(zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/pricing", nil)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
