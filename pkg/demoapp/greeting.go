package demoapp

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Fixed responses served by the greeting app. Deployment checks curl these
// routes and compare the bodies byte for byte.
const (
	GreetingHome    = "Hello from web_deployer!"
	GreetingAbout   = "This is the about page."
	GreetingContact = "Contact us at admin@example.com."
	GreetingStatus  = "OK"
)

// NewGreeting builds the fixed-route greeting app
func NewGreeting(logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(requestLogger(logger))

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, GreetingHome)
	})
	e.GET("/about", func(c echo.Context) error {
		return c.String(http.StatusOK, GreetingAbout)
	})
	e.GET("/contact", func(c echo.Context) error {
		return c.String(http.StatusOK, GreetingContact)
	})
	e.GET("/status", func(c echo.Context) error {
		return c.String(http.StatusOK, GreetingStatus)
	})
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return e
}
