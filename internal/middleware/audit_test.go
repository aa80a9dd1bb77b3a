package middleware

import (
	"bytes"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestAuditAttributesRequestsToUser(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "user-42")
		return c.Next()
	})
	app.Use(Audit(logger))
	app.Get("/wallet/balances", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/wallet/balances", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected %d got %d", fiber.StatusOK, resp.StatusCode)
	}

	line := buf.String()
	for _, want := range []string{`"user_id":"user-42"`, `"path":"/wallet/balances"`, `"status":200`} {
		if !strings.Contains(line, want) {
			t.Fatalf("audit log missing %s: %s", want, line)
		}
	}
}

func TestAuditOmitsUserWhenAnonymous(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(Audit(logger))
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	if _, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil)); err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if strings.Contains(buf.String(), "user_id") {
		t.Fatalf("anonymous request attributed to a user: %s", buf.String())
	}
}
