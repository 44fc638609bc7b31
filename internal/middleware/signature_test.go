package middleware

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/securevault/securevault/internal/auth"
	"github.com/securevault/securevault/internal/logging"
)

var testSecret = []byte("vault-secret")

func signatureApp(reached *int) *fiber.App {
	app := fiber.New()
	app.Use(Signature(testSecret, logging.Discard()))
	app.Post("/transfers", func(c *fiber.Ctx) error {
		*reached++
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/transfers", func(c *fiber.Ctx) error {
		*reached++
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestSignatureGate(t *testing.T) {
	body := `{"senderId":"a","receiverId":"b","amount":40}`
	valid := auth.Sign(testSecret, []byte(body))
	flipped := []byte(valid)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}

	cases := []struct {
		name   string
		body   string
		sig    string
		status int
		passes bool
	}{
		{"valid", body, valid, fiber.StatusOK, true},
		{"missing header", body, "", fiber.StatusUnauthorized, false},
		{"empty body", "", valid, fiber.StatusUnauthorized, false},
		{"short signature", body, valid[:32], fiber.StatusForbidden, false},
		{"one nibble off", body, string(flipped), fiber.StatusForbidden, false},
		{"body tampered", strings.Replace(body, "40", "400", 1), valid, fiber.StatusForbidden, false},
		{"wrong secret", body, auth.Sign([]byte("other"), []byte(body)), fiber.StatusForbidden, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reached := 0
			app := signatureApp(&reached)

			req := httptest.NewRequest(fiber.MethodPost, "/transfers", bytes.NewBufferString(tc.body))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			if tc.sig != "" {
				req.Header.Set(SignatureHeader, tc.sig)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.StatusCode)
			}
			if (reached == 1) != tc.passes {
				t.Fatalf("handler reached=%d, expected passes=%v", reached, tc.passes)
			}
		})
	}
}

func TestSignatureSkipsSafeMethods(t *testing.T) {
	reached := 0
	app := signatureApp(&reached)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/transfers", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK || reached != 1 {
		t.Fatalf("expected GET to bypass the gate, status %d reached %d", resp.StatusCode, reached)
	}
}
