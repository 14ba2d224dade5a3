package api

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anova4all/gateway/internal/gwerrors"
)

func TestWriteError_MapsKindsToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{gwerrors.ErrValidation("bad"), fiber.StatusBadRequest},
		{gwerrors.ErrAuth("bad"), fiber.StatusUnauthorized},
		{gwerrors.ErrNotFound("bad"), fiber.StatusNotFound},
		{gwerrors.ErrConnection("bad", nil), fiber.StatusServiceUnavailable},
		{gwerrors.ErrCommandTimeout("bad"), fiber.StatusGatewayTimeout},
		{gwerrors.ErrTransportUnsupported("bad"), fiber.StatusInternalServerError},
		{errors.New("plain"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error {
			return writeError(c, tc.err)
		})

		req := httptest.NewRequest("GET", "/", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, tc.status, resp.StatusCode)
	}
}
