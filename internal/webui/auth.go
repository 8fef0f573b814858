package webui

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vmunix/searchd/internal/crypto"
)

const passwordHeader = "X-Seekarr-Password"

// authMiddleware gates every protected /api/* route behind the single
// stored Web UI password, checked via HTTP Basic auth or the
// X-Seekarr-Password header, exactly like the original's before_request
// hook. A request is unauthorized both when no password has been set yet
// and when the supplied one doesn't match.
func (s *Server) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		hash, err := s.Store.GetWebUIPasswordHash()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "checking web ui password")
		}
		if hash == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Web UI password not set")
		}

		if !crypto.VerifyPassword(requestPassword(c), hash) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
		return next(c)
	}
}

func requestPassword(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Basic ") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
		if err != nil {
			return ""
		}
		if _, pw, ok := strings.Cut(string(decoded), ":"); ok {
			return pw
		}
		return ""
	}
	return c.Request().Header.Get(passwordHeader)
}
