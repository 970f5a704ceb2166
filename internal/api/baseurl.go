package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// BaseURL resolves the externally reachable address of this service: the
// configured public URL, then the forwarding headers, then the request's
// own scheme and host. Default ports are omitted.
func BaseURL(c *fiber.Ctx, public string) string {
	if public = strings.TrimSpace(public); public != "" {
		return strings.TrimRight(public, "/")
	}
	proto := firstValue(c.Get("X-Forwarded-Proto"))
	host := firstValue(c.Get("X-Forwarded-Host"))
	if proto != "" && host != "" {
		return strings.ToLower(proto) + "://" + host
	}

	scheme := "http"
	if c.Context().IsTLS() {
		scheme = "https"
	}
	return scheme + "://" + stripDefaultPort(scheme, string(c.Request().Host()))
}

func firstValue(header string) string {
	if i := strings.IndexByte(header, ','); i >= 0 {
		header = header[:i]
	}
	return strings.TrimSpace(header)
}

func stripDefaultPort(scheme, host string) string {
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	}
	return host
}
