package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	// SessionIDHeader carries the storefront session across requests.
	SessionIDHeader = "X-Session-ID"
	// LocalSessionID is the fiber.Ctx local holding the session id.
	LocalSessionID = "session_id"
)

// RequestID ensures each request has a stable request identifier for tracing and logging.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(requestIDHeader, reqID)

		return c.Next()
	}
}

// Session assigns a session id to requests that do not carry one and echoes
// it back so the client can keep using it.
func Session() fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid := c.Get(SessionIDHeader)
		if _, err := uuid.Parse(sid); err != nil {
			sid = uuid.NewString()
		}
		c.Set(SessionIDHeader, sid)
		c.Locals(LocalSessionID, sid)
		return c.Next()
	}
}

// SessionIDFrom returns the session id stored by Session.
func SessionIDFrom(c *fiber.Ctx) string {
	sid, _ := c.Locals(LocalSessionID).(string)
	return sid
}
