package exts

import "github.com/gofiber/fiber/v2"

// UserID returns the identity the authenticating gateway injected upstream.
// Authentication itself lives outside this service; an empty value means an
// anonymous caller and is judged by the voting policy.
func UserID(c *fiber.Ctx) string {
	return c.Get("X-User")
}
