package api

import "github.com/gofiber/fiber/v2"

// Route is implemented by every feature's API surface; Setup registers its
// endpoints on the shared fiber app.
type Route interface {
	Setup(app *fiber.App)
}
