package internal

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	pkgAuth "github.com/anekolabs/whatsapp-admin-api/pkg/auth"
	"github.com/anekolabs/whatsapp-admin-api/pkg/env"
	"github.com/anekolabs/whatsapp-admin-api/pkg/realtime"
	"github.com/anekolabs/whatsapp-admin-api/pkg/router"
	"github.com/anekolabs/whatsapp-admin-api/pkg/store"
	"github.com/anekolabs/whatsapp-admin-api/pkg/whatsapp"

	ctlAdmin "github.com/anekolabs/whatsapp-admin-api/internal/admin"
	ctlAuth "github.com/anekolabs/whatsapp-admin-api/internal/auth"
	ctlContacts "github.com/anekolabs/whatsapp-admin-api/internal/contacts"
	ctlGroups "github.com/anekolabs/whatsapp-admin-api/internal/groups"
	ctlIndex "github.com/anekolabs/whatsapp-admin-api/internal/index"
	ctlMessaging "github.com/anekolabs/whatsapp-admin-api/internal/messaging"
	ctlSession "github.com/anekolabs/whatsapp-admin-api/internal/session"
)

// Deps carries the constructed collaborators the routes close over.
type Deps struct {
	Manager *whatsapp.Manager
	Store   *store.Store
	Hub     *realtime.Hub
}

func Routes(app *fiber.App, deps Deps) {
	sessions := &ctlSession.Handler{Manager: deps.Manager}
	messaging := &ctlMessaging.Handler{Manager: deps.Manager, Store: deps.Store}
	contacts := &ctlContacts.Handler{Store: deps.Store}
	groups := &ctlGroups.Handler{Manager: deps.Manager, Store: deps.Store}
	admin := &ctlAdmin.Handler{Manager: deps.Manager, Hub: deps.Hub}

	// Route for Index
	// ---------------------------------------------
	if router.BaseURL == "" {
		app.Get("/", ctlIndex.Index)
	} else {
		app.Get(router.BaseURL, ctlIndex.Index)
		app.Get(router.BaseURL+"/", ctlIndex.Index)
	}

	// ============================================================
	// ADMIN ROUTES (X-Admin-Secret authentication)
	// ============================================================
	adminMiddleware := pkgAuth.AdminAuth()

	app.Get(router.BaseURL+"/admin/health", adminMiddleware, admin.GetHealth)
	app.Get(router.BaseURL+"/admin/stats", adminMiddleware, admin.GetStats)

	// Panel token issuance is an administrative act.
	app.Post(router.BaseURL+"/auth/token", adminMiddleware, ctlAuth.IssuePanelToken)

	// ============================================================
	// PANEL ROUTES (JWT Bearer token authentication)
	// ============================================================
	panelMiddleware := pkgAuth.PanelAuth()

	// Session lifecycle
	app.Post(router.BaseURL+"/sessions", panelMiddleware, sessions.Create)
	app.Get(router.BaseURL+"/sessions", panelMiddleware, sessions.List)
	app.Get(router.BaseURL+"/sessions/:id", panelMiddleware, sessions.Get)
	app.Get(router.BaseURL+"/sessions/:id/health", panelMiddleware, sessions.Health)
	app.Post(router.BaseURL+"/sessions/:id/recover", panelMiddleware, sessions.Recover)
	app.Delete(router.BaseURL+"/sessions/:id", panelMiddleware, sessions.Logout)

	// Messaging. Single sends are rate limited per session; bulk sends pace
	// themselves internally.
	sendLimiter := router.SendRateLimit(
		env.GetEnvIntOrDefault("SEND_RATE_PER_MINUTE", 30),
		env.GetEnvIntOrDefault("SEND_RATE_BURST", 5),
	)
	app.Post(router.BaseURL+"/sessions/:id/messages", panelMiddleware, sendLimiter, messaging.SendText)
	app.Post(router.BaseURL+"/sessions/:id/messages/bulk", panelMiddleware, messaging.SendBulk)
	app.Post(router.BaseURL+"/sessions/:id/groups/:group_id/messages", panelMiddleware, messaging.SendGroup)
	app.Post(router.BaseURL+"/sessions/:id/images", panelMiddleware, sendLimiter, messaging.SendImage)
	app.Post(router.BaseURL+"/sessions/:id/documents", panelMiddleware, sendLimiter, messaging.SendDocument)
	app.Post(router.BaseURL+"/sessions/:id/reactions", panelMiddleware, sendLimiter, messaging.React)

	// Network-level group operations through a session
	app.Post(router.BaseURL+"/sessions/:id/groups", panelMiddleware, groups.CreateNetworkGroup)
	app.Get(router.BaseURL+"/sessions/:id/chats", panelMiddleware, groups.Chats)

	// Address book
	app.Post(router.BaseURL+"/contacts", panelMiddleware, contacts.Create)
	app.Get(router.BaseURL+"/contacts", panelMiddleware, router.HttpCacheInMemory(router.CacheTTLSeconds), contacts.List)
	app.Get(router.BaseURL+"/contacts/export", panelMiddleware, contacts.Export)
	app.Post(router.BaseURL+"/contacts/import", panelMiddleware, contacts.Import)
	app.Get(router.BaseURL+"/contacts/:id", panelMiddleware, contacts.Get)
	app.Put(router.BaseURL+"/contacts/:id", panelMiddleware, contacts.Update)
	app.Delete(router.BaseURL+"/contacts/:id", panelMiddleware, contacts.Delete)

	// Stored broadcast groups
	app.Post(router.BaseURL+"/groups", panelMiddleware, groups.Create)
	app.Get(router.BaseURL+"/groups", panelMiddleware, groups.List)
	app.Get(router.BaseURL+"/groups/:group_id", panelMiddleware, groups.Get)
	app.Put(router.BaseURL+"/groups/:group_id/members", panelMiddleware, groups.SetMembers)
	app.Delete(router.BaseURL+"/groups/:group_id", panelMiddleware, groups.Delete)

	// ============================================================
	// DASHBOARD WEBSOCKET (panel token in query; browsers cannot set
	// an Authorization header on a websocket handshake)
	// ============================================================
	app.Use(router.BaseURL+"/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		token := c.Query("token")
		if token == "" {
			return router.ResponseUnauthorized(c, "Missing token")
		}
		if _, err := pkgAuth.ValidatePanelToken(token); err != nil {
			return router.ResponseUnauthorized(c, "Invalid or expired token")
		}
		return c.Next()
	})
	app.Get(router.BaseURL+"/ws", websocket.New(deps.Hub.Serve))
}
