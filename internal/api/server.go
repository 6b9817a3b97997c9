package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/SamuelRobart/church-chat-service/internal/model"
	"github.com/SamuelRobart/church-chat-service/internal/store"
	"github.com/SamuelRobart/church-chat-service/internal/ws"
)

type Server struct {
	store store.Store
	log   *zap.SugaredLogger
}

// NewServer mounts the chat upgrade endpoint and the REST surface the chat
// UI calls: history retrieval and a health probe. The dashboard, member and
// event APIs live in their own services.
func NewServer(handler *ws.Handler, st store.Store, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(logger.New())
	app.Use(cors.New())

	s := &Server{store: st, log: log}

	app.Get("/chat", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/chat", websocket.New(handler.Handle()))

	api := app.Group("/api")
	api.Get("/messages", s.getMessages)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	return app
}

// getMessages returns the ordered history. With ?after=<seq> only entries
// past that sequence are returned, which is what a reconnecting client uses
// to fill the gap since its last received message.
func (s *Server) getMessages(c *fiber.Ctx) error {
	var (
		msgs []model.ChatMessage
		err  error
	)
	if after := c.Query("after"); after != "" {
		seq, perr := strconv.ParseInt(after, 10, 64)
		if perr != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid after cursor"})
		}
		msgs, err = s.store.Since(c.Context(), seq)
	} else {
		msgs, err = s.store.All(c.Context())
	}
	if err != nil {
		s.log.Errorw("history fetch failed", "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "history unavailable"})
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	return c.JSON(msgs)
}
