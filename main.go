package main

import (
	"flag"
	"mountains-server/engine"
	"mountains-server/handlers/api/assets"
	"mountains-server/handlers/api/unfurl"
	"mountains-server/handlers/auth"
	ws "mountains-server/handlers/websocket"
	authMiddleware "mountains-server/middleware"
	"mountains-server/rooms"
	"mountains-server/sessions"
	"mountains-server/stores"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func setupRouter(gate *auth.Gate, registry *rooms.Registry, store stores.Store) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "Host", "Connection", "Accept-Encoding", "Accept-Language", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/isauthenticated", gate.HandleIsAuthenticated)
	r.Get("/login/github", gate.HandleLogin)
	r.Get("/login/github/callback", gate.HandleCallback)

	r.Get("/connect/{roomId}", ws.Handle(registry, gate))

	// Everything below requires a live session.
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireSession(gate))

		r.Post("/logout", gate.HandleLogout)

		r.Route("/uploads/{id}", func(r chi.Router) {
			r.Put("/", assets.HandlePut(store))
			r.Get("/", assets.HandleGet(store))
		})

		r.Get("/unfurl", unfurl.Handle())

		r.Get("/rooms", func(w http.ResponseWriter, r *http.Request) {
			render.JSON(w, r, registry.ActiveRooms())
		})
	})

	return r
}

func waitForShutdown(registry *rooms.Registry) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down, flushing live rooms")
	registry.Shutdown()
	os.Exit(0)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":5858", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	dev := flag.Bool("dev", false, "Disable authentication for local development. Never enable on a deployed instance.")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	store := stores.GetStore()
	gate := auth.NewGate(sessions.NewStore(), *dev)
	registry := rooms.NewRegistry(engine.NewRelay(store))

	r := setupRouter(gate, registry, store)

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(registry)
}
