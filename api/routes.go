package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"streamwise/handlers"
	"streamwise/services/sessions"
)

// Register wires every API route onto the router.
func Register(
	r *mux.Router,
	authHandler *handlers.AuthHandler,
	usersHandler *handlers.UsersHandler,
	stateHandler *handlers.StateHandler,
	catalogHandler *handlers.CatalogHandler,
	advisorHandler *handlers.AdvisorHandler,
	imageHandler *handlers.ImageHandler,
	settingsHandler *handlers.SettingsHandler,
	sessionsSvc *sessions.Service,
) {
	api := r.PathPrefix("/api").Subrouter()

	// Public routes. Profiles are listed before sign-in so the client can
	// show the profile picker, and the service catalog is static data.
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/users", usersHandler.List).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/users", usersHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/services", catalogHandler.List).Methods(http.MethodGet, http.MethodOptions)

	// Poster proxy stays public; Image components cannot send auth headers.
	api.HandleFunc("/images/proxy", imageHandler.Proxy).Methods(http.MethodGet)

	// Protected routes - require a session token.
	protected := api.PathPrefix("").Subrouter()
	protected.Use(AuthMiddleware(sessionsSvc))

	protected.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet, http.MethodOptions)

	protected.HandleFunc("/users/{userID}", usersHandler.Update).Methods(http.MethodPatch, http.MethodOptions)
	protected.HandleFunc("/users/{userID}", usersHandler.Delete).Methods(http.MethodDelete)
	protected.HandleFunc("/users/{userID}/pin", usersHandler.SetPin).Methods(http.MethodPut, http.MethodOptions)
	protected.HandleFunc("/users/{userID}/pin", usersHandler.ClearPin).Methods(http.MethodDelete)

	// UI state: snapshot, live stream, and the intents that mutate it.
	protected.HandleFunc("/state", stateHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/state/stream", stateHandler.Stream).Methods(http.MethodGet)
	protected.HandleFunc("/state/search", stateHandler.Search).Methods(http.MethodGet)
	protected.HandleFunc("/state/search", stateHandler.SetSearch).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/state/watchlist", stateHandler.AddToWatchlist).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/state/watchlist/{itemID}", stateHandler.SetStatus).Methods(http.MethodPatch, http.MethodOptions)
	protected.HandleFunc("/state/watchlist/{itemID}", stateHandler.DeleteItem).Methods(http.MethodDelete)
	protected.HandleFunc("/state/subscriptions/{serviceID}/toggle", stateHandler.ToggleSubscription).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/state/usage/{serviceID}", stateHandler.LogUsage).Methods(http.MethodPost, http.MethodOptions)

	protected.HandleFunc("/advisor/suggestion", advisorHandler.Suggestion).Methods(http.MethodGet, http.MethodOptions)

	protected.HandleFunc("/settings", settingsHandler.GetSettings).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/settings", settingsHandler.PutSettings).Methods(http.MethodPut)
}
