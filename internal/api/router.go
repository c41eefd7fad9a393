package api

import (
	"database/sql"
	"net/http"

	"github.com/aaal/envanter/internal/audit"
	"github.com/aaal/envanter/internal/ledger"
	"github.com/aaal/envanter/internal/lifecycle"
	"github.com/aaal/envanter/internal/model"
	"github.com/aaal/envanter/internal/photos"
)

// Deps are the services the API is built on.
type Deps struct {
	DB         *sql.DB
	JWTSecret  string
	BcryptCost int
	Engine     *lifecycle.Engine
	Ledger     *ledger.Ledger
	Audit      *audit.Recorder
	Photos     *photos.Photos
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret, BcryptCost: d.BcryptCost, Audit: d.Audit}
	usersHandler := &UsersHandler{DB: d.DB, BcryptCost: d.BcryptCost, Audit: d.Audit}
	inventoryHandler := &InventoryHandler{DB: d.DB, Ledger: d.Ledger, Audit: d.Audit, Photos: d.Photos}
	requestsHandler := &RequestsHandler{Engine: d.Engine}
	logsHandler := &LogsHandler{Audit: d.Audit}

	authMW := AuthMiddleware(d.JWTSecret, d.DB)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireApprover := RequireRole(model.RoleAdvisor)

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/health", health(d.DB))

	// Own account.
	mux.Handle("GET /api/auth/me", authMW(http.HandlerFunc(authHandler.Me)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("PUT /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("DELETE /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Inventory: read (all roles), write (advisor+).
	mux.Handle("GET /api/inventory", authMW(http.HandlerFunc(inventoryHandler.List)))
	mux.Handle("POST /api/inventory", authMW(requireApprover(http.HandlerFunc(inventoryHandler.Create))))
	mux.Handle("PUT /api/inventory", authMW(requireApprover(http.HandlerFunc(inventoryHandler.Update))))
	mux.Handle("DELETE /api/inventory", authMW(requireApprover(http.HandlerFunc(inventoryHandler.Delete))))
	mux.Handle("GET /api/inventory/photo", authMW(http.HandlerFunc(inventoryHandler.GetPhoto)))
	mux.Handle("PUT /api/inventory/photo", authMW(requireApprover(http.HandlerFunc(inventoryHandler.UploadPhoto))))

	// Requests: every role; the lifecycle engine decides who may do what.
	mux.Handle("GET /api/requests", authMW(http.HandlerFunc(requestsHandler.List)))
	mux.Handle("POST /api/requests", authMW(http.HandlerFunc(requestsHandler.Create)))
	mux.Handle("PUT /api/requests", authMW(http.HandlerFunc(requestsHandler.Update)))
	mux.Handle("DELETE /api/requests", authMW(http.HandlerFunc(requestsHandler.Cancel)))

	// Activity log (admin only).
	mux.Handle("GET /api/logs", authMW(requireAdmin(http.HandlerFunc(logsHandler.List))))

	return mux
}

// health handles GET /api/health.
func health(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			jsonError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
