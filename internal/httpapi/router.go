package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/relayim/socialcore/internal/auth"
	"github.com/relayim/socialcore/internal/config"
	"github.com/relayim/socialcore/internal/service/friendrequest"
	"github.com/relayim/socialcore/internal/service/relationship"
	"github.com/relayim/socialcore/internal/service/relgroup"
)

// Server holds dependencies for HTTP handlers
type Server struct {
	Cfg            *config.Manager
	FriendRequests *friendrequest.Service
	Groups         *relgroup.Service
	Relationships  *relationship.Service
	Blocker        *ClientBlocker
}

// parseIDParam parses a required int64 path param.
func parseIDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil
}

// parseIndexParam parses a required int32 group index path param.
func parseIndexParam(r *http.Request, name string) (int32, bool) {
	idx, err := strconv.ParseInt(chi.URLParam(r, name), 10, 32)
	if err != nil || idx < 0 {
		return 0, false
	}
	return int32(idx), true
}

// parseInt32 parses a non-negative int32.
func parseInt32(raw string) (int32, error) {
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

// parseTimeQuery parses an optional RFC3339 query param.
func parseTimeQuery(r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// Routes creates the HTTP router with the user and admin endpoints
func (s *Server) Routes(jwt auth.JWTCfg, adminToken string) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorrelationMiddleware)

	// Health check (unauthenticated)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})

	// User endpoints require authentication
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwt))
		r.Use(RateLimitMiddleware(RateLimitInfo{WindowSeconds: 60, MaxRequests: 600, Burst: 120}))
		if s.Blocker != nil {
			r.Use(s.Blocker.Middleware)
		}

		// Friend requests
		r.Post("/v1/friend-requests", s.CreateFriendRequest)
		r.Get("/v1/friend-requests", s.ListFriendRequests)
		r.Put("/v1/friend-requests/{requestId}", s.HandleFriendRequest)
		r.Delete("/v1/friend-requests/{requestId}", s.RecallFriendRequest)

		// Relationship groups
		r.Post("/v1/relationship-groups", s.CreateGroup)
		r.Get("/v1/relationship-groups", s.ListGroups)
		r.Put("/v1/relationship-groups/{groupIndex}", s.RenameGroup)
		r.Delete("/v1/relationship-groups/{groupIndex}", s.DeleteGroup)
		r.Post("/v1/relationship-groups/{groupIndex}/members", s.UpsertGroupMember)
		r.Get("/v1/relationship-groups/{groupIndex}/members", s.ListGroupMembers)
		r.Delete("/v1/relationship-groups/{groupIndex}/members/{relatedUserId}", s.RemoveGroupMember)
	})

	// Admin endpoints require the shared admin token
	r.Group(func(r chi.Router) {
		r.Use(adminTokenMiddleware(adminToken))

		r.Post("/admin/friend-requests", s.AdminCreateFriendRequest)
		r.Get("/admin/friend-requests", s.AdminListFriendRequests)
		r.Get("/admin/friend-requests/count", s.AdminCountFriendRequests)
		r.Put("/admin/friend-requests", s.AdminUpdateFriendRequests)
		r.Delete("/admin/friend-requests", s.AdminDeleteFriendRequests)

		r.Get("/admin/relationship-groups", s.AdminListGroups)
		r.Get("/admin/relationship-groups/count", s.AdminCountGroups)
		r.Get("/admin/relationship-groups/members/count", s.AdminCountGroupMembers)
		r.Put("/admin/relationship-groups", s.AdminUpdateGroups)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}

// adminTokenMiddleware guards the admin surface with a shared secret. An
// empty configured token disables the surface entirely.
func adminTokenMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := r.Header.Get("X-Admin-Token")
			if token == "" || subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
				writeError(w, http.StatusForbidden, "invalid admin token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
