package handler

import (
	"net/http"
	"time"

	"teamhub-backend/pkg/config"
	"teamhub-backend/pkg/database"
	"teamhub-backend/pkg/handlers"
	"teamhub-backend/pkg/mailer"
	customMiddleware "teamhub-backend/pkg/middleware"
	"teamhub-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler is the serverless entry point. All API endpoints live on a
// single Chi router so one function serves the whole surface.
func Handler(w http.ResponseWriter, r *http.Request) {
	cfg := config.GetCached()
	if err := cfg.Validate(); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}

	db, err := database.GetDatabase(cfg)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Database error: "+err.Error())
		return
	}

	NewRouter(cfg, db).ServeHTTP(w, r)
}

// NewRouter builds the full API router. Split out from Handler so a
// long-running server and tests can mount the same routes.
func NewRouter(cfg *config.Config, db database.DatabaseInterface) *chi.Mux {
	router := chi.NewRouter()
	setupMiddleware(router, cfg)
	setupRoutes(router, cfg, db)
	return router
}

func setupMiddleware(router *chi.Mux, cfg *config.Config) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(cfg))
	router.Use(customMiddleware.Recovery(cfg))

	router.Use(customMiddleware.CORS(cfg))
	router.Use(customMiddleware.ContentTypeJSON)
	router.Use(customMiddleware.MaxBodySize(1 << 20))

	// Leave headroom under the platform's function time limit.
	router.Use(middleware.Timeout(25 * time.Second))
	router.Use(middleware.Compress(5))

	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

func setupRoutes(router *chi.Mux, cfg *config.Config, db database.DatabaseInterface) {
	mail := mailer.New(cfg)

	authHandler := handlers.NewAuthHandler(cfg, db)
	orgsHandler := handlers.NewOrgsHandler(cfg, db, mail)
	inboxHandler := handlers.NewInboxHandler(cfg, db)
	adminHandler := handlers.NewAdminHandler(cfg, db)
	webhookHandler := handlers.NewWebhookHandler(cfg, db)

	router.Get("/", authHandler.HealthCheck)

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", authHandler.HealthCheck)

		// Public auth routes. Registered flat so the authenticated
		// /auth/* endpoints below share the same routing tree.
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)
		r.Post("/auth/logout", authHandler.Logout)
		r.Post("/auth/2fa/verify", authHandler.TwoFactorVerify)
		r.Post("/auth/oauth/google", authHandler.GoogleOAuth)
		r.Post("/auth/oauth/github", authHandler.GitHubOAuth)
		r.Get("/oauth/google/callback", authHandler.GoogleOAuthCallback)
		r.Get("/oauth/github/callback", authHandler.GitHubOAuthCallback)

		// Webhooks authenticate via signature, not tokens
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/leads/{orgSlug}", webhookHandler.ReceiveLead)
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))

			r.Get("/auth/me", authHandler.Me)
			r.Get("/auth/sessions", authHandler.ListSessions)
			r.Delete("/auth/sessions/{sessionID}", authHandler.RevokeSession)
			r.Post("/auth/2fa/setup", authHandler.TwoFactorSetup)
			r.Post("/auth/2fa/enable", authHandler.TwoFactorEnable)
			r.Post("/auth/2fa/disable", authHandler.TwoFactorDisable)

			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", orgsHandler.ListMyOrganizations)
				r.Post("/", orgsHandler.CreateOrganization)

				r.Route("/{orgID}", func(r chi.Router) {
					r.Get("/", orgsHandler.GetOrganization)
					r.Patch("/", orgsHandler.UpdateOrganization)
					r.Delete("/", orgsHandler.DeleteOrganization)

					r.Get("/members", orgsHandler.ListMembers)
					r.Patch("/members/{memberID}", orgsHandler.UpdateMemberRole)
					r.Delete("/members/{memberID}", orgsHandler.RemoveMember)

					r.Get("/invitations", orgsHandler.ListOrgInvitations)
					r.Post("/invitations", orgsHandler.InviteMember)
					r.Delete("/invitations/{invitationID}", orgsHandler.CancelInvitation)

					r.Route("/conversations", func(r chi.Router) {
						r.Get("/", inboxHandler.ListConversations)
						r.Post("/", inboxHandler.CreateConversation)
						r.Get("/{conversationID}", inboxHandler.GetConversation)
						r.Post("/{conversationID}/status", inboxHandler.SetConversationStatus)
						r.Delete("/{conversationID}", inboxHandler.DeleteConversation)
						r.Post("/{conversationID}/messages", inboxHandler.PostMessage)
					})

					r.Route("/leads", func(r chi.Router) {
						r.Get("/", inboxHandler.ListLeads)
						r.Post("/", inboxHandler.CreateLead)
						r.Get("/{leadID}", inboxHandler.GetLead)
						r.Post("/{leadID}/status", inboxHandler.SetLeadStatus)
					})

					r.Route("/templates", func(r chi.Router) {
						r.Get("/", inboxHandler.ListTemplates)
						r.Post("/", inboxHandler.CreateTemplate)
						r.Patch("/{templateID}", inboxHandler.UpdateTemplate)
						r.Delete("/{templateID}", inboxHandler.DeleteTemplate)
					})
				})
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Get("/my", orgsHandler.ListMyInvitations)
				r.Post("/accept", orgsHandler.AcceptInvitation)
				r.Post("/reject", orgsHandler.RejectInvitation)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Get("/users", adminHandler.ListUsers)
				r.Get("/users/{userID}", adminHandler.GetUser)
				r.Post("/users/{userID}/disable", adminHandler.DisableUser)
				r.Post("/users/{userID}/enable", adminHandler.EnableUser)
				r.Post("/users/{userID}/promote", adminHandler.PromoteUser)
				r.Post("/users/{userID}/demote", adminHandler.DemoteUser)
				r.Get("/users/{userID}/sessions", adminHandler.ListUserSessions)
				r.Delete("/sessions/{sessionID}", adminHandler.RevokeSession)
			})
		})
	})
}
