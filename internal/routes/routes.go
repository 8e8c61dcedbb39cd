package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/learn-earn/backend/internal/handlers"
	"github.com/learn-earn/backend/internal/middleware"
	"github.com/learn-earn/backend/internal/services"
)

func SetupRoutes(r *chi.Mux, devices *services.DeviceService) {
	// Public routes
	r.Post("/api/users/register", handlers.RegisterDevice)
	r.Get("/api/version", handlers.GetVersion)
	r.Post("/api/admin/login", handlers.AdminLogin)

	// Device-authenticated routes (X-Device-ID header)
	r.Group(func(r chi.Router) {
		r.Use(middleware.DeviceAuth(devices))

		// Profile & daily accounting
		r.Get("/api/users/profile", handlers.GetProfile)
		r.Get("/api/users/progress", handlers.GetUserProgress)
		r.Post("/api/users/mobile-number", handlers.SetMobileNumber)
		r.Post("/api/users/progress/reset", handlers.DailyReset)

		// Lesson progress
		r.Post("/api/users/lessons/{lessonId}/progress", handlers.RecordProgress)
		r.Get("/api/users/lessons/{lessonId}/progress", handlers.GetLessonProgress)
		r.Get("/api/users/lessons/progress", handlers.GetAllProgress)
		r.Post("/api/users/lessons/{lessonId}/complete", handlers.CompleteLesson)
		r.Delete("/api/users/lessons/{lessonId}/progress", handlers.ResetLessonProgress)

		// Ad impressions
		r.Post("/api/ads/impression", handlers.RecordImpression)

		// Payouts (request additionally requires X-Signature and X-Nonce)
		r.Post("/api/payouts/request", handlers.RequestPayout)
		r.Get("/api/payouts/history", handlers.PayoutHistory)
		r.Get("/api/payouts/status/{payoutId}", handlers.PayoutStatus)
		r.Get("/api/payouts/cooldown", handlers.PayoutCooldown)
		r.Post("/api/payouts/{payoutId}/cancel", handlers.CancelPayout)
	})

	// Admin routes (Bearer session token)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth)

		r.Post("/api/admin/logout", handlers.AdminLogout)
		r.Get("/api/admin/dashboard", handlers.AdminDashboard)
		r.Get("/api/admin/users", handlers.AdminListUsers)
		r.Get("/api/admin/settings", handlers.AdminGetSettings)
		r.Put("/api/admin/settings", handlers.AdminUpdateSettings)
		r.Put("/api/admin/version", handlers.AdminUpdateVersion)
		r.Get("/api/payouts/admin/all", handlers.AdminListPayouts)
		r.Patch("/api/payouts/admin/{payoutId}/status", handlers.AdminUpdatePayoutStatus)
	})
}
