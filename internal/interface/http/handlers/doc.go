// Package handlers holds the reusable HTTP pieces of the ClassMark API:
// health checks and middleware.
//
// Health checks run in parallel, each under its own timeout:
//
//	checker := handlers.NewCompositeHealthChecker("v1")
//	checker.AddCheck("postgres", handlers.NewPingCheck(db))
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//
// API keys are configured as bcrypt hashes, never in clear text:
//
//	auth, err := handlers.NewAPIKeyAuth("X-API-Key", cfg.APIKeyHashes)
//	protected := auth.Middleware(mux)
package handlers
