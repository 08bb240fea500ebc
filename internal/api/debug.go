package api

import (
	"net/http"
	"time"

	"fairroute/internal/buildinfo"
)

// DebugJSON reports build metadata and the non-secret parts of the config.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	c := s.Config
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":             c.Port,
			"APP_ENV":          c.AppEnv,
			"RATE_RPS":         c.RateRPS,
			"RATE_BURST":       c.RateBurst,
			"IMPORT_DIR":       c.ImportDir,
			"IMPORT_INTERVAL":  c.ImportInterval.String(),
			"LOCK_TTL":         c.LockTTL.String(),
			"PARAMS_FILE":      c.ParamsFile,
			"HAS_DATABASE_URL": c.DatabaseURL != "",
			"HAS_REDIS_URL":    c.RedisURL != "",
		},
	})
}
