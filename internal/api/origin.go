package api

import "strings"

// OriginPolicy decides which origins may reach the HTTP surface and the
// WebSocket upgrader. Requests with no Origin header (curl, health probes,
// native clients) are always allowed; development mode allows everything;
// production allows the configured origins plus Vercel preview deployments.
type OriginPolicy struct {
	Env     string
	Allowed []string
}

// NewOriginPolicy builds a policy for the given mode and origin list.
func NewOriginPolicy(env string, allowed []string) *OriginPolicy {
	return &OriginPolicy{Env: env, Allowed: allowed}
}

// Allow reports whether the origin may connect.
func (p *OriginPolicy) Allow(origin string) bool {
	if origin == "" {
		return true
	}
	if p.Env != "production" {
		return true
	}
	for _, allowed := range p.Allowed {
		if origin == allowed {
			return true
		}
	}
	return strings.HasSuffix(origin, ".vercel.app")
}
