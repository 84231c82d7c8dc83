package cli

import (
	"net/http"
	"time"

	"invoicer/internal/cache"
	"invoicer/internal/config"
	"invoicer/internal/core"
	applog "invoicer/internal/log"
	"invoicer/internal/logo"
	"invoicer/internal/pdf"
	"invoicer/internal/profile"
)

// Policies turns the configured product rules into the core values every
// component shares.
func Policies(cfg *config.Config) (core.Calculator, core.ValidationPolicy, core.StatusRule) {
	calc := core.NewCalculator(core.TotalsPolicy{FloorNetTotalAtZero: cfg.NetTotalFloorZero})
	policy := core.ValidationPolicy{RequirePositivePrice: cfg.RequirePositivePrice}
	rule := core.StatusRule{DueSoonDays: cfg.DueSoonDays}
	return calc, policy, rule
}

// NewLogoResolver builds the logo chain of the profile. When the cache
// manager is given the resolved image is cached for ttl and evicted by it.
func NewLogoResolver(p profile.Profile, ttl time.Duration, manager *cache.Manager, logger *applog.Logger) (pdf.LogoResolver, error) {
	sources, err := logo.SourcesFromProfile(p.Logo, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		return nil, err
	}
	resolver := logo.NewResolver(logger.WithComponent(applog.ComponentLogo), sources...)
	if ttl <= 0 {
		return resolver, nil
	}

	lru := cache.NewLRUCache[[]byte](1, ttl)
	if manager != nil {
		manager.Register(lru)
	}
	return logo.NewCachedResolverWith(resolver, lru), nil
}

// NewRenderer builds the PDF renderer with the shared policies. Extra options
// are applied last.
func NewRenderer(p profile.Profile, calc core.Calculator, rule core.StatusRule, logoResolver pdf.LogoResolver, extra ...pdf.Option) *pdf.Renderer {
	opts := []pdf.Option{pdf.WithCalculator(calc), pdf.WithStatusRule(rule)}
	if logoResolver != nil {
		opts = append(opts, pdf.WithLogo(logoResolver))
	}
	opts = append(opts, extra...)
	return pdf.NewRenderer(p, opts...)
}
