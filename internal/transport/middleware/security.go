package middleware

import (
	"fmt"
	"net/http"
)

// HeadersConfig holds the security headers set on every response.
type HeadersConfig struct {
	CSP string

	// HSTS is only sent over TLS
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	XFrameOptions                 string
	XContentTypeOptions           string
	XXSSProtection                string
	XDNSPrefetchControl           string
	XPermittedCrossDomainPolicies string
	ReferrerPolicy                string
	CrossOriginOpener             string
	CrossOriginResource           string
}

// DefaultHeadersConfig mirrors the header set the browser front end was
// built against: same-origin resources, inline styles and scripts allowed.
func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		CSP: "default-src 'self'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"script-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data:; " +
			"font-src 'self' https: data:; " +
			"object-src 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'; " +
			"frame-ancestors 'self'",

		HSTSMaxAge:            15552000, // 180 days
		HSTSIncludeSubdomains: true,

		XFrameOptions:                 "SAMEORIGIN",
		XContentTypeOptions:           "nosniff",
		XXSSProtection:                "0",
		XDNSPrefetchControl:           "off",
		XPermittedCrossDomainPolicies: "none",
		ReferrerPolicy:                "no-referrer",
		CrossOriginOpener:             "same-origin",
		CrossOriginResource:           "same-origin",
	}
}

type HeadersMiddleware struct {
	config HeadersConfig
}

func NewHeadersMiddleware(config HeadersConfig) *HeadersMiddleware {
	return &HeadersMiddleware{config: config}
}

func (h *HeadersMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.applyHeaders(w, r)
		next.ServeHTTP(w, r)
	})
}

func (h *HeadersMiddleware) applyHeaders(w http.ResponseWriter, r *http.Request) {
	headers := w.Header()

	setIf(headers, "Content-Security-Policy", h.config.CSP)
	setIf(headers, "X-Frame-Options", h.config.XFrameOptions)
	setIf(headers, "X-Content-Type-Options", h.config.XContentTypeOptions)
	setIf(headers, "X-XSS-Protection", h.config.XXSSProtection)
	setIf(headers, "X-DNS-Prefetch-Control", h.config.XDNSPrefetchControl)
	setIf(headers, "X-Permitted-Cross-Domain-Policies", h.config.XPermittedCrossDomainPolicies)
	setIf(headers, "Referrer-Policy", h.config.ReferrerPolicy)
	setIf(headers, "Cross-Origin-Opener-Policy", h.config.CrossOriginOpener)
	setIf(headers, "Cross-Origin-Resource-Policy", h.config.CrossOriginResource)

	if r.TLS != nil && h.config.HSTSMaxAge > 0 {
		hsts := fmt.Sprintf("max-age=%d", h.config.HSTSMaxAge)
		if h.config.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
		headers.Set("Strict-Transport-Security", hsts)
	}
}

func setIf(h http.Header, name, value string) {
	if value != "" {
		h.Set(name, value)
	}
}
