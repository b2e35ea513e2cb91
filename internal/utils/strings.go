// Package utils provides small helpers shared across the settings gateway.
package utils

import "strings"

// MaskSecret masks a credential for safe logging (first 4 and last 4
// chars). Short values are fully masked so the log leaks nothing useful.
func MaskSecret(secret string) string {
	if secret == "" {
		return "(empty)"
	}
	if len(secret) < 12 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

// NormalizeDomain canonicalizes a ticketing-system hostname for
// merge-by-domain matching: trims whitespace, lowercases, and strips a
// scheme or trailing slash pasted in from the browser address bar.
func NormalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	for _, scheme := range []string{"https://", "http://"} {
		d = strings.TrimPrefix(d, scheme)
	}
	return strings.TrimSuffix(d, "/")
}
