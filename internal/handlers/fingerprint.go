package handlers

import (
	"crypto/sha256"
	"fmt"
	"net/http"

	pkghttp "github.com/saqrlabs/trustcore/pkg/http"
)

// deviceFingerprint derives a stable device identity from the request's
// client IP and User-Agent. Derived server-side so a client cannot present
// someone else's fingerprint.
func deviceFingerprint(r *http.Request, ipConfig *pkghttp.IPConfig) (fingerprint, ipAddress string) {
	ipAddress = pkghttp.ExtractClientIP(r, ipConfig)
	userAgent := r.Header.Get("User-Agent")

	data := []byte(fmt.Sprintf("%s:%s", ipAddress, userAgent))
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)[:32], ipAddress
}
