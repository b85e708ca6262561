// Package tenancy scopes requests to a single clinic.
package tenancy

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const clinicKey ctxKey = "medspa.clinic_id"

// ClinicHeader carries the clinic ID on every API request.
const ClinicHeader = "X-Clinic-Id"

// WithClinicID stores the clinic id in context.
func WithClinicID(ctx context.Context, clinicID string) context.Context {
	return context.WithValue(ctx, clinicKey, clinicID)
}

// ClinicIDFromContext extracts the clinic id if present.
func ClinicIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(clinicKey)
	if val == nil {
		return "", false
	}
	clinicID, ok := val.(string)
	return clinicID, ok && clinicID != ""
}

// RequireClinicID rejects requests without the clinic header and stores the
// clinic id in the request context.
func RequireClinicID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clinicID := strings.TrimSpace(r.Header.Get(ClinicHeader))
		if clinicID == "" {
			http.Error(w, `{"error": "missing X-Clinic-Id"}`, http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClinicID(r.Context(), clinicID)))
	})
}
