package middleware

import (
	"net/http"

	"github.com/zatekoja/clearlink/backend/internal/application/loaders"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
)

// LoadersMiddleware attaches fresh dataloaders to every request
func LoadersMiddleware(appointments repositories.AppointmentRepository, patients repositories.PatientRepository, resources repositories.ResourceRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ldrs := loaders.NewLoaders(appointments, patients, resources)
			next.ServeHTTP(w, r.WithContext(loaders.WithLoaders(r.Context(), ldrs)))
		})
	}
}
