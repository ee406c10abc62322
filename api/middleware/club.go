package middleware

import (
	"net/http"

	"github.com/clubline/clubline-backend/api/responses"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/logger"
)

// ClubContext rejects requests whose token carries no active club.
func ClubContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ClubIDFromContext(r.Context()) == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "club context missing"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
