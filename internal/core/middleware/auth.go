package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/internal/core/repository"
	"github.com/google/uuid"
)

type ownerKey struct{}

type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Authenticate accepts "Authorization: Token <t>" or "Bearer <t>". The token
// must carry a valid signature and be the one stored for its owner.
func Authenticate(verifier TokenVerifier, identity repository.IdentityStore, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := tokenFromHeader(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
				return
			}

			ownerID, err := verifier.Verify(token)
			if err != nil {
				log.Warn("token rejected", logger.ErrorField("error", err))
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			stored, err := identity.OwnerByToken(r.Context(), token)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			case err != nil:
				log.Error("token lookup failed", logger.ErrorField("error", err))
				writeError(w, http.StatusInternalServerError, "storage failure")
				return
			case stored != ownerID:
				log.Warn("token owner mismatch", logger.StringField("owner_id", ownerID.String()))
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
		})
	}
}

func WithOwnerID(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}

func OwnerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	ownerID, ok := ctx.Value(ownerKey{}).(uuid.UUID)
	return ownerID, ok
}

func tokenFromHeader(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return "", false
	}
	if !strings.EqualFold(scheme, "Token") && !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
