package httpapi

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const (
	ctxUserID  contextKey = "user_id"
	ctxAddress contextKey = "address"
)

// requireAuth validates the bearer token and stashes the caller's identity in
// the request context. The wallet address is the caller's settlement
// identity; handlers never accept it from the request body.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}

		userID, address, err := s.accounts.VerifyToken(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		ctx = context.WithValue(ctx, ctxAddress, address)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerUserID(ctx context.Context) string {
	id, _ := ctx.Value(ctxUserID).(string)
	return id
}

func callerAddress(ctx context.Context) string {
	addr, _ := ctx.Value(ctxAddress).(string)
	return addr
}
