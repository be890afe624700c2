// README: Auth middleware: verifies the Firebase ID token, then maps it to a local actor.
package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"agrimatch/internal/infra"
	"agrimatch/internal/modules/actor"
	"agrimatch/internal/types"
)

const (
	ctxUID   = "auth.uid"
	ctxRole  = "auth.role"
	ctxName  = "auth.name"
	ctxActor = "auth.actor_id"
)

// Auth rejects requests without a valid bearer token. Websocket clients that
// cannot set headers may pass the token as ?access_token=.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.Request)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), raw)
		if err != nil || token == nil || token.UID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUID, token.UID)
		c.Set(ctxRole, token.Role())
		c.Set(ctxName, token.Name())
		c.Next()
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if !strings.HasPrefix(h, "Bearer ") {
			return ""
		}
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("access_token")
}

type ActorResolver interface {
	Resolve(ctx context.Context, cmd actor.ResolveCommand) (*actor.Actor, error)
}

// ResolveActor runs after Auth and attaches the caller's actor id, creating
// the actor on first sight.
func ResolveActor(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := resolver.Resolve(c.Request.Context(), actor.ResolveCommand{
			ExternalID: CallerUID(c),
			Name:       c.GetString(ctxName),
			Role:       CallerRole(c),
		})
		if err != nil {
			log.Printf("resolve actor %s: %v", CallerUID(c), err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.Set(ctxActor, a.ID)
		c.Next()
	}
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

// CallerID is the resolved actor id; empty when ResolveActor did not run.
func CallerID(c *gin.Context) types.ID {
	v, ok := c.Get(ctxActor)
	if !ok {
		return ""
	}
	id, _ := v.(types.ID)
	return id
}
