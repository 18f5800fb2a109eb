package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joshua0006/pineapple-tours--1--sub006/appctx"
	"github.com/joshua0006/pineapple-tours--1--sub006/session"
	"github.com/joshua0006/pineapple-tours--1--sub006/utils"
)

const SessionCookieName = "pt_session"

// SessionMiddleware resolves the session cookie against the session store and
// puts the subject on the request context. No cookie means an anonymous
// request and passes through; a cookie that does not resolve is rejected.
func SessionMiddleware(sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookieName)
		if err != nil || id == "" {
			c.Next()
			return
		}

		sess, err := sessions.GetSession(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "session lookup failed"})
			}
			c.Abort()
			return
		}

		// Sliding expiry; best effort, a failed refresh never fails the
		// request.
		sessions.RefreshSession(c.Request.Context(), id)

		ctx := appctx.Set(c.Request.Context(), appctx.ContextKeySessionId, sess.ID)
		ctx = appctx.Set(ctx, appctx.ContextKeySubject, sess.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireSession guards operator routes; it runs after SessionMiddleware.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := appctx.GetString(c.Request.Context(), appctx.ContextKeySubject); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
