package httpcontroller

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/history"
	"github.com/tphakala/myconet/internal/logger"
)

const (
	sessionName = "myconet"
	// sessionIDKey holds the history session id in the cookie and in the
	// echo context.
	sessionIDKey = "session_id"
	// SessionHeader lets API clients keep a session without cookies.
	SessionHeader = "X-Session-ID"
)

func newSessionStore(settings *conf.Settings) sessions.Store {
	store := sessions.NewCookieStore([]byte(settings.WebServer.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(settings.WebServer.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   settings.WebServer.AutoTLS,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// SessionMiddleware resolves the history session of the request. A valid
// X-Session-ID header wins over the cookie; a request with neither gets a
// new session and cookie.
func (s *Server) SessionMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id := c.Request().Header.Get(SessionHeader); id != "" && uuid.Validate(id) == nil {
				c.Set(sessionIDKey, id)
				c.Response().Header().Set(SessionHeader, id)
				return next(c)
			}

			// A cookie that fails to decode still yields a fresh session.
			sess, err := s.sessions.Get(c.Request(), sessionName)
			if err != nil {
				s.log.Debug("discarding unreadable session cookie", logger.Error(err))
			}

			id, _ := sess.Values[sessionIDKey].(string)
			if id == "" {
				id = history.NewSessionID()
				sess.Values[sessionIDKey] = id
				if err := sess.Save(c.Request(), c.Response()); err != nil {
					return err
				}
			}

			c.Set(sessionIDKey, id)
			c.Response().Header().Set(SessionHeader, id)
			return next(c)
		}
	}
}

// sessionID returns the history session of the request.
func sessionID(c echo.Context) string {
	id, _ := c.Get(sessionIDKey).(string)
	return id
}
