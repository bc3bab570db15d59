package tgauth

import (
	"encoding/json"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/goliatone/go-errors"
)

// TelegramAuthRequest is the POST /auth/telegram body. InitData is kept raw
// because the host may deliver either a query string or a field-keyed
// object; ExtractInitData resolves the union in one step.
type TelegramAuthRequest struct {
	InitData json.RawMessage `json:"initData"`
}

func (r TelegramAuthRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.InitData, validation.Required),
	)
}

// AuthResponse is returned by /auth/telegram and /auth/refresh. The token is
// duplicated in the body because Mini App webviews may drop the cookie.
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// RouteAuthenticator wires the authentication protocol into fiber routes.
type RouteAuthenticator struct {
	auth   TelegramAuthenticator
	tokens TokenService
	cfg    Config
	Logger Logger
}

func NewHTTPAuthenticator(auther TelegramAuthenticator, tokens TokenService, cfg Config) *RouteAuthenticator {
	return &RouteAuthenticator{
		auth:   auther,
		tokens: tokens,
		cfg:    cfg,
		Logger: defLogger{},
	}
}

// RegisterAuthRoutes mounts the auth endpoints. The CORS middleware answers
// OPTIONS preflights and decorates every response, error responses included;
// without those headers a handled 4xx turns into an opaque network failure
// in the webview.
func RegisterAuthRoutes(app fiber.Router, a *RouteAuthenticator) {
	app.Use("/auth", NewCORS(a.cfg))

	app.Post("/auth/telegram", a.TelegramLogin)
	app.Get("/auth/me", a.WhoAmI)
	app.Post("/auth/refresh", a.Refresh)
	app.Post("/auth/logout", a.Logout)
}

// NewCORS builds the cross-origin middleware for the auth routes.
func NewCORS(cfg Config) fiber.Handler {
	origins := strings.Join(cfg.GetAllowedOrigins(), ", ")
	allowCredentials := origins != ""
	if origins == "" {
		origins = "*"
	}

	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET, POST, OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: allowCredentials,
	})
}

// TelegramLogin handles POST /auth/telegram.
func (a *RouteAuthenticator) TelegramLogin(c *fiber.Ctx) error {
	req := TelegramAuthRequest{}
	if err := c.BodyParser(&req); err != nil {
		return a.respondError(c, errors.Wrap(err, ErrMalformedInitData.Category, ErrMalformedInitData.Message).
			WithTextCode(ErrMalformedInitData.TextCode).
			WithCode(ErrMalformedInitData.Code))
	}

	if err := req.Validate(); err != nil {
		return a.respondError(c, withMeta(ErrMalformedInitData, map[string]any{
			"reason": "initData field is required",
		}))
	}

	canonical, err := ExtractInitData(req.InitData)
	if err != nil {
		return a.respondError(c, err)
	}

	session, err := a.auth.AuthenticateInitData(c.Context(), canonical)
	if err != nil {
		return a.respondError(c, err)
	}

	a.setSessionCookie(c, session)
	return c.JSON(AuthResponse{User: session.User, Token: session.Token})
}

// WhoAmI handles GET /auth/me. The token is read from the Authorization
// header first, then the cookie.
func (a *RouteAuthenticator) WhoAmI(c *fiber.Ctx) error {
	user, err := a.userFromRequest(c)
	if err != nil {
		return a.respondError(c, err)
	}
	return c.JSON(user)
}

// Refresh handles POST /auth/refresh: a valid cookie session is re-minted
// on both channels.
func (a *RouteAuthenticator) Refresh(c *fiber.Ctx) error {
	token := c.Cookies(a.cfg.GetCookieName())
	if token == "" {
		return a.respondError(c, ErrUnableToFindSession)
	}

	session, err := a.auth.SessionFromToken(token)
	if err != nil {
		return a.respondError(c, err)
	}

	user, err := a.auth.UserFromSession(c.Context(), session)
	if err != nil {
		return a.respondError(c, err)
	}

	issued, err := a.tokens.Issue(user)
	if err != nil {
		return a.respondError(c, err)
	}

	a.setSessionCookie(c, issued)
	return c.JSON(AuthResponse{User: user, Token: issued.Token})
}

// Logout handles POST /auth/logout.
func (a *RouteAuthenticator) Logout(c *fiber.Ctx) error {
	a.clearSessionCookie(c)
	return c.JSON(fiber.Map{"ok": true})
}

// ProtectedRoute guards arbitrary routes with the session token. The user
// record lands in c.Locals("user") and the request context.
func (a *RouteAuthenticator) ProtectedRoute() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := a.userFromRequest(c)
		if err != nil {
			return a.respondError(c, err)
		}

		c.Locals("user", user)
		c.SetUserContext(WithContext(c.UserContext(), user))
		return c.Next()
	}
}

// RequireRole guards a route behind a minimum role. Mount after
// ProtectedRoute.
func (a *RouteAuthenticator) RequireRole(min UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals("user").(*User)
		if !ok {
			return a.respondError(c, ErrUnableToFindSession)
		}
		if !RoleIsAtLeast(user.Role, min) {
			return a.respondError(c, errors.New("insufficient role", errors.CategoryAuthz).
				WithCode(errors.CodeForbidden))
		}
		return c.Next()
	}
}

func (a *RouteAuthenticator) userFromRequest(c *fiber.Ctx) (*User, error) {
	token := bearerToken(c)
	if token == "" {
		token = c.Cookies(a.cfg.GetCookieName())
	}
	if token == "" {
		return nil, ErrUnableToFindSession
	}

	session, err := a.auth.SessionFromToken(token)
	if err != nil {
		return nil, err
	}

	return a.auth.UserFromSession(c.Context(), session)
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// setSessionCookie is the second delivery channel next to the body token.
// Secure+SameSite=None in production so the cookie survives the cross-site
// webview; relaxed in development where TLS is absent.
func (a *RouteAuthenticator) setSessionCookie(c *fiber.Ctx, session *IssuedSession) {
	cookie := &fiber.Cookie{
		Name:     a.cfg.GetCookieName(),
		Value:    session.Token,
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   a.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	}
	if a.cfg.IsProduction() {
		cookie.SameSite = fiber.CookieSameSiteNoneMode
	}
	c.Cookie(cookie)
}

func (a *RouteAuthenticator) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     a.cfg.GetCookieName(),
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (a *RouteAuthenticator) respondError(c *fiber.Ctx, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"auth request failed",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	status := richErr.Code
	if status == 0 {
		status = fiber.StatusInternalServerError
	}

	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
		},
	})
}
