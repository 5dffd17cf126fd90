package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/hitl-service/internal/domain"
	"github.com/spec-kit/hitl-service/internal/repository"
	apperrors "github.com/spec-kit/hitl-service/pkg/util"
)

const (
	principalKey  = "auth_principal"
	bearerPrefix  = "Bearer "
	sessionCookie = "hitl_session"
	sessionHeader = "X-Session-Token"
)

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	Operator    *domain.Operator
}

// Guard gates machine-to-machine requests. A bearer credential must
// match the configured machine key; requests without one pass through to
// session handling untouched.
type Guard struct {
	machine *MachineKeyValidator
	logger  *zap.Logger
}

// NewGuard constructs the guard.
func NewGuard(machine *MachineKeyValidator, logger *zap.Logger) *Guard {
	return &Guard{machine: machine, logger: logger}
}

// Handle enforces the machine key for bearer-credentialed requests.
func (g *Guard) Handle(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, bearerPrefix) {
		// Browser request; session middleware decides.
		return c.Next()
	}

	presented := strings.TrimPrefix(header, bearerPrefix)
	if !g.machine.Validate(presented) {
		fingerprint := Fingerprint(presented)
		if fingerprint == "" {
			fingerprint = "no-key"
		}
		g.logger.Warn("machine auth failed", zap.String("key_fingerprint", fingerprint))
		return apperrors.NewUnauthorized("invalid API key")
	}

	c.Locals(principalKey, &Principal{SubjectType: domain.SubjectTypeAgent})
	return c.Next()
}

// SessionMiddleware loads operator principals from session tokens.
type SessionMiddleware struct {
	tokens    *TokenManager
	operators repository.OperatorRepository
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(tokens *TokenManager, operators repository.OperatorRepository) *SessionMiddleware {
	return &SessionMiddleware{tokens: tokens, operators: operators}
}

// Load resolves a session token into an operator principal when one is
// present. It never rejects: unauthenticated browser requests continue
// without a principal (route handlers that need one use RequireOperator).
func (m *SessionMiddleware) Load(c *fiber.Ctx) error {
	if _, ok := PrincipalFromContext(c); ok {
		// Machine caller already authenticated by the guard.
		return c.Next()
	}

	token := sessionToken(c)
	if token == "" {
		return c.Next()
	}

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return c.Next()
	}

	operator, err := m.operators.GetByID(c.Context(), claims.OperatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Next()
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{SubjectType: domain.SubjectTypeOperator, Operator: operator})
	return c.Next()
}

// RequireOperator ensures an operator session is present.
func RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeOperator || principal.Operator == nil {
			return apperrors.NewUnauthorized("operator session required")
		}
		return c.Next()
	}
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

func sessionToken(c *fiber.Ctx) string {
	if cookie := c.Cookies(sessionCookie); cookie != "" {
		return cookie
	}
	return c.Get(sessionHeader)
}
