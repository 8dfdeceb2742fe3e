package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/submission"
)

const (
	roleTeacher = "teacher"
	roleStudent = "student"

	contextClaimsKey = "sessionClaims"
	bearerPrefix     = "Bearer "
	audience         = "kazi"
)

var (
	errMissingToken = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidToken = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errForbidden    = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// Claims represents the session claims transmitted via a JWT.
// A teacher session carries the teacher key, since every backend call needs it.
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	TeacherKey string `json:"tk,omitempty"`
	Class      string `json:"klasse,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Student returns the student a student session belongs to.
func (c Claims) Student() submission.StudentInfo {
	return submission.StudentInfo{Class: c.Class, Name: c.Name}
}

// Identity describes the session holder for logging.
func (c Claims) Identity() core.Identity {
	id := core.Identity{ID: c.Subject, Role: c.Role}
	if c.Role == roleStudent {
		id.Name = c.Name
		id.Class = c.Class
	}
	return id
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	issuer string
	key    []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(conf *core.Config) *Sessions {
	ttl := conf.Session.TTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Sessions{issuer: conf.AppName, key: conf.Session.SecretKey, ttl: ttl, now: time.Now}
}

func (s *Sessions) claims(role, subject string) *Claims {
	now := s.now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Role: role,
	}
}

// TeacherClaims returns the claims of a teacher session holding teacherKey.
func (s *Sessions) TeacherClaims(teacherKey string) *Claims {
	claims := s.claims(roleTeacher, roleTeacher)
	claims.TeacherKey = teacherKey
	return claims
}

// StudentClaims returns the claims of a student session.
func (s *Sessions) StudentClaims(info submission.StudentInfo) *Claims {
	claims := s.claims(roleStudent, info.Identifier())
	claims.Class = info.Class
	claims.Name = info.Name
	return claims
}

// GenerateToken generates a signed JWT token string representing the Claims.
func (s *Sessions) GenerateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(s.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Parse verifies a signed token and returns its claims.
func (s *Sessions) Parse(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Claims{}, errors.Wrap(err, "parsing token")
	}
	return claims, nil
}

func bearerToken(ctx echo.Context) string {
	auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) <= len(bearerPrefix) || !strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(bearerPrefix):])
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errMissingToken
}
