package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"eldercare-vitals/internal/entity"
	contextPkg "eldercare-vitals/pkg/context"
	jwtPkg "eldercare-vitals/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	AccessTokenSecret = "JWT_ACCESS_TOKEN_SECRET"
)

func unauthorized(ctx *fiber.Ctx) error {
	return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"ok":    false,
		"error": "Unauthorized",
	})
}

func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	requestID := m.GetRequestID(ctx)
	authHeader := ctx.Get("Authorization")

	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"client_ip":  ctx.IP(),
		}).Warn("Authorization header missing or malformed")
		return unauthorized(ctx)
	}

	userToken, err := jwtPkg.VerifyTokenHeader(ctx, AccessTokenSecret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Token verification failed")
		return unauthorized(ctx)
	}

	claims, ok := userToken.Claims.(jwt.MapClaims)
	if !ok {
		m.log.WithField("request_id", requestID).Warn("Invalid token claims")
		return unauthorized(ctx)
	}

	subjectID, ok := claimString(claims["id"])
	if !ok || subjectID == "" {
		m.log.WithField("request_id", requestID).Warn("Token claims are missing the subject id")
		return unauthorized(ctx)
	}

	email, _ := claimString(claims["email"])
	username, _ := claimString(claims["username"])

	user := entity.UserLoginData{
		ID:       subjectID,
		Email:    email,
		Username: username,
	}
	ctx.Locals("user", user)
	ctx.SetUserContext(contextPkg.WithSubjectID(ctx.UserContext(), subjectID))

	m.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"subject_id": subjectID,
	}).Debug("Authentication successful")
	return ctx.Next()
}

// claimString accepts string ids as well as numeric ids, which JSON decodes as float64.
func claimString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	case nil:
		return "", false
	default:
		return fmt.Sprint(t), true
	}
}
