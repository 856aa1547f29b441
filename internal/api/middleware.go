package api

import (
	"net/http"
	"strings"

	"github.com/annel0/celestial/internal/auth"
	"github.com/annel0/celestial/internal/logging"
	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// jwtMiddleware проверяет JWT токен в заголовке Authorization
func (rs *RestServer) jwtMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondError(c, http.StatusUnauthorized, "Отсутствует токен авторизации")
			return
		}

		// Проверяем формат "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			respondError(c, http.StatusUnauthorized, "Неверный формат токена")
			return
		}

		claims, err := auth.ValidateJWT(parts[1])
		if err != nil {
			logging.Debug("🔐 Отклонён токен: %v", err)
			respondError(c, http.StatusUnauthorized, "Недействительный токен")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// adminMiddleware проверяет, что оператор является администратором
func (rs *RestServer) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, exists := c.Get(claimsKey)
		claims, ok := v.(*auth.Claims)
		if !exists || !ok {
			respondError(c, http.StatusInternalServerError, "Отсутствует информация о пользователе")
			return
		}
		if !claims.IsAdmin {
			respondError(c, http.StatusForbidden, "Недостаточно прав доступа")
			return
		}
		c.Next()
	}
}
