package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/SergeiKhy/shuffle/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Ключи контекста gin, которые выставляет AdminAuth
const (
	ContextAdminName   = "admin_name"
	ContextAuthMethod  = "auth_method"
	AuthMethodAPIKey   = "api_key"
	AuthMethodJWT      = "jwt"
	AuthMethodDisabled = "disabled"
)

// AdminAuthConfig конфигурация доступа к административным эндпоинтам
type AdminAuthConfig struct {
	// APIKeys карта валидных API ключей к их описаниям
	APIKeys map[string]string
	// HeaderName имя заголовка для API ключа (по умолчанию: X-API-Key)
	HeaderName string
	// Tokens проверяет bearer токены администратора, может быть nil
	Tokens service.AuthService
	Logger *zap.Logger
}

// AdminAuth middleware, пропускающий запрос с валидным API ключом или JWT администратора
type AdminAuth struct {
	keys       map[string]string
	headerName string
	tokens     service.AuthService
	open       bool
}

// NewAdminAuth создаёт middleware. Если не настроены ни ключи, ни вход администратора,
// эндпоинты остаются открытыми.
func NewAdminAuth(cfg AdminAuthConfig) *AdminAuth {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-API-Key"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	tokensEnabled := cfg.Tokens != nil && cfg.Tokens.Enabled()
	a := &AdminAuth{
		keys:       cfg.APIKeys,
		headerName: cfg.HeaderName,
		tokens:     cfg.Tokens,
		open:       len(cfg.APIKeys) == 0 && !tokensEnabled,
	}

	if a.open {
		cfg.Logger.Warn("Аутентификация администратора не настроена, админские эндпоинты открыты")
	} else {
		cfg.Logger.Info("Аутентификация администратора включена",
			zap.Int("keys_count", len(cfg.APIKeys)),
			zap.Bool("jwt", tokensEnabled),
		)
	}

	return a
}

// Open сообщает, что проверка отключена
func (a *AdminAuth) Open() bool {
	return a.open
}

// Middleware возвращает Gin middleware handler
func (a *AdminAuth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.open {
			c.Set(ContextAuthMethod, AuthMethodDisabled)
			c.Next()
			return
		}

		apiKey := c.GetHeader(a.headerName)
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}

		var bearer string
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			bearer = strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		}

		if apiKey == "" && bearer == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Требуется API ключ (X-API-Key, api_key) или токен Authorization: Bearer",
			})
			return
		}

		// Bearer может содержать как API ключ, так и JWT
		for _, candidate := range []string{apiKey, bearer} {
			if name, ok := a.matchKey(candidate); ok {
				c.Set(ContextAdminName, name)
				c.Set(ContextAuthMethod, AuthMethodAPIKey)
				c.Next()
				return
			}
		}

		if bearer != "" && a.tokens != nil && a.tokens.Enabled() {
			if claims, err := a.tokens.ParseToken(bearer); err == nil {
				c.Set(ContextAdminName, claims.Username)
				c.Set(ContextAuthMethod, AuthMethodJWT)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Невалидный API ключ или токен",
		})
	}
}

// matchKey сравнивает ключ со всеми валидными за постоянное время
func (a *AdminAuth) matchKey(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	for validKey, name := range a.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(validKey)) == 1 {
			return name, true
		}
	}
	return "", false
}

// AdminName возвращает имя ключа или администратора из контекста
func AdminName(c *gin.Context) (string, bool) {
	name, exists := c.Get(ContextAdminName)
	if !exists {
		return "", false
	}
	s, ok := name.(string)
	return s, ok
}
