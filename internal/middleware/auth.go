package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/paiban/zhiban/internal/security"
	"github.com/paiban/zhiban/pkg/errors"
	"github.com/paiban/zhiban/pkg/logger"
)

type apiKeyCtxKey struct{}

// AuthConfig 认证配置
type AuthConfig struct {
	Keys      *security.APIKeyManager // 为 nil 或没有密钥时不认证
	SkipPaths []string                // 跳过认证的路径前缀
}

// AuthMiddleware API密钥认证中间件
// 读请求需要 read 权限，其余方法需要 write 权限
func AuthMiddleware(cfg AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		if cfg.Keys == nil || cfg.Keys.Len() == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 检查是否跳过认证
			for _, path := range cfg.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			secret := security.ExtractAPIKey(r)
			if secret == "" {
				writeError(w, errors.CodeMissingAPIKey, "API密钥未提供")
				return
			}
			key, err := cfg.Keys.Validate(secret)
			if err != nil {
				logger.WithContext(r.Context()).Warn().
					Str("path", r.URL.Path).
					Err(err).
					Msg("API密钥验证失败")
				writeError(w, errors.CodeInvalidAPIKey, "无效的API密钥")
				return
			}

			scope := security.ScopeWrite
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				scope = security.ScopeRead
			}
			if !key.HasScope(scope) {
				writeError(w, errors.CodeForbidden, "权限不足")
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, key.Name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKeyName 返回通过认证的密钥名称
func APIKeyName(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(apiKeyCtxKey{}).(string)
	return name, ok
}
