// Package security 提供 API 密钥校验
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

var (
	ErrInvalidAPIKey  = errors.New("无效的API密钥")
	ErrDisabledAPIKey = errors.New("API密钥已停用")
)

// 权限范围
const (
	ScopeRead  = "read"  // 查询运行与候选池、约束目录
	ScopeWrite = "write" // 执行排班、评估、删除运行
	ScopeAll   = "*"
)

// minSecretLength 密钥最短长度
const minSecretLength = 16

// APIKey API密钥；只保存摘要
type APIKey struct {
	Name    string   `json:"name"`
	Scopes  []string `json:"scopes"`
	Enabled bool     `json:"enabled"`

	digest [sha256.Size]byte
}

// HasScope 检查密钥是否有某权限；write 包含 read
func (k *APIKey) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope || s == ScopeAll || (s == ScopeWrite && scope == ScopeRead) {
			return true
		}
	}
	return false
}

// APIKeyManager API密钥管理器
type APIKeyManager struct {
	keys map[[sha256.Size]byte]*APIKey
	mu   sync.RWMutex
}

// NewAPIKeyManager 创建密钥管理器
func NewAPIKeyManager() *APIKeyManager {
	return &APIKeyManager{
		keys: make(map[[sha256.Size]byte]*APIKey),
	}
}

// ParseKeys 按 "名称:密钥[:范围+范围]" 解析配置中的密钥，未写范围时为全部权限
func ParseKeys(specs []string) (*APIKeyManager, error) {
	m := NewAPIKeyManager()
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("API密钥格式错误: %q", maskSpec(spec))
		}
		scopes := []string{ScopeAll}
		if len(parts) == 3 && parts[2] != "" {
			scopes = strings.Split(parts[2], "+")
		}
		if err := m.Add(parts[0], parts[1], scopes); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Add 登记密钥
func (m *APIKeyManager) Add(name, secret string, scopes []string) error {
	if name == "" {
		return fmt.Errorf("API密钥名称不能为空")
	}
	if len(secret) < minSecretLength {
		return fmt.Errorf("API密钥 %s 过短，至少 %d 个字符", name, minSecretLength)
	}
	for _, s := range scopes {
		if s != ScopeRead && s != ScopeWrite && s != ScopeAll {
			return fmt.Errorf("API密钥 %s 的权限范围无效: %q", name, s)
		}
	}

	digest := sha256.Sum256([]byte(secret))
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.keys[digest]; dup {
		return fmt.Errorf("API密钥 %s 与已有密钥重复", name)
	}
	m.keys[digest] = &APIKey{Name: name, Scopes: scopes, Enabled: true, digest: digest}
	return nil
}

// Len 已登记的密钥数
func (m *APIKeyManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// Validate 验证密钥
func (m *APIKeyManager) Validate(secret string) (*APIKey, error) {
	digest := sha256.Sum256([]byte(secret))
	m.mu.RLock()
	apiKey, exists := m.keys[digest]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrInvalidAPIKey
	}
	if !apiKey.Enabled {
		return nil, ErrDisabledAPIKey
	}
	return apiKey, nil
}

// Revoke 按名称停用密钥
func (m *APIKeyManager) Revoke(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	revoked := false
	for _, k := range m.keys {
		if k.Name == name && k.Enabled {
			k.Enabled = false
			revoked = true
		}
	}
	return revoked
}

// GenerateSecret 生成随机密钥
func GenerateSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "zb_" + hex.EncodeToString(b), nil
}

// ExtractAPIKey 从请求中提取API密钥
func ExtractAPIKey(r *http.Request) string {
	// 1. 从 Authorization header
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	// 2. 从 X-API-Key header
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	return ""
}

func maskSpec(spec string) string {
	name, _, _ := strings.Cut(spec, ":")
	return name + ":***"
}
