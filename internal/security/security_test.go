package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const (
	writerSecret = "writer-secret-0123456789"
	readerSecret = "reader-secret-0123456789"
)

func TestAPIKey_HasScope(t *testing.T) {
	tests := []struct {
		name     string
		scopes   []string
		scope    string
		expected bool
	}{
		{"全部权限", []string{ScopeAll}, ScopeWrite, true},
		{"只读访问读", []string{ScopeRead}, ScopeRead, true},
		{"只读访问写", []string{ScopeRead}, ScopeWrite, false},
		{"写包含读", []string{ScopeWrite}, ScopeRead, true},
		{"无权限", nil, ScopeRead, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := &APIKey{Scopes: tt.scopes}
			if got := k.HasScope(tt.scope); got != tt.expected {
				t.Errorf("HasScope(%s) = %v, expected %v", tt.scope, got, tt.expected)
			}
		})
	}
}

func TestParseKeys(t *testing.T) {
	m, err := ParseKeys([]string{"ops:" + writerSecret, " dashboard:" + readerSecret + ":read ", ""})
	if err != nil {
		t.Fatalf("ParseKeys failed: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("Len() = %d, expected 2", m.Len())
	}

	key, err := m.Validate(readerSecret)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if key.Name != "dashboard" || key.HasScope(ScopeWrite) {
		t.Errorf("Unexpected key %+v", key)
	}
	if key, _ := m.Validate(writerSecret); key == nil || !key.HasScope(ScopeWrite) {
		t.Error("Expected the unscoped key to have full access")
	}

	invalid := []struct {
		name string
		spec string
	}{
		{"缺少密钥", "ops"},
		{"密钥过短", "ops:short"},
		{"范围无效", "ops:" + writerSecret + ":admin"},
		{"名称为空", ":" + writerSecret},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseKeys([]string{tt.spec})
			if err == nil {
				t.Fatal("Expected an error")
			}
			if strings.Contains(err.Error(), writerSecret) {
				t.Errorf("error leaks the secret: %v", err)
			}
		})
	}

	if _, err := ParseKeys([]string{"a:" + writerSecret, "b:" + writerSecret}); err == nil {
		t.Error("Expected an error for a duplicate secret")
	}
}

func TestAPIKeyManager_Revoke(t *testing.T) {
	m := NewAPIKeyManager()
	if err := m.Add("ops", writerSecret, []string{ScopeAll}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Validate("wrong-secret-0123456789"); err != ErrInvalidAPIKey {
		t.Errorf("err = %v, expected ErrInvalidAPIKey", err)
	}
	if !m.Revoke("ops") {
		t.Fatal("Expected Revoke to succeed")
	}
	if _, err := m.Validate(writerSecret); err != ErrDisabledAPIKey {
		t.Errorf("err = %v, expected ErrDisabledAPIKey", err)
	}
	if m.Revoke("ops") {
		t.Error("Expected a second Revoke to report nothing revoked")
	}
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateSecret()
	if a == b || !strings.HasPrefix(a, "zb_") || len(a) < minSecretLength {
		t.Errorf("Unexpected secrets %q %q", a, b)
	}
	if err := NewAPIKeyManager().Add("gen", a, []string{ScopeRead}); err != nil {
		t.Errorf("generated secret rejected: %v", err)
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		value    string
		expected string
	}{
		{"Bearer", "Authorization", "Bearer abc", "abc"},
		{"X-API-Key", "X-API-Key", "xyz", "xyz"},
		{"其他认证方式", "Authorization", "Basic abc", ""},
		{"无", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}
			if got := ExtractAPIKey(r); got != tt.expected {
				t.Errorf("ExtractAPIKey() = %q, expected %q", got, tt.expected)
			}
		})
	}
}
