// dephealth_test.go — unit-тесты вспомогательных функций мониторинга зависимостей.
package service

import "testing"

// TestJWKSHealthPath проверяет выбор пути HTTP-проверки JWKS.
func TestJWKSHealthPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "путь JWKS Keycloak",
			input:    "https://idp.example.org/realms/dwarfs/protocol/openid-connect/certs",
			expected: "/realms/dwarfs/protocol/openid-connect/certs",
		},
		{
			name:     "без пути",
			input:    "https://idp.example.org",
			expected: "/health",
		},
		{
			name:     "некорректный URL",
			input:    "://bad",
			expected: "/health",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jwksHealthPath(tt.input); got != tt.expected {
				t.Errorf("jwksHealthPath(%q) = %q, ожидалось %q", tt.input, got, tt.expected)
			}
		})
	}
}
