package service

import (
	"testing"
	"time"
)

func TestAuthService_RoundTrip(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	token, err := svc.GenerateToken(12, TokenTypeCandidate)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != 12 || claims.TokenType != TokenTypeCandidate || claims.Subject != "12" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestAuthService_Rejects(t *testing.T) {
	svc := NewAuthService("secret", time.Hour)

	other, _ := NewAuthService("other", time.Hour).GenerateToken(1, TokenTypeReviewer)
	expired, _ := NewAuthService("secret", -time.Minute).GenerateToken(1, TokenTypeReviewer)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", other},
		{"expired", expired},
		{"garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateToken(tt.token); err == nil {
				t.Error("ValidateToken() error = nil, want error")
			}
		})
	}

	if _, err := svc.GenerateToken(1, TokenType("admin")); err == nil {
		t.Error("GenerateToken() accepted an unknown token type")
	}
}
