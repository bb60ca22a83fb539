package util

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ideaflow/pkg/circuitbreaker"
)

func TestJWTRoundTrip(t *testing.T) {
	id := uuid.New()
	token, err := GenerateJWT(id, "evaluator", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "evaluator", claims.Role)
}

func TestParseJWT_Rejects(t *testing.T) {
	id := uuid.New()
	good, err := GenerateJWT(id, "management", "secret", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateJWT(id, "management", "secret", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", good, "other"},
		{"expired", expired, "secret"},
		{"garbage", "not-a-token", "secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJWT(tt.token, tt.secret)
			assert.Error(t, err)
		})
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, ExtractToken(r), tt.header)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword("correct horse", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryableError(t *testing.T) {
	var syntaxErr *json.SyntaxError
	jsonErr := json.Unmarshal([]byte("{"), &struct{}{})
	require.True(t, errors.As(jsonErr, &syntaxErr))

	tests := []struct {
		name      string
		err       error
		retryable bool
		kind      string
	}{
		{"nil", nil, false, ""},
		{"permanent", Permanent(errors.New("bad")), false, "permanent"},
		{"wrapped permanent", fmt.Errorf("handle: %w", Permanent(errors.New("bad"))), false, "permanent"},
		{"json", fmt.Errorf("decode: %w", jsonErr), false, "json_decode_error"},
		{"no rows", fmt.Errorf("get: %w", pgx.ErrNoRows), false, "not_found"},
		{"unique", &pgconn.PgError{Code: "23505"}, false, "duplicate_key"},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true, "db_transient_error"},
		{"check violation", &pgconn.PgError{Code: "23514"}, false, "db_error"},
		{"breaker", circuitbreaker.ErrCircuitBreakerOpen, true, "circuit_open"},
		{"net timeout", timeoutErr{}, true, "network_timeout"},
		{"deadline", context.DeadlineExceeded, true, "timeout"},
		{"canceled", context.Canceled, false, "context_canceled"},
		{"unknown", errors.New("smtp 451"), true, "unknown_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retryable, kind := IsRetryableError(tt.err)
			assert.Equal(t, tt.retryable, retryable)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("duplicate key")))
}
