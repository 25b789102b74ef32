package database

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-electives-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "electives", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=electives sslmode=disable", dsn)
}

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert ge enrollment: %w", &pq.Error{Code: "23505"})
	deadlock := &pq.Error{Code: "40P01"}

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsRetryable(unique))
	assert.True(t, IsRetryable(deadlock))
	assert.True(t, IsRetryable(&pq.Error{Code: "40001"}))
	assert.False(t, IsUniqueViolation(fmt.Errorf("plain")))
}
