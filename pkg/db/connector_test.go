// Redis DB Connetor tests in Agora.

package db

import (
	"Agora/pkg/log"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Global context
var ctx context.Context = context.Background()

func TestNewDbConnectionRequiresAddress(t *testing.T) {
	_, err := NewDbConnection(ctx, log.Nop(), Options{Port: "6379"})
	assert.Error(t, err)
	_, err = NewDbConnection(ctx, log.Nop(), Options{Addr: "localhost"})
	assert.Error(t, err)
}

func TestDbConnectionLifeCycle(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis-server test")
	}
	port := os.Getenv("REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	logger := log.Nop()

	client, dberr := NewDbConnection(ctx, logger, Options{Addr: addr, Port: port, Password: os.Getenv("REDIS_PASSWORD"), DB: 1})
	require.NoError(t, dberr)
	// Check if connection is successful
	assert.NoError(t, client.CheckDbConnection(ctx, logger))
	client.CleanTestDbData(ctx, logger)
	// Close connection
	assert.NoError(t, client.CloseDbConnection(ctx))
	// Check if connection is still active
	assert.Error(t, client.CheckDbConnection(ctx, logger))
}
