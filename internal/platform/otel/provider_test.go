package otel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/geojournal/internal/platform/otel"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := otel.Setup(context.Background(), "test-service", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, shutdown(ctx))
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Немаршрутизируемый адрес, экспорт не происходит
	for _, endpoint := range []string{"http://192.0.2.1:4318", "192.0.2.1:4318"} {
		shutdown, err := otel.Setup(context.Background(), "test-service", endpoint)
		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))
	}
}
