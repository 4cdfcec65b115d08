//go:build integration

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Sternrassler/soa-response-cache/internal/testutil"
	"github.com/Sternrassler/soa-response-cache/pkg/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns its address.
func setupRedis(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return host + ":" + port.Port()
}

func startInstance(t *testing.T, cfg config.Config) (*app, *httptest.Server) {
	t.Helper()

	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	server := httptest.NewServer(a.handler)
	t.Cleanup(func() {
		server.Close()
		a.close()
	})
	return a, server
}

func fetch(t *testing.T, url string) (string, string) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Language", "en")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.Header.Get("Cache-Status"), string(body)
}

// TestSharedTier_AcrossInstances tests the full flow: instance A misses and
// populates Redis, instance B serves the same variant from the shared tier.
func TestSharedTier_AcrossInstances(t *testing.T) {
	addr := setupRedis(t)

	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SetResponse("/items", testutil.MockResponse{Body: `{"items":[1,2,3]}`})

	cfg := testConfig(t, origin.URL())
	cfg.Shared.Backend = config.BackendRedis
	cfg.Shared.Redis.Address = addr
	cfg.Shared.Prefix = "respcache-it:"

	a, serverA := startInstance(t, cfg)
	_, serverB := startInstance(t, cfg)

	status, body := fetch(t, serverA.URL+"/items")
	require.Equal(t, "respcache; fwd=miss", status)
	require.Equal(t, `{"items":[1,2,3]}`, body)

	// Drain the asynchronous shared write before asking instance B
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.coord.Close(ctx))

	status, body = fetch(t, serverB.URL+"/items")
	require.Equal(t, "respcache; hit", status)
	require.Equal(t, `{"items":[1,2,3]}`, body)

	// Served again from B's local tier after promotion
	status, _ = fetch(t, serverB.URL+"/items")
	require.Equal(t, "respcache; hit", status)

	require.Equal(t, 1, origin.Hits("/items"))
}
