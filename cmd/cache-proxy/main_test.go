package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/soa-response-cache/internal/testutil"
	"github.com/Sternrassler/soa-response-cache/pkg/config"
	"github.com/alicebob/miniredis/v2"
	"github.com/gavv/httpexpect/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, originURL string) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Server.Origin = originURL
	cfg.Local.CleanupIntervalSeconds = 0
	cfg.Rules = []config.RuleConfig{
		{
			Method:     "GET",
			Path:       "/items",
			TTLSeconds: 60,
			Status:     []int{http.StatusInternalServerError},
			Headers:    []config.HeaderConfig{{Name: "accept-language", Value: true}},
		},
	}
	return cfg
}

func startApp(t *testing.T, cfg config.Config) *httpexpect.Expect {
	t.Helper()

	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	server := httptest.NewServer(a.handler)
	t.Cleanup(func() {
		server.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		a.coord.Close(ctx)
		a.close()
	})

	return httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  server.URL,
		Reporter: httpexpect.NewRequireReporter(t),
		Client:   &http.Client{Timeout: 5 * time.Second},
	})
}

func TestProxy_Backends(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, cfg *config.Config)
	}{
		{
			name:  "local only",
			setup: func(t *testing.T, cfg *config.Config) {},
		},
		{
			name: "sqlite",
			setup: func(t *testing.T, cfg *config.Config) {
				cfg.Shared.Backend = config.BackendSQLite
				cfg.Shared.SQLite.Path = filepath.Join(t.TempDir(), "cache.db")
			},
		},
		{
			name: "redis",
			setup: func(t *testing.T, cfg *config.Config) {
				server, err := miniredis.Run()
				if err != nil {
					t.Skipf("miniredis unavailable: %v", err)
				}
				t.Cleanup(server.Close)
				cfg.Shared.Backend = config.BackendRedis
				cfg.Shared.Redis.Address = server.Addr()
			},
		},
		{
			name: "valkey",
			setup: func(t *testing.T, cfg *config.Config) {
				server, err := miniredis.Run()
				if err != nil {
					t.Skipf("miniredis unavailable: %v", err)
				}
				t.Cleanup(server.Close)
				cfg.Shared.Backend = config.BackendValkey
				cfg.Shared.Redis.Address = server.Addr()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origin := testutil.NewMockOrigin()
			defer origin.Close()
			origin.SetResponse("/items", testutil.MockResponse{
				Body:    "items",
				Headers: map[string]string{"Content-Type": "text/plain"},
			})

			cfg := testConfig(t, origin.URL())
			tt.setup(t, &cfg)
			e := startApp(t, cfg)

			e.GET("/items").WithHeader("Accept-Language", "en").Expect().
				Status(http.StatusOK).Body().IsEqual("items")

			hit := e.GET("/items").WithHeader("Accept-Language", "en").Expect()
			hit.Status(http.StatusOK)
			hit.Body().IsEqual("items")
			hit.Header("Cache-Status").IsEqual("respcache; hit")

			require.Equal(t, 1, origin.Hits("/items"))
		})
	}
}

func TestProxy_DevModeBypasses(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SetResponse("/items", testutil.MockResponse{Body: "items"})

	cfg := testConfig(t, origin.URL())
	cfg.Server.Dev = true
	e := startApp(t, cfg)

	for i := 0; i < 2; i++ {
		e.GET("/items").WithHeader("Accept-Language", "en").Expect().
			Header("Cache-Status").IsEqual("respcache; fwd=bypass")
	}
	require.Equal(t, 2, origin.Hits("/items"))
}

func TestProxy_ExcludedStatus(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SetResponse("/items", testutil.MockResponse{StatusCode: http.StatusInternalServerError, Body: "down"})

	e := startApp(t, testConfig(t, origin.URL()))

	for i := 0; i < 2; i++ {
		e.GET("/items").WithHeader("Accept-Language", "en").Expect().Status(http.StatusInternalServerError)
	}
	require.Equal(t, 2, origin.Hits("/items"))
}

func TestProxy_HealthAndMetrics(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()

	e := startApp(t, testConfig(t, origin.URL()))

	e.GET("/health").Expect().Status(http.StatusOK).Body().IsEqual("OK")
	e.GET("/metrics").Expect().Status(http.StatusOK).Body().Contains("respcache_local_entries")
	require.Zero(t, origin.RequestCount())
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{name: "missing origin", mutate: func(cfg *config.Config) { cfg.Server.Origin = "" }},
		{name: "relative origin", mutate: func(cfg *config.Config) { cfg.Server.Origin = "/upstream" }},
		{name: "invalid rule", mutate: func(cfg *config.Config) {
			cfg.Rules = append(cfg.Rules, config.RuleConfig{Method: "GET"})
		}},
		{name: "unreachable redis", mutate: func(cfg *config.Config) {
			cfg.Shared.Backend = config.BackendRedis
			cfg.Shared.Redis.Address = "127.0.0.1:1"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, "http://127.0.0.1:9")
			tt.mutate(&cfg)
			_, err := newApp(context.Background(), cfg, zerolog.Nop())
			require.Error(t, err)
		})
	}
}

func TestRun_BadFlags(t *testing.T) {
	require.Error(t, run(context.Background(), []string{"-unknown"}))
}

func TestProxy_UnreachableOriginNotCached(t *testing.T) {
	origin := testutil.NewMockOrigin()
	cfg := testConfig(t, origin.URL())
	origin.Close()

	e := startApp(t, cfg)

	for i := 0; i < 2; i++ {
		r := e.GET("/items").WithHeader("Accept-Language", "en").Expect()
		r.Status(http.StatusBadGateway)
		r.Header("Cache-Status").IsEqual("respcache; fwd=miss")
	}
}

func TestProxy_RangeRequestBypasses(t *testing.T) {
	origin := testutil.NewMockOrigin()
	defer origin.Close()
	origin.SetResponse("/items", testutil.MockResponse{Body: "items"})

	e := startApp(t, testConfig(t, origin.URL()))

	e.GET("/items").WithHeader("Accept-Language", "en").WithHeader("Range", "bytes=0-0").Expect().
		Header("Cache-Status").IsEqual("respcache; fwd=bypass")
	require.Equal(t, "bytes=0-0", origin.LastRequestHeader().Get("Range"))

	e.GET("/items").WithHeader("Accept-Language", "en").Expect().
		Header("Cache-Status").IsEqual("respcache; fwd=miss")
	require.Equal(t, "en", origin.LastRequestHeader().Get("Accept-Language"))
	require.Empty(t, origin.LastRequestHeader().Get("Range"))

	require.Equal(t, 2, origin.Hits("/items"))
}
