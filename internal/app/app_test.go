package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/specialistvlad/traitgraph/internal/hcl_adapter"
	"github.com/specialistvlad/traitgraph/internal/module"
	"github.com/specialistvlad/traitgraph/internal/testutil"
	"github.com/specialistvlad/traitgraph/internal/trait"
	"github.com/specialistvlad/traitgraph/modules/basic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

const walkDescription = `
graph "walk" {
  variable "rate" {
    type      = number
    default   = 1
    interface = "Locomotion"
  }

  interface "Locomotion" {
    variables = ["rate"]
  }

  latent "rate" {
    expression = "var.rate"
  }

  node "root" {
    trait "Blend" {
      a      = node.walk
      b      = node.run
      weight = 0.5
    }
  }

  node "walk" {
    trait "Clip" {
      clip   = object("walk_cycle")
      length = 1
      loop   = true
      rate   = latent.rate
    }
  }

  node "run" {
    trait "Clip" {
      clip   = object("run_cycle")
      length = 1
      rate   = 2
    }
    trait "Mirror" {
      enabled = true
    }
  }

  entry_point "Root" {
    node    = "root"
    default = true
  }
}

module "walker" {
  graph  = "walk"
  events = ["Prologue", "PrePhysics"]

  variable "rate" {
    type      = number
    default   = 1
    interface = "Locomotion"
  }
}
`

func writeDescription(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "walk.hcl"), []byte(src), 0o644))
	return dir
}

func walkConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.Paths = []string{writeDescription(t, walkDescription)}
	cfg.Frames = 3
	cfg.Modules = map[string]ModuleConfig{
		"walker": {Instances: 2, Variables: map[string]any{"rate": 4}},
	}
	return cfg
}

func TestRunWalkGraph(t *testing.T) {
	a, logs := SetupAppTest(t, walkConfig(t))
	require.NoError(t, a.Load(hcl_adapter.NewLoader()))
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, uint64(3), a.Manager().Frame())
	assert.Equal(t, 2, a.Manager().Len())
	testutil.AssertLogged(t, logs, "INFO", "Descriptions loaded.", "graphs=1", "modules=1")
	testutil.AssertLogged(t, logs, "INFO", "Frame loop finished.", "frames=3", "instances=2")

	handles := a.Handles("walker")
	require.Len(t, handles, 2)
	for _, h := range handles {
		inst, ok := a.Manager().Instance(h)
		require.True(t, ok)
		assert.Equal(t, module.Running, inst.RunState())

		cell, ok := inst.LookupCell("rate")
		require.True(t, ok)
		assert.True(t, cell.Get().Equals(cty.NumberIntVal(4)).True(), "settings override the host default")

		nodes := inst.Graph().NodeInstances()
		require.Len(t, nodes, 3)
		walk := basic.Time(trait.Binding{Instance: nodes[1].Data[:4]})
		assert.InDelta(t, 3*4.0/60, walk, 1e-4, "latent rate reads the bound host variable")
		run := basic.Time(trait.Binding{Instance: nodes[2].Data[:4]})
		assert.InDelta(t, 3*2.0/60, run, 1e-4)
	}

	names, err := a.Store().List(a.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"walk"}, names)
}

func TestDiagnosticsRoutes(t *testing.T) {
	a, _ := SetupAppTest(t, walkConfig(t))
	require.NoError(t, a.Load(hcl_adapter.NewLoader()))
	require.NoError(t, a.Run(context.Background()))

	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)

	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `traitgraph_frames_total{outcome="ok"} 3`)
	assert.Contains(t, body, `traitgraph_graph_store_operations_total{backend="memory",op="put",outcome="ok"} 1`)

	code, body = get("/graphs/walk")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "graph walk: 3 nodes")
	assert.Contains(t, body, "entry Root -> ")
	assert.Contains(t, body, `var rate number interface="Locomotion"`)

	code, body = get("/graphs/missing")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, "graph 'missing' is not loaded")

	code, body = get("/templates")
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, body)
}

func TestRunCancelled(t *testing.T) {
	cfg := walkConfig(t)
	cfg.Frames = 0
	cfg.FrameInterval = 5 * time.Millisecond
	a, logs := SetupAppTest(t, cfg)
	require.NoError(t, a.Load(hcl_adapter.NewLoader()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, a.Run(ctx))

	assert.Positive(t, a.Manager().Frame())
	testutil.AssertLogged(t, logs, "INFO", "Frame loop cancelled.")
}

func TestRedisStoreBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := walkConfig(t)
	cfg.Store = StoreConfig{Backend: "redis", Redis: RedisConfig{Addr: mr.Addr(), Prefix: "test:"}}
	a, _ := SetupAppTest(t, cfg)
	require.NoError(t, a.Load(hcl_adapter.NewLoader()))

	assert.True(t, mr.Exists("test:walk"))
	g, ok := a.Graph("walk")
	require.True(t, ok)
	assert.Len(t, g.Nodes(), 3)
}

func TestFileStoreBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := walkConfig(t)
	cfg.Store = StoreConfig{Backend: "file", Dir: dir}
	a, _ := SetupAppTest(t, cfg)
	require.NoError(t, a.Load(hcl_adapter.NewLoader()))

	names, err := a.Store().List(a.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"walk"}, names)
}

func TestLoadErrors(t *testing.T) {
	t.Run("unknown override variable", func(t *testing.T) {
		cfg := walkConfig(t)
		cfg.Modules["walker"] = ModuleConfig{Variables: map[string]any{"speed": 2}}
		a, _ := SetupAppTest(t, cfg)
		err := a.Load(hcl_adapter.NewLoader())
		assert.ErrorContains(t, err, "module 'walker' has no variable 'speed'")
	})

	t.Run("override of the wrong type", func(t *testing.T) {
		cfg := walkConfig(t)
		cfg.Modules["walker"] = ModuleConfig{Variables: map[string]any{"rate": []any{1, 2}}}
		a, _ := SetupAppTest(t, cfg)
		err := a.Load(hcl_adapter.NewLoader())
		assert.ErrorContains(t, err, "module 'walker' variable 'rate' is not a number")
	})

	t.Run("module runs unknown graph", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Paths = []string{writeDescription(t, walkDescription+`
module "lost" {
  graph = "nowhere"
}
`)}
		a, _ := SetupAppTest(t, cfg)
		err := a.Load(hcl_adapter.NewLoader())
		assert.ErrorContains(t, err, "module 'lost' runs unknown graph 'nowhere'")
	})

	t.Run("unknown trait", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Paths = []string{writeDescription(t, `
graph "g" {
  node "a" {
    trait "Clp" {}
  }
}
`)}
		a, _ := SetupAppTest(t, cfg)
		err := a.Load(hcl_adapter.NewLoader())
		assert.ErrorContains(t, err, "unknown trait 'Clp', did you mean 'Clip'?")
	})
}

func TestDisabledModule(t *testing.T) {
	cfg := walkConfig(t)
	cfg.Modules["walker"] = ModuleConfig{Disabled: true}
	cfg.Modules["ghost"] = ModuleConfig{Instances: 1}
	a, logs := SetupAppTest(t, cfg)
	require.NoError(t, a.Load(hcl_adapter.NewLoader()))
	require.NoError(t, a.Run(context.Background()))

	assert.Zero(t, a.Manager().Len())
	assert.Empty(t, a.Handles("walker"))
	testutil.AssertLogged(t, logs, "INFO", "Module disabled by settings.", "module=walker")
	testutil.AssertLogged(t, logs, "WARN", "Settings name a module no description declares.", "module=ghost")
}

func TestNewAppPanicsOnInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.PanicsWithError(t, "invalid configuration: no graph description paths configured", func() {
		NewApp(io.Discard, &cfg, hcl_adapter.NewConverter())
	})
}

func TestDecodeConfig(t *testing.T) {
	cfg := DefaultConfig()
	err := DecodeConfig([]byte(`
paths: [graphs]
frames: 10
frame_interval: 16ms
store:
  backend: redis
  redis:
    addr: localhost:6379
    ttl: 1h
modules:
  walker:
    instances: 3
    variables:
      rate: 2.5
`), &cfg)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"graphs"}, cfg.Paths)
	assert.Equal(t, 10, cfg.Frames)
	assert.Equal(t, 16*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
	assert.Equal(t, 4, cfg.Workers, "unmentioned fields keep their defaults")
	assert.Equal(t, 3, cfg.Modules["walker"].Instances)
	assert.Equal(t, 2.5, cfg.Modules["walker"].Variables["rate"])

	err = DecodeConfig([]byte("framez: 3\n"), &cfg)
	assert.ErrorContains(t, err, "framez")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "loud"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "invalid log format 'xml'"},
		{"no workers", func(c *Config) { c.Workers = 0 }, "workers must be positive"},
		{"negative frames", func(c *Config) { c.Frames = -1 }, "frames must not be negative"},
		{"zero delta", func(c *Config) { c.DeltaTime = 0 }, "delta time must be positive"},
		{"file without dir", func(c *Config) { c.Store.Backend = "file" }, "file store needs a directory"},
		{"redis without addr", func(c *Config) { c.Store.Backend = "redis" }, "redis store needs an address"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, "unknown store backend 'etcd'"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Paths = []string{"graphs"}
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
}
