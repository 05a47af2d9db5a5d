// Package config loads the orchestrator's static configuration (spec §6,
// "Configuration") from a TOML file, using BurntSushi/toml — the teacher's
// own configuration format — and wires internal/watcher to hot-reload the
// `[[models]]` table when the file changes on disk, without restarting the
// server or dropping in-flight turns.
package config

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/councilhq/orchestrator/internal/modelclient"
	"github.com/councilhq/orchestrator/internal/modelregistry"
	"github.com/councilhq/orchestrator/internal/watcher"
)

// Config is the full static configuration surface spec §6 enumerates, plus
// the transport/persistence fields SPEC_FULL.md's ambient stack adds.
type Config struct {
	ChairmanModelID string   `toml:"chairman_model_id"`
	DefaultModels   []string `toml:"default_models"`
	Temperature     float64  `toml:"temperature"`
	MaxTokens       int      `toml:"max_tokens"`

	PerCallTimeoutMS  int `toml:"per_call_timeout_ms"`
	Stage1DeadlineMS  int `toml:"stage1_deadline_ms"`
	Stage2DeadlineMS  int `toml:"stage2_deadline_ms"`
	Stage3DeadlineMS  int `toml:"stage3_deadline_ms"`
	TurnDeadlineMS    int `toml:"turn_deadline_ms"`
	OutputBufferSize  int `toml:"output_buffer_size"`

	ListenAddr string `toml:"listen_addr"`

	Store struct {
		Driver string `toml:"driver"` // "memory" or "sqlite"
		DSN    string `toml:"dsn"`
	} `toml:"store"`

	Models []modelregistry.ModelDescriptor `toml:"models"`
}

// Defaults returns a Config populated with spec §6's default values.
func Defaults() Config {
	var c Config
	c.Temperature = 0.7
	c.MaxTokens = 4000
	c.PerCallTimeoutMS = 120_000
	c.Stage1DeadlineMS = 180_000
	c.Stage2DeadlineMS = 120_000
	c.Stage3DeadlineMS = 180_000
	c.TurnDeadlineMS = 600_000
	c.OutputBufferSize = 128
	c.ListenAddr = ":8080"
	c.Store.Driver = "sqlite"
	c.Store.DSN = "councild.db"
	return c
}

// Load reads and decodes a TOML config file, filling unset fields with
// Defaults.
func Load(path string) (Config, error) {
	c := Defaults()
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if c.ChairmanModelID == "" {
		return Config{}, fmt.Errorf("config: chairman_model_id is required")
	}
	return c, nil
}

// PerCallTimeout, Stage1Deadline, ... expose the millisecond fields as
// time.Duration, the unit the rest of the module works in.
func (c Config) PerCallTimeout() time.Duration { return time.Duration(c.PerCallTimeoutMS) * time.Millisecond }
func (c Config) Stage1Deadline() time.Duration { return time.Duration(c.Stage1DeadlineMS) * time.Millisecond }
func (c Config) Stage2Deadline() time.Duration { return time.Duration(c.Stage2DeadlineMS) * time.Millisecond }
func (c Config) Stage3Deadline() time.Duration { return time.Duration(c.Stage3DeadlineMS) * time.Millisecond }
func (c Config) TurnDeadline() time.Duration   { return time.Duration(c.TurnDeadlineMS) * time.Millisecond }

// BuildCatalog builds a modelregistry.Catalog from the config's model
// list, applying ChairmanModelID as the designated chairman.
func (c Config) BuildCatalog() (*modelregistry.Catalog, error) {
	descriptors := make([]modelregistry.ModelDescriptor, len(c.Models))
	copy(descriptors, c.Models)
	for i := range descriptors {
		descriptors[i].IsChairman = descriptors[i].ID == c.ChairmanModelID
	}
	return modelregistry.New(descriptors)
}

// BuildRouter constructs one modelclient.HTTPClient per distinct
// provider_tag in the config's model list, keyed for internal/modelclient's
// Router. The API key is read from the environment variable named by each
// descriptor's api_key_env at call time, never stored in the Config value
// itself.
func (c Config) BuildRouter() (*modelclient.Router, error) {
	clients := make(map[string]modelclient.Client)
	for _, d := range c.Models {
		if _, exists := clients[d.ProviderTag]; exists {
			continue
		}
		if d.BaseURL == "" {
			return nil, fmt.Errorf("config: model %q missing base_url for provider %q", d.ID, d.ProviderTag)
		}
		apiKey := os.Getenv(d.APIKeyEnv)
		clients[d.ProviderTag] = modelclient.NewHTTPClient(d.BaseURL, apiKey)
	}
	return modelclient.NewRouter(clients), nil
}

// RegistryWatcher hot-reloads the model catalog (spec §9's supplemented
// feature: config hot-reload scoped to the catalog, i.e. the models table
// and the chairman_model_id that marks its chairman; every other field only
// takes effect at process start). It holds an
// atomic.Pointer so readers never observe a torn Catalog mid-reload.
type RegistryWatcher struct {
	path    string
	current atomic.Pointer[modelregistry.Catalog]
	onError func(error)
	fsw     *watcher.Watcher
}

// NewRegistryWatcher loads path once to build the initial Catalog, then
// starts watching it for writes. onError, if non-nil, is called with any
// error encountered while reloading (a malformed edit leaves the previous
// Catalog in place).
func NewRegistryWatcher(path string, onError func(error)) (*RegistryWatcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	catalog, err := cfg.BuildCatalog()
	if err != nil {
		return nil, fmt.Errorf("config: building initial catalog: %w", err)
	}

	rw := &RegistryWatcher{path: path, onError: onError}
	rw.current.Store(catalog)

	fsw, err := watcher.New(func(events []watcher.Event) {
		rw.reload()
	}, watcher.WithEventFilter(watcher.Write|watcher.Create))
	if err != nil {
		return nil, fmt.Errorf("config: starting watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}
	rw.fsw = fsw

	return rw, nil
}

func (rw *RegistryWatcher) reload() {
	cfg, err := Load(rw.path)
	if err != nil {
		if rw.onError != nil {
			rw.onError(err)
		}
		return
	}
	catalog, err := cfg.BuildCatalog()
	if err != nil {
		if rw.onError != nil {
			rw.onError(err)
		}
		return
	}
	rw.current.Store(catalog)
}

// Catalog returns the currently active model catalog.
func (rw *RegistryWatcher) Catalog() *modelregistry.Catalog {
	return rw.current.Load()
}

// Close stops watching the config file.
func (rw *RegistryWatcher) Close() error {
	return rw.fsw.Close()
}
