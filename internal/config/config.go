package config

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/prymatex/codeintel/internal/config/layer"
	"github.com/prymatex/codeintel/internal/config/loader"
	"github.com/prymatex/codeintel/internal/config/notify"
	"github.com/prymatex/codeintel/internal/config/registry"
	"github.com/prymatex/codeintel/internal/config/schema"
	"github.com/prymatex/codeintel/internal/config/watcher"
	"github.com/prymatex/codeintel/internal/logging"
	"github.com/prymatex/codeintel/internal/resolver"
)

// ProjectConfigDirName is the per-project settings directory.
const ProjectConfigDirName = ".codeintel"

// Config loads the codeintel settings layers, validates the merged table
// and publishes it to a resolver as an immutable snapshot. Loads, reloads,
// host payloads and session overrides are serialized; a change that fails
// validation leaves the previous snapshot in place.
type Config struct {
	mu sync.Mutex

	registry  *registry.Registry
	validator *schema.Validator
	resolver  *resolver.Resolver
	notifier  *notify.Notifier
	watcher   *watcher.Watcher
	log       *logging.Logger
	fs        loader.FileSystem

	defaults *layer.Layer
	// Layers of the published snapshot; edits go to a Clone
	layers   *layer.Manager
	merged   map[string]any
	warnings []string

	userConfigDir string
	projectDir    string
	enableWatcher bool
	enableEnv     bool
	environ       func() []string

	cancelWatch context.CancelFunc
	closed      bool

	// Batches committed under mu, delivered by unlock
	pending []func()
}

// Option configures a Config instance.
type Option func(*Config)

// WithUserConfigDir sets the user configuration directory.
func WithUserConfigDir(dir string) Option {
	return func(c *Config) {
		c.userConfigDir = dir
	}
}

// WithProjectDir sets the project root; settings are read from its
// .codeintel directory.
func WithProjectDir(dir string) Option {
	return func(c *Config) {
		c.projectDir = dir
	}
}

// WithWatcher enables file watching for live reload.
func WithWatcher(enable bool) Option {
	return func(c *Config) {
		c.enableWatcher = enable
	}
}

// WithEnvironment enables the CODEINTEL_* environment layer.
func WithEnvironment(enable bool) Option {
	return func(c *Config) {
		c.enableEnv = enable
	}
}

// WithEnviron replaces the environment source (os.Environ).
func WithEnviron(environ func() []string) Option {
	return func(c *Config) {
		c.environ = environ
	}
}

// WithResolver publishes snapshots to r instead of a private resolver.
func WithResolver(r *resolver.Resolver) Option {
	return func(c *Config) {
		c.resolver = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Config) {
		c.log = l
	}
}

// WithFS sets the file system settings files are read from.
func WithFS(fs loader.FileSystem) Option {
	return func(c *Config) {
		c.fs = fs
	}
}

// New creates a Config. Nothing is read until Load is called.
func New(opts ...Option) (*Config, error) {
	c := &Config{
		enableWatcher: true,
		enableEnv:     true,
		environ:       os.Environ,
		fs:            loader.DefaultFS(),
		log:           logging.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithComponent("config")

	if c.userConfigDir == "" {
		c.userConfigDir = DefaultUserConfigDir()
	}
	if c.resolver == nil {
		c.resolver = resolver.New()
	}

	s, err := schema.LoadEmbedded()
	if err != nil {
		return nil, errors.Wrap(err, "loading settings schema")
	}
	c.validator = schema.NewValidator(s)

	c.registry, err = registry.FromSchema(s)
	if err != nil {
		return nil, errors.Wrap(err, "building option registry")
	}

	c.defaults = layer.NewLayerWithData(layer.NameDefaults, layer.SourceBuiltin, c.registry.Defaults())
	c.defaults.ReadOnly = true
	c.notifier = notify.New(notify.WithLogger(c.log))

	return c, nil
}

// Load reads every settings source, validates the merged table and
// publishes the first snapshot. When watching is enabled, later edits of
// the settings files trigger Reload.
func (c *Config) Load(ctx context.Context) error {
	if err := c.reload(ctx, "load"); err != nil {
		return err
	}
	if c.enableWatcher {
		return c.startWatcher(ctx)
	}
	return nil
}

// Reload re-reads the settings files and environment. On failure the
// current snapshot stays published and the error is returned.
func (c *Config) Reload(ctx context.Context) error {
	return c.reload(ctx, "reload")
}

func (c *Config) reload(ctx context.Context, source string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return ErrClosed
	}

	files, err := c.loadFiles()
	if err != nil {
		c.log.Error("loading settings failed", "source", source, "error", err)
		return err
	}
	env, err := c.loadEnvironment()
	if err != nil {
		return err
	}

	m := c.candidate()
	m.RemoveSource(layer.SourceUser)
	m.RemoveSource(layer.SourceProject)
	for _, l := range files {
		m.AddLayer(l)
	}
	if env != nil {
		m.ReplaceLayer(env)
	} else {
		m.RemoveLayer(layer.NameEnvironment)
	}

	if err := c.commit(source, m); err != nil {
		c.log.Error("settings rejected", "source", source, "error", err)
		return err
	}
	return nil
}

// ApplyPayload replaces the settings pushed by the host editor. The
// payload sits above project files and below the environment.
func (c *Config) ApplyPayload(payload map[string]any) error {
	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return ErrClosed
	}

	m := c.candidate()
	m.ReplaceLayer(layer.NewLayerWithData(layer.NameHost, layer.SourceHost, payload))
	return c.commit("host", m)
}

// ApplyPayloadJSON decodes a JSON (with comments) payload and applies it.
func (c *Config) ApplyPayloadJSON(data []byte) error {
	payload, err := loader.ParseJSONC("<host payload>", data)
	if err != nil {
		return err
	}
	return c.ApplyPayload(payload)
}

// Set stores a session override at path. Top-level options are checked
// against the schema; paths inside codeintel_config are accepted as is.
func (c *Config) Set(path string, value any) error {
	keys := layer.SplitPath(path)
	if path == "" || keys[0] == "" {
		return errors.Wrapf(ErrInvalidPath, "%q", path)
	}
	if !c.registry.Has(keys[0]) {
		return errors.Wrapf(ErrUnknownSetting, "%s", keys[0])
	}
	value = layer.Normalize(value)
	if len(keys) == 1 {
		if err := c.validator.ValidatePath(path, value); err != nil {
			return errors.Mark(err, ErrValidationFailed)
		}
	}

	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return ErrClosed
	}

	m := c.candidate()
	m.SetInSession(path, value)
	return c.commit("session", m)
}

// Unset removes a session override.
func (c *Config) Unset(path string) error {
	c.mu.Lock()
	defer c.unlock()
	if c.closed {
		return ErrClosed
	}
	if c.layers == nil || c.layers.GetLayer(layer.NameSession) == nil {
		return nil
	}

	m := c.candidate()
	removed, err := m.Delete(layer.NameSession, path)
	if err != nil || !removed {
		return err
	}
	return c.commit("session", m)
}

// candidate returns a private copy of the published layers for the next
// commit. Must be called with c.mu held.
func (c *Config) candidate() *layer.Manager {
	if c.layers == nil {
		m := layer.NewManager()
		m.AddLayer(c.defaults)
		return m
	}
	return c.layers.Clone()
}

// commit merges the candidate layers, validates the result and publishes
// it. Must be called with c.mu held.
func (c *Config) commit(source string, m *layer.Manager) error {
	merged := m.Merge()

	if err := c.validator.Validate(merged); err != nil {
		return errors.Wrapf(errors.Mark(err, ErrValidationFailed), "validating %s settings", source)
	}

	problems := c.overrideProblems(merged)
	warnings := problems.Problems()

	snap, err := resolver.NewSnapshot(merged, c.registry.Keys())
	if err != nil {
		return errors.Wrapf(err, "building %s snapshot", source)
	}
	c.resolver.Store(snap)

	old := c.merged
	c.layers = m
	c.merged = merged
	c.warnings = warnings

	for _, p := range problems.Errors {
		c.log.Warn("ignoring invalid language override value",
			"language", p.Language,
			"path", p.Path,
			"problem", p.Message,
		)
	}
	c.log.Info("configuration published",
		"source", source,
		"snapshot", snap.ID(),
		"version", snap.Version(),
		"layers", m.LayerCount(),
	)

	batch := c.notifier.NewBatch()
	if old != nil {
		batch.Add(notify.Diff(old, merged, source)...)
	}
	version, id := snap.Version(), snap.ID()
	c.pending = append(c.pending, func() { batch.Commit(source, version, id) })
	return nil
}

// unlock releases mu and then delivers the batches committed while it was
// held, so observers may call back into the Config.
func (c *Config) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, deliver := range pending {
		deliver()
	}
}

// loadFiles reads the user and project settings files.
func (c *Config) loadFiles() ([]*layer.Layer, error) {
	var layers []*layer.Layer

	sources := []struct {
		dir    string
		source layer.Source
	}{
		{c.userConfigDir, layer.SourceUser},
		{c.ProjectConfigDir(), layer.SourceProject},
	}
	for _, s := range sources {
		if s.dir == "" {
			continue
		}
		path := loader.FindSettingsFile(c.fs, s.dir)
		if path == "" {
			c.log.Debug("no settings file", "dir", s.dir, "source", s.source.String())
			continue
		}

		data, err := loader.LoadFile(path, loader.Options{FS: c.fs, ListKeys: c.listKeys()})
		if err != nil {
			return nil, errors.Wrapf(err, "loading %s settings", s.source)
		}
		if data == nil {
			continue
		}

		l := layer.NewLayerWithData(s.source.String()+":"+filepath.Base(path), s.source, data)
		l.Path = path
		if info, err := c.fs.Stat(path); err == nil {
			l.ModTime = info.ModTime()
		}
		layers = append(layers, l)
		c.log.Debug("loaded settings file", "path", path, "keys", len(data))
	}

	return layers, nil
}

func (c *Config) loadEnvironment() (*layer.Layer, error) {
	if !c.enableEnv {
		return nil, nil
	}

	envLoader := loader.NewEnvLoader(loader.EnvPrefix, c.registry.EnvMapping(loader.EnvPrefix))
	envLoader.ListKeys = c.listKeys()
	data, err := envLoader.LoadFrom(c.environ())
	if err != nil {
		return nil, errors.Wrap(err, "loading environment")
	}
	if len(data) == 0 {
		return nil, nil
	}
	return layer.NewLayerWithData(layer.NameEnvironment, layer.SourceEnv, data), nil
}

// listKeys returns the options whose values are plain lists.
func (c *Config) listKeys() map[string]bool {
	keys := map[string]bool{resolver.KeyScanExtraDir: true}
	for _, s := range c.registry.All() {
		if s.Type == registry.TypeArray {
			keys[s.Key] = true
		}
	}
	return keys
}

func (c *Config) startWatcher(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher != nil || c.closed {
		return nil
	}

	w, err := watcher.New(watcher.WithLogger(c.log))
	if err != nil {
		return err
	}
	for _, dir := range []string{c.userConfigDir, c.ProjectConfigDir()} {
		if dir == "" {
			continue
		}
		if err := w.WatchDir(dir, loader.SettingsFileNames); err != nil {
			_ = w.Stop()
			return err
		}
	}

	w.OnChange(func(event watcher.Event) {
		c.log.Debug("settings file changed", "path", event.Path, "op", event.Op.String())
		if err := c.Reload(context.Background()); err != nil && !errors.Is(err, ErrClosed) {
			c.log.Error("reload failed, keeping previous settings", "path", event.Path, "error", err)
		}
	})

	watchCtx, cancel := context.WithCancel(ctx)
	w.Start(watchCtx)
	c.watcher = w
	c.cancelWatch = cancel
	return nil
}

// Close stops watching and releases observers. It is safe to call Close
// multiple times.
func (c *Config) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	w, cancel := c.watcher, c.cancelWatch
	c.mu.Unlock()

	var err error
	if w != nil {
		cancel()
		err = w.Stop()
	}
	c.notifier.Close()
	return err
}

// Resolver returns the resolver snapshots are published to.
func (c *Config) Resolver() *resolver.Resolver {
	return c.resolver
}

// Registry returns the option catalog.
func (c *Config) Registry() *registry.Registry {
	return c.registry
}

// Validator returns the settings validator.
func (c *Config) Validator() *schema.Validator {
	return c.validator
}

// Subscribe registers an observer for all configuration changes.
func (c *Config) Subscribe(observer notify.Observer) *notify.Subscription {
	return c.notifier.Subscribe(observer)
}

// SubscribePath registers an observer for changes at or below path.
func (c *Config) SubscribePath(path string, observer notify.Observer) *notify.Subscription {
	return c.notifier.SubscribePath(path, observer)
}

// Merged returns a copy of the option table of the published snapshot.
func (c *Config) Merged() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return layer.CloneMap(c.merged)
}

// Get returns the published value at path.
func (c *Config) Get(path string) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := layer.GetByPath(c.merged, path)
	if !ok {
		return nil, errors.Wrapf(ErrSettingNotFound, "%s", path)
	}
	return layer.CloneValue(v), nil
}

// WhichLayer returns the name of the highest layer defining path, or "".
func (c *Config) WhichLayer(path string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layers == nil {
		return ""
	}
	return c.layers.WhichLayer(path)
}

// LayerInfo describes one layer of the published snapshot.
type LayerInfo struct {
	Name     string
	Source   string
	Priority int
	Path     string
	Keys     int
}

// Layers describes the layers of the published snapshot, lowest first.
func (c *Config) Layers() []LayerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layers == nil {
		return nil
	}

	var out []LayerInfo
	for _, l := range c.layers.Layers() {
		out = append(out, LayerInfo{
			Name:     l.Name,
			Source:   l.Source.String(),
			Priority: l.Priority,
			Path:     l.Path,
			Keys:     len(l.Data),
		})
	}
	return out
}

// Warnings returns the problems found in language override blocks of the
// published snapshot. They do not prevent publication.
func (c *Config) Warnings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.warnings...)
	sort.Strings(out)
	return out
}

// UserConfigDir returns the user settings directory.
func (c *Config) UserConfigDir() string {
	return c.userConfigDir
}

// ProjectConfigDir returns the project settings directory, or "" when no
// project is configured.
func (c *Config) ProjectConfigDir() string {
	if c.projectDir == "" {
		return ""
	}
	return filepath.Join(c.projectDir, ProjectConfigDirName)
}

// UserSettingsFile returns the user settings file in use, or the default
// JSON location when none exists yet.
func (c *Config) UserSettingsFile() string {
	if path := loader.FindSettingsFile(c.fs, c.userConfigDir); path != "" {
		return path
	}
	return filepath.Join(c.userConfigDir, "settings.json")
}

// ProjectSettingsFile returns the project settings file in use, or the
// default JSON location. It returns "" when no project is configured.
func (c *Config) ProjectSettingsFile() string {
	dir := c.ProjectConfigDir()
	if dir == "" {
		return ""
	}
	if path := loader.FindSettingsFile(c.fs, dir); path != "" {
		return path
	}
	return filepath.Join(dir, "settings.json")
}

// ValidateFile checks a single settings file layered over the built-in
// defaults. Override problems are returned as warnings.
func (c *Config) ValidateFile(path string) ([]string, error) {
	data, err := loader.LoadFile(path, loader.Options{FS: c.fs, ListKeys: c.listKeys()})
	if err != nil {
		return nil, err
	}

	merged := layer.DeepMerge(c.registry.Defaults(), layer.NormalizeMap(data))
	if err := c.validator.Validate(merged); err != nil {
		return nil, errors.Wrapf(errors.Mark(err, ErrValidationFailed), "validating %s", path)
	}

	return c.overrideProblems(merged).Problems(), nil
}

// overrideProblems validates the language override blocks of merged. Their
// problems never reject a table; the offending values fall back to the
// global option.
func (c *Config) overrideProblems(merged map[string]any) *schema.ValidationErrors {
	overrides, ok := merged[resolver.KeyOverrides].(map[string]any)
	if !ok {
		return &schema.ValidationErrors{}
	}
	var verrs *schema.ValidationErrors
	if err := c.validator.ValidateOverrides(overrides); errors.As(err, &verrs) {
		return verrs
	}
	return &schema.ValidationErrors{}
}

// DefaultUserConfigDir returns $XDG_CONFIG_HOME/codeintel, falling back to
// ~/.config/codeintel.
func DefaultUserConfigDir() string {
	if dir := os.Getenv("CODEINTEL_CONFIG_DIR"); dir != "" {
		return dir
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "codeintel")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "codeintel")
}
