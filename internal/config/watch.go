package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Watcher reloads Config from disk on change and notifies registered
// callbacks, narrowed from the teacher's HFTConfigManager (which also
// tracked environment, a reload channel, and a cancellable watch
// goroutine) down to viper's own fsnotify integration plus a callback
// list — this process has exactly one thing that needs to react to a
// config change: re-deriving the logger's level.
type Watcher struct {
	v         *viper.Viper
	logger    *zap.Logger
	callbacks []func(*Config)
}

// newWatcher wraps the viper instance LoadConfig already built so
// config-file changes re-unmarshal into a fresh Config and fan out to
// callbacks, without re-running LoadConfig's sync.Once. Exported via
// config.NewWatcher, which supplies the package-level viper instance.
func newWatcher(v *viper.Viper, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{v: v, logger: logger}
}

// OnChange registers a callback invoked with the freshly reloaded
// Config after every file change. Callbacks run synchronously on
// viper's watch goroutine; they must not block.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.callbacks = append(w.callbacks, fn)
}

// Start begins watching the config file for writes. Safe to call at
// most once per Watcher.
func (w *Watcher) Start() {
	w.v.OnConfigChange(func(e fsnotify.Event) {
		cfg := &Config{}
		if err := w.v.Unmarshal(cfg); err != nil {
			w.logger.Warn("config reload failed, keeping previous config", zap.Error(err))
			return
		}
		w.logger.Info("config reloaded", zap.String("file", e.Name))
		for _, cb := range w.callbacks {
			cb(cfg)
		}
	})
	w.v.WatchConfig()
}
