package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ConfigWatcher 配置监听器
type ConfigWatcher struct {
	config     *Config
	configPath string
	viper      *viper.Viper
	logger     *logrus.Logger
	callbacks  []func(*Config)
	mu         sync.RWMutex
	stopped    bool
	stopMu     sync.RWMutex
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(cfg *Config, configPath string, logger *logrus.Logger) *ConfigWatcher {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &ConfigWatcher{
		config:     cfg,
		configPath: configPath,
		viper:      v,
		logger:     logger,
		callbacks:  make([]func(*Config), 0),
	}
}

// OnConfigChange 注册配置变更回调
func (w *ConfigWatcher) OnConfigChange(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start 启动配置监听
func (w *ConfigWatcher) Start() error {
	// 读取配置文件
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// 设置配置变更监听
	w.viper.OnConfigChange(func(e fsnotify.Event) {
		w.reload(e.Name)
	})
	w.viper.WatchConfig()

	return nil
}

func (w *ConfigWatcher) reload(name string) {
	w.stopMu.RLock()
	stopped := w.stopped
	w.stopMu.RUnlock()
	if stopped {
		return
	}

	newCfg, err := unmarshal(w.viper)
	if err != nil {
		w.logger.WithError(err).WithField("file", name).Error("failed to reload config, keeping previous")
		return
	}

	w.mu.RLock()
	oldCfg := w.config
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	if pinned := RestartRequired(oldCfg, newCfg); len(pinned) > 0 {
		w.logger.WithFields(logrus.Fields{
			"file":     name,
			"sections": pinned,
		}).Warn("config sections changed that only take effect after restart")
	}

	// 回调在锁外执行
	for _, callback := range callbacks {
		callback(newCfg)
	}

	w.mu.Lock()
	w.config = newCfg
	w.mu.Unlock()

	w.logger.WithFields(logrus.Fields{
		"file":      name,
		"log_level": newCfg.Log.Level,
	}).Info("config reloaded")
}

// RestartRequired 返回变更后需要重启才能生效的配置段
// 运行时只热更新日志级别
func RestartRequired(oldCfg, newCfg *Config) []string {
	if oldCfg == nil || newCfg == nil {
		return nil
	}
	var sections []string
	if oldCfg.Server != newCfg.Server {
		sections = append(sections, "server")
	}
	if oldCfg.Database != newCfg.Database {
		sections = append(sections, "database")
	}
	if oldCfg.Redis != newCfg.Redis {
		sections = append(sections, "redis")
	}
	if oldCfg.Cache != newCfg.Cache {
		sections = append(sections, "cache")
	}
	if oldCfg.Authority != newCfg.Authority {
		sections = append(sections, "authority")
	}
	if oldCfg.Auth != newCfg.Auth {
		sections = append(sections, "auth")
	}
	if oldCfg.Notification != newCfg.Notification {
		sections = append(sections, "notification")
	}
	return sections
}

// Stop 停止配置监听
func (w *ConfigWatcher) Stop() {
	w.stopMu.Lock()
	defer w.stopMu.Unlock()
	w.stopped = true
}

// GetConfig 获取当前配置
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}
