package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSyncInterval = 21600 // seconds
	DefaultTimeout      = 30    // seconds
	DefaultItemDelayMs  = 150
)

var DefaultTags = []string{"podcast", "episode"}

type ConfigCache struct {
	feedsDir string
	cache    map[string]*Config
	mu       sync.RWMutex
}

func NewConfigCache(feedsDir string) *ConfigCache {
	return &ConfigCache{
		feedsDir: feedsDir,
		cache:    make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.feedsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.feedsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		feedName := fileName[:len(fileName)-4]

		config, err := cc.LoadConfig(feedName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "feed", feedName, "enabled", config.Settings.Enabled, "sync_interval", config.Settings.SyncInterval)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(feedName string) (*Config, error) {
	configFile := cc.getConfigFilePath(feedName)
	feedConfig, err := cc.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	feedConfig.Name = feedName

	if err := cc.validateConfig(feedConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[feedConfig.Name] = feedConfig

	return feedConfig, nil
}

func (cc *ConfigCache) GetConfig(feedName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	feedConfig, ok := cc.cache[feedName]
	if !ok {
		return nil, fmt.Errorf("feed config with name '%s' not found", feedName)
	}
	return feedConfig, nil
}

func (cc *ConfigCache) GetConfigs() map[string]*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(cc.cache))
	for k, v := range cc.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

// GetEnabledConfigs returns enabled feeds ordered by name.
func (cc *ConfigCache) GetEnabledConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	enabledConfigs := make([]*Config, 0, len(cc.cache))
	for _, v := range cc.cache {
		if v.Settings.Enabled {
			enabledConfigs = append(enabledConfigs, v)
		}
	}
	sort.Slice(enabledConfigs, func(i, j int) bool {
		return enabledConfigs[i].Name < enabledConfigs[j].Name
	})
	return enabledConfigs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var feedConfig Config
	if err := yaml.Unmarshal(data, &feedConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if feedConfig.Settings.SyncInterval == 0 {
		feedConfig.Settings.SyncInterval = DefaultSyncInterval
	}
	if feedConfig.Settings.Timeout == 0 {
		feedConfig.Settings.Timeout = DefaultTimeout
	}
	if feedConfig.Settings.ItemDelayMs == 0 {
		feedConfig.Settings.ItemDelayMs = DefaultItemDelayMs
	}
	if len(feedConfig.Settings.Tags) == 0 {
		feedConfig.Settings.Tags = append([]string(nil), DefaultTags...)
	}

	return &feedConfig, nil
}

func (cc *ConfigCache) validateConfig(feedConfig *Config) error {
	if feedConfig == nil {
		return fmt.Errorf("feedConfig is nil")
	}

	requiredFeedFields := map[string]string{
		"feed name": feedConfig.Name,
		"feed URL":  feedConfig.URL,
	}

	for fieldName, fieldValue := range requiredFeedFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	parsed, err := url.Parse(feedConfig.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("feed URL must be an absolute http(s) URL: %s", feedConfig.URL)
	}

	nonNegativeFields := map[string]int{
		"sync interval": feedConfig.Settings.SyncInterval,
		"timeout":       feedConfig.Settings.Timeout,
		"item delay":    feedConfig.Settings.ItemDelayMs,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, tag := range feedConfig.Settings.Tags {
		if tag == "" {
			return fmt.Errorf("tag at index %d must not be empty", i)
		}
	}

	for i, filter := range feedConfig.Filters {
		if !isFilterField(filter.Field) {
			return fmt.Errorf("filter at index %d has unsupported field '%s'", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have includes or excludes", i)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(feedName string) string {
	return filepath.Join(cc.feedsDir, feedName+".yml")
}
