package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SiteConfig carries presentation settings for the HTML pages.
type SiteConfig struct {
	Title                   string `mapstructure:"title"`
	Tagline                 string `mapstructure:"tagline"`
	DashboardRefreshSeconds int    `mapstructure:"dashboardRefreshSeconds"`
}

func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		Title:                   "Noise Survey",
		Tagline:                 "Measure and report the noise around you",
		DashboardRefreshSeconds: 30,
	}
}

type SiteConfigHolder struct {
	current atomic.Value // holds SiteConfig
}

// NewStaticSiteConfigHolder returns a holder that never reloads.
func NewStaticSiteConfigHolder(cfg SiteConfig) *SiteConfigHolder {
	holder := &SiteConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewSiteConfigHolder(cfg Config) (*SiteConfigHolder, error) {
	return LoadSiteConfig(cfg.SiteConfigPath)
}

// LoadSiteConfig reads site.yml from dir and watches it for changes.
// A missing file falls back to DefaultSiteConfig.
func LoadSiteConfig(dir string) (*SiteConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("site")
	v.SetConfigType("yml")
	if strings.TrimSpace(dir) != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath("/etc/noisesurvey")

	v.SetEnvPrefix("NOISESURVEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSiteConfig()
	v.SetDefault("site.title", defaults.Title)
	v.SetDefault("site.tagline", defaults.Tagline)
	v.SetDefault("site.dashboardRefreshSeconds", defaults.DashboardRefreshSeconds)

	found := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		found = false
	}

	var cfg SiteConfig
	if err := v.UnmarshalKey("site", &cfg); err != nil {
		return nil, err
	}
	if err := validateSiteConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticSiteConfigHolder(cfg)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SiteConfig
		if err := v.UnmarshalKey("site", &updated); err != nil {
			log.Printf("[site-config] reload failed: %v", err)
			return
		}
		if err := validateSiteConfig(updated); err != nil {
			log.Printf("[site-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[site-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *SiteConfigHolder) Get() SiteConfig {
	return h.current.Load().(SiteConfig)
}

func validateSiteConfig(cfg SiteConfig) error {
	if strings.TrimSpace(cfg.Title) == "" {
		return errors.New("site.title cannot be empty")
	}
	if cfg.DashboardRefreshSeconds <= 0 {
		return errors.New("site.dashboardRefreshSeconds must be positive")
	}
	return nil
}
