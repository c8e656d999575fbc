package main

import (
	"flag"
	"fmt"
	"net/url"

	"github.com/pevans/newsmon"
	"github.com/pevans/newsmon/config"
	"github.com/pevans/newsmon/discovery"
	"github.com/pevans/newsmon/newsfeed"
	"github.com/pevans/newsmon/pubdate"
)

// loadConfig reads the config file (path, or ~/.newsmon/config.yaml when
// empty) and applies NEWSMON_* environment overrides. A missing file yields
// the defaults.
func loadConfig(path string) (*config.FileConfig, error) {
	var (
		cfg *config.FileConfig
		err error
	)
	if path != "" {
		cfg, err = config.LoadConfigFileFrom(path)
	} else {
		cfg, err = config.LoadConfigFile()
	}
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides cfg from the environment.
func applyEnv(cfg *config.FileConfig) {
	cfg.Query = getEnv("NEWSMON_QUERY", cfg.Query)
	cfg.Timezone = getEnv("NEWSMON_TIMEZONE", cfg.Timezone)
	cfg.RefreshInterval = getEnvDuration("NEWSMON_REFRESH_INTERVAL", cfg.RefreshInterval)
	cfg.Enrich = getEnvBool("NEWSMON_ENRICH", cfg.Enrich)
	cfg.MaxRecords = getEnvInt("NEWSMON_MAX_RECORDS", cfg.MaxRecords)
	cfg.Listen = getEnv("NEWSMON_LISTEN", cfg.Listen)
	cfg.Source.Type = getEnv("NEWSMON_SOURCE_TYPE", cfg.Source.Type)
	cfg.Source.URL = getEnv("NEWSMON_SOURCE_URL", cfg.Source.URL)
	cfg.Source.APIKey = getEnv("NEWSMON_API_KEY", cfg.Source.APIKey)
	cfg.Source.EngineID = getEnv("NEWSMON_ENGINE_ID", cfg.Source.EngineID)
	cfg.Storage.Settings.DSN = getEnv("NEWSMON_SETTINGS_DSN", cfg.Storage.Settings.DSN)
}

// sourceFlags are the flags shared by every subcommand that builds a source.
type sourceFlags struct {
	configPath *string
	query      *string
	sourceType *string
	sourceURL  *string
	timezone   *string
	enrich     *bool
}

func addSourceFlags(fs *flag.FlagSet) *sourceFlags {
	return &sourceFlags{
		configPath: fs.String("config", "", "Path to config file (default: ~/.newsmon/config.yaml)"),
		query:      fs.String("query", "", "Search term to monitor (NEWSMON_QUERY)"),
		sourceType: fs.String("source", "", "Source type: search or rss (NEWSMON_SOURCE_TYPE)"),
		sourceURL:  fs.String("url", "", "Feed URL for the rss source (NEWSMON_SOURCE_URL)"),
		timezone:   fs.String("timezone", "", "Display time zone (NEWSMON_TIMEZONE)"),
		enrich:     fs.Bool("enrich", false, "Scrape article pages for publication dates (NEWSMON_ENRICH)"),
	}
}

// resolve loads the config and applies flags that were set explicitly.
func (f *sourceFlags) resolve(fs *flag.FlagSet) (*config.FileConfig, error) {
	cfg, err := loadConfig(*f.configPath)
	if err != nil {
		return nil, err
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "query":
			cfg.Query = *f.query
		case "source":
			cfg.Source.Type = *f.sourceType
		case "url":
			cfg.Source.URL = *f.sourceURL
		case "timezone":
			cfg.Timezone = *f.timezone
		case "enrich":
			cfg.Enrich = *f.enrich
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// components is everything one ingest pass needs.
type components struct {
	store      *newsfeed.HistoryStore
	aggregator *newsmon.Aggregator
	source     newsmon.Source
}

func buildComponents(cfg *config.FileConfig) (*components, error) {
	loc, err := pubdate.LoadZone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	source, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}

	store := newsfeed.NewHistoryStore(cfg.MaxRecords)
	resolver := discovery.NewPageResolver(nil, loc, discovery.DefaultFetchTimeout)
	aggregator := newsmon.NewAggregator(store, pubdate.NewNormalizer(loc), resolver, cfg.Enrich)

	return &components{
		store:      store,
		aggregator: aggregator,
		source:     source,
	}, nil
}

func buildSource(cfg *config.FileConfig) (newsmon.Source, error) {
	switch cfg.Source.Type {
	case config.SourceRSS:
		u, err := url.Parse(cfg.Source.URL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid feed URL: %s", cfg.Source.URL)
		}
		return newsmon.NewFeedSource(cfg.Source.URL, ""), nil
	case config.SourceSearch:
		if cfg.Source.APIKey == "" || cfg.Source.EngineID == "" {
			return nil, fmt.Errorf("%w (set source.api_key/source.engine_id or NEWSMON_API_KEY/NEWSMON_ENGINE_ID)",
				newsmon.ErrMissingCredentials)
		}
		return newsmon.NewSearchSource(nil, newsmon.SearchConfig{
			APIKey:   cfg.Source.APIKey,
			EngineID: cfg.Source.EngineID,
			Query:    cfg.Query,
			Results:  cfg.Source.Results,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Source.Type)
	}
}
