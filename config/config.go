package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/xeptore/xmlydl/redact"
)

const (
	DefaultFilename  = "config.yaml"
	CookieEnvVarName = "XIMALAYA_COOKIE"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/111.0.0.0 Safari/537.36 Edg/111.0.1660.14"
)

type Config struct {
	Log      Log      `yaml:"log"`
	Ximalaya Ximalaya `yaml:"ximalaya"`
}

func (c *Config) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Dict("log", c.Log.ToDict()).
		Dict("ximalaya", c.Ximalaya.ToDict())
}

func (c *Config) setDefaults() {
	c.Log.setDefaults()
	c.Ximalaya.setDefaults()
}

func (c *Config) validate() error {
	if err := c.Log.validate(); nil != err {
		return fmt.Errorf("log config validation failed: %v", err)
	}

	if err := c.Ximalaya.validate(); nil != err {
		return fmt.Errorf("ximalaya config validation failed: %v", err)
	}

	return nil
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Log) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("level", c.Level).
		Str("format", c.Format)
}

func (c *Log) setDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}

	if c.Format == "" {
		c.Format = "pretty"
	}
}

func (c *Log) validate() error {
	if !slices.Contains([]string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}, c.Level) {
		return fmt.Errorf(
			"level must be one of: trace, debug, info, warn, error, fatal, panic, got: %s",
			c.Level,
		)
	}

	if !slices.Contains([]string{"json", "pretty"}, c.Format) {
		return fmt.Errorf("format must be 'json' or 'pretty', got: %s", c.Format)
	}

	return nil
}

type Ximalaya struct {
	Account    string     `yaml:"account"`
	CredsDir   string     `yaml:"creds_dir"`
	BaseURL    string     `yaml:"base_url"`
	UserAgent  string     `yaml:"user_agent"`
	Cookie     string     `yaml:"-"`
	Downloader Downloader `yaml:"downloader"`
}

func (c *Ximalaya) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("account", c.Account).
		Str("creds_dir", c.CredsDir).
		Str("base_url", c.BaseURL).
		Str("user_agent", c.UserAgent).
		Str("cookie", lo.Ternary(c.Cookie == "", "", redact.String(c.Cookie))).
		Dict("downloader", c.Downloader.ToDict())
}

func (c *Ximalaya) setDefaults() {
	if c.Account == "" {
		c.Account = "vip"
	}

	if c.CredsDir == "" {
		c.CredsDir = "./creds"
	}

	if c.BaseURL == "" {
		c.BaseURL = "https://www.ximalaya.com"
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	c.Downloader.setDefaults()
}

func (c *Ximalaya) validate() error {
	if u, err := url.Parse(c.BaseURL); nil != err {
		return fmt.Errorf("base_url is not a valid URL: %v", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be an http(s) URL, got: %s", c.BaseURL)
	}

	if i, err := os.Stat(c.CredsDir); nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat creds_dir: %v", err)
		}
	} else if !i.IsDir() {
		return errors.New("creds_dir must be a directory")
	}

	if err := c.Downloader.validate(); nil != err {
		return fmt.Errorf("downloader config validation failed: %v", err)
	}

	return nil
}

type Downloader struct {
	Dir               string   `yaml:"dir"`
	Quality           string   `yaml:"quality"`
	Numbered          *bool    `yaml:"numbered"`
	Concurrency       int      `yaml:"concurrency"`
	RequestsPerSecond int      `yaml:"requests_per_second"`
	Attempts          int      `yaml:"attempts"`
	Generations       *int     `yaml:"generations"`
	RetryDelay        Duration `yaml:"retry_delay"`
	Timeouts          Timeouts `yaml:"timeouts"`
}

func (c *Downloader) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("dir", c.Dir).
		Str("quality", c.Quality).
		Bool("numbered", *c.Numbered).
		Int("concurrency", c.Concurrency).
		Int("requests_per_second", c.RequestsPerSecond).
		Int("attempts", c.Attempts).
		Int("generations", *c.Generations).
		Str("retry_delay", c.RetryDelay.String()).
		Dict("timeouts", c.Timeouts.ToDict())
}

func (c *Downloader) setDefaults() {
	if c.Dir == "" {
		c.Dir = "./downloads"
	}

	if c.Quality == "" {
		c.Quality = "high"
	}

	if c.Numbered == nil {
		c.Numbered = lo.ToPtr(true)
	}

	if c.Concurrency == 0 {
		c.Concurrency = 16
	}

	if c.Attempts == 0 {
		c.Attempts = 3
	}

	if c.Generations == nil {
		c.Generations = lo.ToPtr(2)
	}

	if c.RetryDelay.Duration == 0 {
		c.RetryDelay.Duration = 1 * time.Second
	}

	c.Timeouts.setDefaults()
}

func (c *Downloader) validate() error {
	if !slices.Contains([]string{"low", "medium", "high"}, c.Quality) {
		return fmt.Errorf("quality must be one of: low, medium, high, got: %s", c.Quality)
	}

	if c.Concurrency < 0 {
		return errors.New("concurrency must be greater than 0")
	}

	if c.RequestsPerSecond < 0 {
		return errors.New("requests_per_second must not be negative")
	}

	if c.Attempts < 0 {
		return errors.New("attempts must be greater than 0")
	}

	if *c.Generations < 0 {
		return errors.New("generations must not be negative")
	}

	if c.RetryDelay.Duration < 0 {
		return errors.New("retry_delay must be greater than 0")
	}

	if err := c.Timeouts.validate(); nil != err {
		return fmt.Errorf("timeouts config validation failed: %v", err)
	}

	return nil
}

type Timeouts struct {
	GetUserInfo    int `yaml:"get_user_info"`
	GetAlbumInfo   int `yaml:"get_album_info"`
	GetAlbumTracks int `yaml:"get_album_tracks"`
	GetTrackInfo   int `yaml:"get_track_info"`
	DownloadTrack  int `yaml:"download_track"`
}

func (c *Timeouts) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Int("get_user_info", c.GetUserInfo).
		Int("get_album_info", c.GetAlbumInfo).
		Int("get_album_tracks", c.GetAlbumTracks).
		Int("get_track_info", c.GetTrackInfo).
		Int("download_track", c.DownloadTrack)
}

func (c *Timeouts) setDefaults() {
	if c.GetUserInfo == 0 {
		c.GetUserInfo = 15
	}

	if c.GetAlbumInfo == 0 {
		c.GetAlbumInfo = 15
	}

	if c.GetAlbumTracks == 0 {
		c.GetAlbumTracks = 30
	}

	if c.GetTrackInfo == 0 {
		c.GetTrackInfo = 60
	}

	if c.DownloadTrack == 0 {
		c.DownloadTrack = 120
	}
}

func (c *Timeouts) validate() error {
	if c.GetUserInfo < 0 {
		return errors.New("get_user_info must be greater than 0")
	}

	if c.GetAlbumInfo < 0 {
		return errors.New("get_album_info must be greater than 0")
	}

	if c.GetAlbumTracks < 0 {
		return errors.New("get_album_tracks must be greater than 0")
	}

	if c.GetTrackInfo < 0 {
		return errors.New("get_track_info must be greater than 0")
	}

	if c.DownloadTrack < 0 {
		return errors.New("download_track must be greater than 0")
	}

	return nil
}

func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	d.Duration = parsed

	return nil
}

// Load reads filename, or config.yaml when empty. A missing default file is
// not an error and yields the default configuration.
func Load(filename string) (*Config, error) {
	var conf Config

	data, err := os.ReadFile(lo.Ternary(len(filename) > 0, filename, DefaultFilename))
	if nil != err {
		if len(filename) > 0 || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %v", filename, err)
		}
	} else if err := yaml.Unmarshal(data, &conf); nil != err {
		return nil, fmt.Errorf("failed to parse config file %s: %v", filename, err)
	}

	conf.Ximalaya.Cookie = os.Getenv(CookieEnvVarName)
	conf.setDefaults()

	if err := conf.validate(); nil != err {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	return &conf, nil
}
