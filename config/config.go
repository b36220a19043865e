package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Session SessionConfig `yaml:"session"`
	Search  SearchConfig  `yaml:"search"`
	Payment PaymentConfig `yaml:"payment"`
	Notify  NotifyConfig  `yaml:"notify"`
	Keyring KeyringConfig `yaml:"keyring"`
}

type BrowserConfig struct {
	Headless     bool   `yaml:"headless"`
	NavTimeoutMS int    `yaml:"nav_timeout_ms"`
	Locale       string `yaml:"locale"`
}

func (b BrowserConfig) NavTimeout() time.Duration {
	return time.Duration(b.NavTimeoutMS) * time.Millisecond
}

type SessionConfig struct {
	DataDir            string `yaml:"data_dir"`
	LoginTimeoutSec    int    `yaml:"login_timeout_seconds"`
	ProbeStableChecks  int    `yaml:"probe_stable_checks"`
	ProbeIntervalMS    int    `yaml:"probe_interval_ms"`
	LoginPollIntervalS int    `yaml:"login_poll_interval_seconds"`
}

func (s SessionConfig) LoginTimeout() time.Duration {
	return time.Duration(s.LoginTimeoutSec) * time.Second
}

func (s SessionConfig) ProbeInterval() time.Duration {
	return time.Duration(s.ProbeIntervalMS) * time.Millisecond
}

func (s SessionConfig) LoginPollInterval() time.Duration {
	return time.Duration(s.LoginPollIntervalS) * time.Second
}

type SearchConfig struct {
	PollIntervalMS       int `yaml:"poll_interval_ms"`
	MaxConsecutiveErrors int `yaml:"max_consecutive_errors"`
}

func (s SearchConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMS) * time.Millisecond
}

type PaymentConfig struct {
	InstallmentMonths int  `yaml:"installment_months"`
	SmartTicket       bool `yaml:"smart_ticket"`
}

type NotifyConfig struct {
	SendTimeoutSec int `yaml:"send_timeout_seconds"`
}

func (n NotifyConfig) SendTimeout() time.Duration {
	return time.Duration(n.SendTimeoutSec) * time.Second
}

type KeyringConfig struct {
	CardService     string `yaml:"card_service"`
	TelegramService string `yaml:"telegram_service"`
}

// Default returns a working configuration: headless polling every 1.2s,
// a five minute manual-login window, session data under ~/.ktxgo.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Browser: BrowserConfig{
			Headless:     true,
			NavTimeoutMS: 30_000,
			Locale:       "ko-KR",
		},
		Session: SessionConfig{
			DataDir:            filepath.Join(home, ".ktxgo"),
			LoginTimeoutSec:    300,
			ProbeStableChecks:  2,
			ProbeIntervalMS:    350,
			LoginPollIntervalS: 1,
		},
		Search: SearchConfig{
			PollIntervalMS:       1200,
			MaxConsecutiveErrors: 5,
		},
		Payment: PaymentConfig{
			InstallmentMonths: 0,
			SmartTicket:       true,
		},
		Notify: NotifyConfig{
			SendTimeoutSec: 10,
		},
		Keyring: KeyringConfig{
			CardService:     "KTX",
			TelegramService: "telegram",
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
