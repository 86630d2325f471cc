// Package config assembles the tool's settings from built-in defaults, an
// optional YAML file and environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"time"

	"classbook"
	"classbook/browser"
	"classbook/schedule"
)

// Config is the full configuration tree. Load fills it; the Build methods
// convert the blocks into the runtime types.
type Config struct {
	Target      TargetConfig      `yaml:"target"`
	Browser     BrowserConfig     `yaml:"browser"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Flow        FlowConfig        `yaml:"flow"`
	Notify      NotifyConfig      `yaml:"notify"`
	History     HistoryConfig     `yaml:"history"`
	Artifacts   ArtifactsConfig   `yaml:"artifacts"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// TargetConfig names the class to book.
type TargetConfig struct {
	Location  string `yaml:"location"`
	Class     string `yaml:"class"`
	Time      string `yaml:"time"`
	DaysAhead int    `yaml:"days_ahead"`
}

// BrowserConfig tunes the browser session.
type BrowserConfig struct {
	Headless         bool   `yaml:"headless"`
	SlowMoMS         int    `yaml:"slow_mo_ms"`
	ViewportWidth    int    `yaml:"viewport_width"`
	ViewportHeight   int    `yaml:"viewport_height"`
	ExecPath         string `yaml:"exec_path"`
	RemoteURL        string `yaml:"remote_url"`
	NavTimeoutSec    int    `yaml:"nav_timeout_sec"`
	ActionTimeoutSec int    `yaml:"action_timeout_sec"`
}

// CredentialsConfig names the environment variables holding the account
// credentials. The secrets themselves never appear in the file.
type CredentialsConfig struct {
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"`
}

// NotifyConfig holds the optional notification channels.
type NotifyConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	SMTP     SMTPConfig     `yaml:"smtp"`
}

// TelegramConfig enables the Telegram notifier when both fields are set.
type TelegramConfig struct {
	TokenEnv string `yaml:"token_env"`
	ChatID   int64  `yaml:"chat_id"`
}

// SMTPConfig enables the mail notifier when a host is set. UserEnv and
// PasswordEnv name environment variables; both empty means no auth.
type SMTPConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	From        string   `yaml:"from"`
	To          []string `yaml:"to"`
	UserEnv     string   `yaml:"user_env"`
	PasswordEnv string   `yaml:"password_env"`
}

// HistoryConfig points the run journal at a sqlite file. Empty disables
// journaling.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// ArtifactsConfig receives failure screenshots. Empty disables them.
type ArtifactsConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig shapes the process logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// FlowConfig overrides parts of the default site flow. Zero values keep the
// default, so a file only needs the selectors that actually changed.
type FlowConfig struct {
	BaseURL            string   `yaml:"base_url"`
	ConfirmationMarker string   `yaml:"confirmation_marker"`
	Popups             []string `yaml:"popups"`

	Login    LoginFlowConfig    `yaml:"login"`
	Schedule ScheduleFlowConfig `yaml:"schedule"`
}

type LoginFlowConfig struct {
	AccountMenu    string `yaml:"account_menu"`
	SignIn         string `yaml:"sign_in"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Submit         string `yaml:"submit"`
	LoggedInMarker string `yaml:"logged_in_marker"`
}

type ScheduleFlowConfig struct {
	Open           string `yaml:"open"`
	LocationFilter string `yaml:"location_filter"`
	DayButton      string `yaml:"day_button"`
	CardFragment   string `yaml:"card_fragment"`
	TimeFragment   string `yaml:"time_fragment"`
	NameFragment   string `yaml:"name_fragment"`
	ReserveLabel   string `yaml:"reserve_label"`
	BookedLabel    string `yaml:"booked_label"`
	ScrollPasses   int    `yaml:"scroll_passes"`
	ScrollStep     int    `yaml:"scroll_step"`
	ScrollPauseMS  int    `yaml:"scroll_pause_ms"`
}

// DefaultConfig matches the class the tool was originally written to book.
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			Location:  "Flatiron",
			Class:     "Yoga Sculpt",
			Time:      "6:15 pm",
			DaysAhead: 13,
		},
		Browser: BrowserConfig{
			Headless:       true,
			SlowMoMS:       150,
			ViewportWidth:  1280,
			ViewportHeight: 800,
		},
		Credentials: CredentialsConfig{
			UsernameEnv: "CLASSBOOK_EMAIL",
			PasswordEnv: "CLASSBOOK_PASSWORD",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate rejects configurations that would only fail mid-run.
func (c *Config) Validate() error {
	if c.Target.Class == "" {
		return errors.New("target.class must be set")
	}
	if c.Target.Time == "" {
		return errors.New("target.time must be set")
	}
	if !validClockTime(c.Target.Time) {
		return fmt.Errorf("target.time %q is not a clock time", c.Target.Time)
	}
	if c.Target.DaysAhead < 0 {
		return errors.New("target.days_ahead cannot be negative")
	}

	if c.Credentials.UsernameEnv == "" || c.Credentials.PasswordEnv == "" {
		return errors.New("credentials.username_env and credentials.password_env must be set")
	}

	tg := c.Notify.Telegram
	if tg.ChatID != 0 && tg.TokenEnv == "" {
		return errors.New("notify.telegram.token_env is required when chat_id is set")
	}
	if tg.TokenEnv != "" && tg.ChatID == 0 {
		return errors.New("notify.telegram.chat_id is required when token_env is set")
	}

	smtp := c.Notify.SMTP
	if smtp.Host == "" && (smtp.From != "" || len(smtp.To) > 0) {
		return errors.New("notify.smtp.host is required when smtp is configured")
	}
	if smtp.Host != "" {
		if smtp.From == "" {
			return errors.New("notify.smtp.from is required")
		}
		if len(smtp.To) == 0 {
			return errors.New("notify.smtp.to must list at least one recipient")
		}
	}

	return nil
}

// validClockTime accepts the 12- and 24-hour shapes the schedule shows.
func validClockTime(s string) bool {
	s = schedule.NormalizeTime(s)
	for _, layout := range []string{"3:04 pm", "3:04pm", "15:04", "3 pm", "3pm"} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// BuildTarget converts the target block into the runner's target.
func (c *Config) BuildTarget() classbook.Target {
	return classbook.Target{
		Location:  c.Target.Location,
		Class:     c.Target.Class,
		Time:      c.Target.Time,
		DaysAhead: c.Target.DaysAhead,
	}
}

// BuildBrowser converts the browser block into session launch options.
// CI lockdown is applied last, so it wins over the file and the flags.
func (c *Config) BuildBrowser() browser.Options {
	opts := browser.DefaultOptions()
	b := c.Browser

	opts.Headless = b.Headless
	opts.SlowMo = time.Duration(b.SlowMoMS) * time.Millisecond
	if b.ViewportWidth > 0 {
		opts.ViewportWidth = b.ViewportWidth
	}
	if b.ViewportHeight > 0 {
		opts.ViewportHeight = b.ViewportHeight
	}
	if b.ExecPath != "" {
		opts.ExecPath = b.ExecPath
	}
	if b.RemoteURL != "" {
		opts.RemoteURL = b.RemoteURL
	}
	if b.NavTimeoutSec > 0 {
		opts.NavigateTimeout = time.Duration(b.NavTimeoutSec) * time.Second
	}
	if b.ActionTimeoutSec > 0 {
		opts.ActionTimeout = time.Duration(b.ActionTimeoutSec) * time.Second
	}
	opts.ApplyCI()
	return opts
}

// BuildFlow starts from the default site flow and applies the overrides
// present in the file.
func (c *Config) BuildFlow() classbook.Flow {
	f := classbook.DefaultFlow()
	o := c.Flow

	setString(&f.BaseURL, o.BaseURL)
	setString(&f.ConfirmationMarker, o.ConfirmationMarker)
	if len(o.Popups) > 0 {
		f.Popups = o.Popups
	}

	setString(&f.Login.AccountMenu, o.Login.AccountMenu)
	setString(&f.Login.SignIn, o.Login.SignIn)
	setString(&f.Login.Username, o.Login.Username)
	setString(&f.Login.Password, o.Login.Password)
	setString(&f.Login.Submit, o.Login.Submit)
	setString(&f.Login.LoggedInMarker, o.Login.LoggedInMarker)

	setString(&f.Schedule.Open, o.Schedule.Open)
	setString(&f.Schedule.LocationFilter, o.Schedule.LocationFilter)
	setString(&f.Schedule.DayButton, o.Schedule.DayButton)
	setString(&f.Schedule.CardFragment, o.Schedule.CardFragment)
	setString(&f.Schedule.TimeFragment, o.Schedule.TimeFragment)
	setString(&f.Schedule.NameFragment, o.Schedule.NameFragment)
	setString(&f.Schedule.ReserveLabel, o.Schedule.ReserveLabel)
	setString(&f.Schedule.BookedLabel, o.Schedule.BookedLabel)
	setInt(&f.Schedule.ScrollPasses, o.Schedule.ScrollPasses)
	setInt(&f.Schedule.ScrollStep, o.Schedule.ScrollStep)
	if o.Schedule.ScrollPauseMS > 0 {
		f.Schedule.ScrollPause = time.Duration(o.Schedule.ScrollPauseMS) * time.Millisecond
	}

	return f
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}
