// Package config loads the rehearsal settings. Values come from defaults, then
// an optional YAML file, then REHEARSE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/happycapy/rehearsal/scheduler"
	"github.com/happycapy/rehearsal/scoring"
)

type App struct {
	Name      string `mapstructure:"name"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

type Chat struct {
	// Backend is "http" for the hosted chat routes or "gemini" to call the
	// model directly.
	Backend string        `mapstructure:"backend"`
	URL     string        `mapstructure:"url"`
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Speech struct {
	Locale         string        `mapstructure:"locale"`
	ASRURL         string        `mapstructure:"asr_url"`
	Microphone     bool          `mapstructure:"microphone"`
	WordsPerMinute float64       `mapstructure:"words_per_minute"`
	VoiceDelay     time.Duration `mapstructure:"voice_delay"`
}

type Session struct {
	Scenario string `mapstructure:"scenario"`
	// Seed fixes every random choice of a session; zero picks a fresh one.
	Seed uint64 `mapstructure:"seed"`
}

type Paths struct {
	Scenarios string `mapstructure:"scenarios"`
	Outputs   string `mapstructure:"outputs"`
}

type Root struct {
	App       App              `mapstructure:"app"`
	Chat      Chat             `mapstructure:"chat"`
	Speech    Speech           `mapstructure:"speech"`
	Scheduler scheduler.Config `mapstructure:"scheduler"`
	Scoring   scoring.Lexicon  `mapstructure:"scoring"`
	Session   Session          `mapstructure:"session"`
	Paths     Paths            `mapstructure:"paths"`
}

func setDefaults(v *viper.Viper) {
	lex := scoring.DefaultLexicon()
	sched := scheduler.DefaultConfig()

	v.SetDefault("app.name", "rehearse")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "text")
	v.SetDefault("chat.backend", "http")
	v.SetDefault("chat.url", "http://localhost:3000")
	v.SetDefault("chat.model", "gemini-2.5-flash")
	v.SetDefault("chat.api_key", "")
	v.SetDefault("chat.timeout", 30*time.Second)
	v.SetDefault("speech.locale", "en-US")
	v.SetDefault("speech.asr_url", "")
	v.SetDefault("speech.microphone", true)
	v.SetDefault("speech.words_per_minute", 170.0)
	v.SetDefault("speech.voice_delay", 0)
	v.SetDefault("scheduler.min_delay", sched.MinDelay)
	v.SetDefault("scheduler.max_delay", sched.MaxDelay)
	v.SetDefault("scheduler.skip_probability", sched.SkipProbability)
	v.SetDefault("scoring.fillers", lex.Fillers)
	v.SetDefault("scoring.anxiety", lex.Anxiety)
	v.SetDefault("scoring.positive", lex.Positive)
	v.SetDefault("session.scenario", "personal-assistant")
	v.SetDefault("session.seed", 0)
	v.SetDefault("paths.scenarios", "")
	v.SetDefault("paths.outputs", "outputs")
}

// Load reads path when given. Otherwise it looks for config.yaml under
// config/<CONFIG_ENV> (default "dev") and then the working directory; a missing
// file is not an error. A .env file in the working directory is loaded into the
// environment first without overriding variables that are already set.
func Load(path string) (*Root, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REHEARSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("chat.api_key", "REHEARSE_CHAT_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	} else {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join("config", env))
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Root) Validate() error {
	switch c.Chat.Backend {
	case "http":
		if c.Chat.URL == "" {
			return errors.New("config: chat.url is required for the http backend")
		}
	case "gemini":
		if c.Chat.APIKey == "" {
			return errors.New("config: chat.api_key (or GEMINI_API_KEY) is required for the gemini backend")
		}
	default:
		return fmt.Errorf("config: unknown chat.backend %q", c.Chat.Backend)
	}
	if c.Scheduler.MaxDelay < c.Scheduler.MinDelay {
		return errors.New("config: scheduler.max_delay is below scheduler.min_delay")
	}
	if p := c.Scheduler.SkipProbability; p < 0 || p >= 1 {
		return fmt.Errorf("config: scheduler.skip_probability %v is outside [0, 1)", p)
	}
	return nil
}
