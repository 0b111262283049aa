package config

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for our program, parsed from various sources
// The `mapstructure` tags are used to map the fields to the viper configuration
type Config struct {
	Job     string `mapstructure:"job"`
	JobPath string

	// Session / browser
	SessionStatePath string `mapstructure:"session-state-path"`
	UserDataDir      string `mapstructure:"user-data-dir"`
	Headless         bool   `mapstructure:"headless"`
	UserAgent        string `mapstructure:"user-agent"`
	PlatformBaseURL  string `mapstructure:"platform-base-url"`

	// Keywords & rotation
	Keywords         []string `mapstructure:"keyword"`
	KeywordBatchSize int      `mapstructure:"keyword-batch-size"`
	ExploreCount     int      `mapstructure:"explore-count"`
	ExploreStaleness int      `mapstructure:"explore-staleness"`
	YieldWindow      int      `mapstructure:"yield-window"`

	// Quota
	DailyQuota int `mapstructure:"daily-quota"`

	// Qualification
	LexiconFile      string   `mapstructure:"lexicon-file"`
	DomainThreshold  float64  `mapstructure:"domain-threshold"`
	IntentThreshold  float64  `mapstructure:"intent-threshold"`
	LanguageRatio    float64  `mapstructure:"language-ratio"`
	ExcludeContracts []string `mapstructure:"exclude-contract"`

	// Pacing
	SafetyFactor      float64       `mapstructure:"safety-factor"`
	NavDelayMin       time.Duration `mapstructure:"nav-delay-min"`
	NavDelayMax       time.Duration `mapstructure:"nav-delay-max"`
	ScrollDelayMin    time.Duration `mapstructure:"scroll-delay-min"`
	ScrollDelayMax    time.Duration `mapstructure:"scroll-delay-max"`
	BreakAfterActions int           `mapstructure:"break-after-actions"`
	BreakMin          time.Duration `mapstructure:"break-min"`
	BreakMax          time.Duration `mapstructure:"break-max"`
	ActiveHoursStart  int           `mapstructure:"active-hours-start"`
	ActiveHoursEnd    int           `mapstructure:"active-hours-end"`
	ActiveHoursZone   string        `mapstructure:"active-hours-zone"`

	// Scheduling
	IntervalFloor   time.Duration `mapstructure:"interval-floor"`
	IntervalCeiling time.Duration `mapstructure:"interval-ceiling"`
	IntervalShrink  float64       `mapstructure:"interval-shrink"`
	IntervalGrow    float64       `mapstructure:"interval-grow"`
	YieldTarget     int           `mapstructure:"yield-target"`

	// Risk governance
	StartMode            string        `mapstructure:"start-mode"`
	AuthSuspectThreshold int           `mapstructure:"auth-suspect-threshold"`
	EmptyResultThreshold int           `mapstructure:"empty-result-threshold"`
	CooldownMin          time.Duration `mapstructure:"cooldown-min"`
	CooldownMax          time.Duration `mapstructure:"cooldown-max"`
	PromotionStreak      int           `mapstructure:"promotion-streak"`

	// Dedup
	DedupCacheSize int           `mapstructure:"dedup-cache-size"`
	DedupRetention time.Duration `mapstructure:"dedup-retention"`

	// Fetching
	FetchTimeout    time.Duration `mapstructure:"fetch-timeout"`
	PersistTimeout  time.Duration `mapstructure:"persist-timeout"`
	MaxFetchRetries int           `mapstructure:"max-fetch-retries"`
	EmptyFetchLimit int           `mapstructure:"empty-fetch-limit"`

	// Supervision & watchers
	RestartCooldown  time.Duration `mapstructure:"restart-cooldown"`
	MaxRestarts      int           `mapstructure:"max-restarts"`
	MinSpaceRequired int           `mapstructure:"min-space-required"`

	// Alerts
	TelegramToken  string `mapstructure:"telegram-token"`
	TelegramChatID int64  `mapstructure:"telegram-chat-id"`
	AlertQueueSize int    `mapstructure:"alert-queue-size"`

	// Logging
	NoStdoutLogging  bool   `mapstructure:"no-stdout-log"`
	NoStderrLogging  bool   `mapstructure:"no-stderr-log"`
	NoFileLogging    bool   `mapstructure:"no-log-file"`
	StdoutLogLevel   string `mapstructure:"log-level"`
	LogFileLevel     string `mapstructure:"log-file-level"`
	LogFileOutputDir string `mapstructure:"log-file-output-dir"`
	LogFilePrefix    string `mapstructure:"log-file-prefix"`
	LogFileRotation  string `mapstructure:"log-file-rotation"`

	// API
	APIPort int  `mapstructure:"api-port"`
	API     bool `mapstructure:"api"`

	// Prometheus and metrics
	Prometheus       bool   `mapstructure:"prometheus"`
	PrometheusPrefix string `mapstructure:"prometheus-prefix"`

	// StartPaused makes the agent come up paused, waiting for an operator resume
	StartPaused bool `mapstructure:"start-paused"`
}

var (
	config *Config
	once   sync.Once
)

// InitConfig initializes the configuration
// Flags -> Env -> Config file
// Latest has precedence over the rest
func InitConfig() error {
	var err error
	once.Do(func() {
		config = &Config{}

		// A .env next to the binary is a convenience for secrets
		// (telegram token, session path), not a requirement
		godotenv.Load()

		// Check if a config file is provided via flag
		if configFile := viper.GetString("config-file"); configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				fmt.Println(err)
				os.Exit(1)
			}

			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName("affut-config")
		}

		viper.SetEnvPrefix("AFFUT")
		replacer := strings.NewReplacer("-", "_", ".", "_")
		viper.SetEnvKeyReplacer(replacer)
		viper.AutomaticEnv()

		if err = viper.ReadInConfig(); err == nil {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}

		// This function is used to bring logic to the flags when needed (e.g. prometheus)
		handleFlagsEdgeCases()

		// This function is used to handle flags aliases (e.g. quota -> daily-quota)
		handleFlagsAliases()

		// Unmarshal the config into the Config struct
		err = viper.Unmarshal(config)
	})
	return err
}

// BindFlags binds the flags to the viper configuration
// This is needed because viper doesn't support same flag name accross multiple commands
// Details here: https://github.com/spf13/viper/issues/375#issuecomment-794668149
func BindFlags(flagSet *pflag.FlagSet) {
	flagSet.VisitAll(func(flag *pflag.Flag) {
		viper.BindPFlag(flag.Name, flag)
	})
}

// Get returns the config struct
func Get() *Config {
	return config
}

// GenerateAgentConfig derives the remaining fields and validates everything
// that must be correct before the agent starts. Any error returned here is
// fatal: a misconfigured agent must not run at all.
func GenerateAgentConfig() error {
	// If the job name isn't specified, we generate a random name
	if config.Job == "" {
		UUID, err := uuid.NewUUID()
		if err != nil {
			slog.Error("config.GenerateAgentConfig():uuid.NewUUID()", "error", err)
			return err
		}

		config.Job = UUID.String()
	}

	config.JobPath = path.Join("jobs", config.Job)

	if err := validate(config); err != nil {
		return err
	}

	initRuntime(config)

	return nil
}

func validate(c *Config) error {
	if len(c.Keywords) == 0 {
		return ErrNoKeywords
	}
	if c.KeywordBatchSize < 1 {
		return fmt.Errorf("%w: keyword-batch-size must be >= 1, got %d", ErrInvalidRange, c.KeywordBatchSize)
	}
	if c.ExploreCount >= c.KeywordBatchSize {
		return fmt.Errorf("%w: explore-count (%d) must be < keyword-batch-size (%d)", ErrInvalidRange, c.ExploreCount, c.KeywordBatchSize)
	}
	if c.DailyQuota < 0 {
		return fmt.Errorf("%w: daily-quota must be >= 0, got %d", ErrInvalidRange, c.DailyQuota)
	}

	if c.DomainThreshold <= 0 || c.IntentThreshold <= 0 {
		return fmt.Errorf("%w: domain-threshold and intent-threshold must be > 0", ErrInvalidThreshold)
	}
	if c.LanguageRatio <= 0 || c.LanguageRatio > 1 {
		return fmt.Errorf("%w: language-ratio must be in (0,1], got %f", ErrInvalidThreshold, c.LanguageRatio)
	}

	if c.SafetyFactor < 1.0 {
		return fmt.Errorf("%w: safety-factor must be >= 1.0, got %f", ErrInvalidRange, c.SafetyFactor)
	}
	for _, r := range []struct {
		name     string
		min, max time.Duration
	}{
		{"nav-delay", c.NavDelayMin, c.NavDelayMax},
		{"scroll-delay", c.ScrollDelayMin, c.ScrollDelayMax},
		{"break", c.BreakMin, c.BreakMax},
		{"cooldown", c.CooldownMin, c.CooldownMax},
		{"interval", c.IntervalFloor, c.IntervalCeiling},
	} {
		if r.min <= 0 || r.max < r.min {
			return fmt.Errorf("%w: %s range [%s, %s]", ErrInvalidRange, r.name, r.min, r.max)
		}
	}

	if c.ActiveHoursStart < 0 || c.ActiveHoursStart > 23 || c.ActiveHoursEnd < 0 || c.ActiveHoursEnd > 23 {
		return fmt.Errorf("%w: hours must be within [0,23], got start=%d end=%d", ErrInvalidActiveWindow, c.ActiveHoursStart, c.ActiveHoursEnd)
	}
	if c.ActiveHoursStart == c.ActiveHoursEnd {
		return fmt.Errorf("%w: start and end hour are both %d, window would be empty", ErrInvalidActiveWindow, c.ActiveHoursStart)
	}
	if _, err := time.LoadLocation(c.ActiveHoursZone); err != nil {
		return fmt.Errorf("%w: unknown zone %q: %s", ErrInvalidActiveWindow, c.ActiveHoursZone, err)
	}

	if c.IntervalShrink <= 0 || c.IntervalShrink >= 1 {
		return fmt.Errorf("%w: interval-shrink must be in (0,1), got %f", ErrInvalidRange, c.IntervalShrink)
	}
	if c.IntervalGrow <= 1 {
		return fmt.Errorf("%w: interval-grow must be > 1, got %f", ErrInvalidRange, c.IntervalGrow)
	}

	if c.AuthSuspectThreshold < 1 || c.EmptyResultThreshold < 1 {
		return fmt.Errorf("%w: risk thresholds must be >= 1", ErrInvalidRange)
	}
	if c.PromotionStreak < 1 {
		return fmt.Errorf("%w: promotion-streak must be >= 1, got %d", ErrInvalidRange, c.PromotionStreak)
	}

	if c.DedupCacheSize < 1 {
		return fmt.Errorf("%w: dedup-cache-size must be >= 1, got %d", ErrInvalidRange, c.DedupCacheSize)
	}
	if c.DedupRetention <= 0 {
		return fmt.Errorf("%w: dedup-retention must be > 0, got %s", ErrInvalidRange, c.DedupRetention)
	}

	if c.FetchTimeout <= 0 || c.PersistTimeout <= 0 {
		return fmt.Errorf("%w: fetch-timeout and persist-timeout must be > 0", ErrInvalidRange)
	}

	return nil
}

func handleFlagsEdgeCases() {
	if viper.GetBool("prometheus") {
		// Prometheus metrics are served by the API server
		viper.Set("api", true)
	}
}

func handleFlagsAliases() {
	// For each flag we want to alias, we check if the original flag is at default and if the alias is not
	// If so, we set the original flag to the value of the alias
	if viper.GetInt("quota") != 10 && viper.GetInt("daily-quota") == 10 {
		viper.Set("daily-quota", viper.GetInt("quota"))
	}

	if viper.GetInt("msr") != 5 && viper.GetInt("min-space-required") == 5 {
		viper.Set("min-space-required", viper.GetInt("msr"))
	}
}
