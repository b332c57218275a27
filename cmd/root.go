package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/cv-validator/internal/events"
	"github.com/spigell/cv-validator/internal/worker"
)

const (
	app       = "cv-validator"
	envPrefix = "CV_VALIDATOR"
)

type Config struct {
	Callback  *CallbackConfig  `mapstructure:"callback"`
	Documents *DocumentsConfig `mapstructure:"documents"`
	Extractor *ExtractorConfig `mapstructure:"extractor"`
	Worker    *WorkerConfig    `mapstructure:"worker"`
	Kafka     *KafkaConfig     `mapstructure:"kafka"`
}

type CallbackConfig struct {
	BaseURL   string        `mapstructure:"base-url"`
	TokenFile string        `mapstructure:"token-file"`
	UserAgent string        `mapstructure:"user-agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type DocumentsConfig struct {
	Root string `mapstructure:"root"`
}

type ExtractorConfig struct {
	// Fallback names the extractor used for PDFs without a text layer.
	Fallback string        `mapstructure:"fallback"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type WorkerConfig struct {
	Addr string `mapstructure:"addr"`
}

type KafkaConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	Principal string   `mapstructure:"principal"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-validator checks claimed CV fields against the uploaded document and reports the result",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	setDefaults(viper.GetViper())
	if err := bindEnv(viper.GetViper()); err != nil {
		log.Fatalf("binding environment variables: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-validator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if err := readConfig(viper.GetViper(), cfgFile); err != nil {
		log.Fatal(err)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("callback.base-url", "")
	v.SetDefault("callback.token-file", "")
	v.SetDefault("callback.user-agent", "spigell/cv-validator")
	v.SetDefault("callback.timeout", 10*time.Second)
	v.SetDefault("documents.root", "")
	v.SetDefault("extractor.fallback", "")
	v.SetDefault("extractor.gemini.api-key-file", "")
	v.SetDefault("extractor.gemini.model", "gemini-2.5-flash")
	v.SetDefault("extractor.gemini.max-log-length", 200)
	v.SetDefault("worker.addr", worker.DefaultAddr)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", events.DefaultTopic)
	v.SetDefault("kafka.principal", app)
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// The web application historically exported its endpoint as TRPC_ENDPOINT.
	if err := v.BindEnv("callback.base-url", envPrefix+"_CALLBACK_BASE_URL", "TRPC_ENDPOINT"); err != nil {
		return err
	}

	return v.BindEnv("extractor.gemini.api-key-file", envPrefix+"_EXTRACTOR_GEMINI_API_KEY_FILE", "GEMINI_API_KEY_FILE")
}

// readConfig loads the config file. Without an explicit path a missing
// cv-validator.yaml is not an error.
func readConfig(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
		return v.ReadInConfig()
	}

	v.AddConfigPath(".")
	v.SetConfigName(app)
	v.SetConfigType("yaml")

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}

	return err
}

func getConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	err := v.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		return nil, errors.New("config is empty")
	}
	if config.Callback == nil {
		config.Callback = &CallbackConfig{}
	}
	if config.Documents == nil {
		config.Documents = &DocumentsConfig{}
	}
	if config.Extractor == nil {
		config.Extractor = &ExtractorConfig{}
	}
	if config.Extractor.Gemini == nil {
		config.Extractor.Gemini = &GeminiConfig{}
	}
	if config.Worker == nil {
		config.Worker = &WorkerConfig{}
	}
	if config.Kafka == nil {
		config.Kafka = &KafkaConfig{}
	}

	return config, nil
}
