package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "shepherd",
	Short: "shepherd answers church administration questions with an LLM and the church management tools",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		initLogger()
	},
	SilenceUsage: true,
}

func initLogger() {
	logLevel := viper.GetString("log-level")
	verbose := viper.GetBool("verbose")
	if verbose && logLevel != "trace" {
		logLevel = "debug"
	}

	err := InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
	cobra.CheckErr(err)
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func initConfig(rootCmd *cobra.Command, configPath string) error {
	viper.SetEnvPrefix("shepherd")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.shepherd")
		viper.AddConfigPath("/etc/shepherd")
	}

	err := viper.ReadInConfig()
	// if the file does not exist, continue normally
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil {
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// the conventional unprefixed variables are honored as well
	for key, env := range map[string]string{
		"claude-api-key": "ANTHROPIC_API_KEY",
		"openai-api-key": "OPENAI_API_KEY",
		"ollama-host":    "OLLAMA_HOST",
	} {
		if err := viper.BindEnv(key, "SHEPHERD_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_")), env); err != nil {
			return err
		}
	}

	err = viper.BindPFlags(rootCmd.PersistentFlags())
	if err != nil {
		return err
	}

	initLogger()

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}

func InitLogger(config *logConfig) error {
	if config.WithCaller {
		log.Logger = log.With().Caller().Logger()
	}
	var logWriter io.Writer
	if config.LogFormat == "text" && isatty.IsTerminal(os.Stderr.Fd()) {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	} else if config.LogFormat == "text" {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}
	} else {
		logWriter = os.Stderr
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, //days
					Compress:   false,
				},
			})
	}

	log.Logger = log.Output(logWriter)

	switch config.Level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()

	// logging flags
	pf.Bool("with-caller", false, "Log caller")
	pf.String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	pf.String("log-format", "text", "Log format (json, text)")
	pf.String("log-file", "", "Log file (default: stderr)")
	pf.Bool("verbose", false, "Verbose output")
	pf.String("config", "", "Path to config file (default ./config.yaml or ~/.shepherd/config.yaml)")

	// model backends
	pf.String("claude-api-key", "", "Anthropic API key")
	pf.String("claude-base-url", "", "Anthropic API base URL")
	pf.String("openai-api-key", "", "OpenAI API key")
	pf.String("openai-base-url", "", "OpenAI API base URL")
	pf.String("ollama-host", "", "Ollama server, e.g. http://localhost:11434")
	pf.String("model", "", "Model name (default depends on the backend)")
	pf.Int("max-tokens", 4096, "Maximum tokens per model answer")
	pf.Float64("temperature", 0, "Sampling temperature (unset: backend default)")
	pf.Duration("client-timeout", 120*time.Second, "Timeout for reaching a model backend and receiving its response headers")
	pf.Int("context-token-budget", 0, "Reject requests whose estimated prompt exceeds this many tokens (0: off)")

	// orchestration and tools
	pf.Int("max-iterations", 10, "Maximum model calls per request")
	pf.Int("max-parallel-tools", 0, "Maximum concurrent tool executions per turn (0: unbounded)")
	pf.Duration("tool-timeout", 30*time.Second, "Timeout of one tool call")
	pf.String("tools-base-url", "http://localhost:3000", "Base URL of the church application's tool endpoints")
	pf.String("tools-path-style", "snake", "Tool endpoint naming (snake, kebab)")
	pf.String("tools-file", "", "YAML file with additional tool definitions")
	pf.StringSlice("allowed-tools", nil, "Glob patterns of tools offered to the model (default: all)")
	pf.StringSlice("denied-tools", nil, "Glob patterns of tools never offered to the model")
	pf.String("system-prompt-file", "", "Template file replacing the built-in system prompt")
	pf.String("church-name", "", "Church name used in the system prompt")
	pf.String("audit-url", "", "Endpoint receiving one audit log entry per tool call")

	// parse the flags one time just to catch --config
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" && len(os.Args) > idx+1 {
			configFile = os.Args[idx+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			configFile = strings.TrimPrefix(arg, "--config=")
		}
	}

	err := initConfig(rootCmd, configFile)
	if err != nil {
		panic(err)
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newChatCommand())
	rootCmd.AddCommand(newToolsCommand())
}
