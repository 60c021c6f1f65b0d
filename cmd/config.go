package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"actionlift.dev/pkg/actionlift/internal/domain/actions"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "actionlift"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName    = "output"
	noCacheFlagName   = "no-cache"
	excludeFlagName   = "exclude"
	includeFlagName   = "include"
	rootFlagName      = "root"
	parallelFlagName  = "parallel"
	keepGoingFlagName = "keep-going"
	verboseFlagName   = "verbose"

	cacheDirKey        = "cache.dir"
	includeConfigKey   = "paths.include"
	excludeConfigKey   = "paths.exclude"
	projectRootKey     = "project.root"
	runtimeModuleKey   = "runtime.module"
	runtimeRegisterKey = "runtime.register"
	hashIDsKey         = "ids.hash"
	manifestCommentKey = "manifest.comment"
	manifestFileKey    = "manifest.file"
	manifestFormatKey  = "manifest.format"
	parallelConfigKey  = "transform.parallel"
	keepGoingConfigKey = "transform.keep_going"

	defaultOutputDir       = ".actionlift/build"
	defaultCacheDir        = ".actionlift/cache"
	defaultManifestFile    = ".actionlift/actions.json"
	defaultManifestFormat  = "json"
	defaultNoCache         = false
	defaultParallel        = 0
	defaultKeepGoing       = false
	defaultHashIDs         = false
	defaultManifestComment = true

	envPrefix = "ACTIONLIFT"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".actionlift/actionlift.log"
	defaultLogLevel      = "info"
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		slog.Warn("Failed to read config file", "error", err)
	}
}

func setDefaults() {
	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputFlagName, defaultOutputDir)
	viper.SetDefault(noCacheFlagName, defaultNoCache)
	viper.SetDefault(cacheDirKey, defaultCacheDir)
	viper.SetDefault(includeConfigKey, []string{})
	viper.SetDefault(excludeConfigKey, []string{})
	viper.SetDefault(projectRootKey, "")
	viper.SetDefault(runtimeModuleKey, actions.DefaultRuntimeModule)
	viper.SetDefault(runtimeRegisterKey, actions.DefaultRegisterName)
	viper.SetDefault(hashIDsKey, defaultHashIDs)
	viper.SetDefault(manifestCommentKey, defaultManifestComment)
	viper.SetDefault(manifestFileKey, defaultManifestFile)
	viper.SetDefault(manifestFormatKey, defaultManifestFormat)
	viper.SetDefault(parallelConfigKey, defaultParallel)
	viper.SetDefault(keepGoingConfigKey, defaultKeepGoing)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)
}

// Settings is the resolved configuration of a run.
type Settings struct {
	Output          string   `validate:"required"`
	NoCache         bool
	CacheDir        string   `validate:"required_if=NoCache false"`
	Include         []string `validate:"dive,required"`
	Exclude         []string `validate:"dive,required"`
	ProjectRoot     string
	RuntimeModule   string `validate:"required"`
	RegisterName    string `validate:"required"`
	HashIDs         bool
	ManifestComment bool
	ManifestFile    string
	ManifestFormat  string `validate:"oneof=json yaml"`
	Parallel        int    `validate:"gte=0,lte=1024"`
	KeepGoing       bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// loadSettings reads the settings from viper and validates them.
func loadSettings() (Settings, error) {
	s := Settings{
		Output:          viper.GetString(outputFlagName),
		NoCache:         viper.GetBool(noCacheFlagName),
		CacheDir:        viper.GetString(cacheDirKey),
		Include:         viper.GetStringSlice(includeConfigKey),
		Exclude:         viper.GetStringSlice(excludeConfigKey),
		ProjectRoot:     viper.GetString(projectRootKey),
		RuntimeModule:   viper.GetString(runtimeModuleKey),
		RegisterName:    viper.GetString(runtimeRegisterKey),
		HashIDs:         viper.GetBool(hashIDsKey),
		ManifestComment: viper.GetBool(manifestCommentKey),
		ManifestFile:    viper.GetString(manifestFileKey),
		ManifestFormat:  strings.ToLower(viper.GetString(manifestFormatKey)),
		Parallel:        viper.GetInt(parallelConfigKey),
		KeepGoing:       viper.GetBool(keepGoingConfigKey),
	}

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return Settings{}, fmt.Errorf("invalid configuration: %s fails %q", fe.Field(), fe.Tag())
		}

		return Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}

	s.ManifestFile = manifestPath(s.ManifestFile, s.ManifestFormat)

	return s, nil
}

// manifestPath gives file the extension of format unless it already has one
// matching it.
func manifestPath(file, format string) string {
	if file == "" {
		return ""
	}

	ext := strings.ToLower(filepath.Ext(file))

	switch format {
	case "yaml":
		if ext == ".yaml" || ext == ".yml" {
			return file
		}

		return strings.TrimSuffix(file, filepath.Ext(file)) + ".yaml"
	default:
		if ext == ".json" {
			return file
		}

		return strings.TrimSuffix(file, filepath.Ext(file)) + ".json"
	}
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at the configured level; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose || viper.GetBool(logVerboseKey) {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
