package config

import (
	"os"
	"strconv"

	"emperror.dev/errors"
	"github.com/spf13/viper"
)

// Glint holds the process-wide configuration values.
var Glint = struct {
	// NumThreads is the worker pool size. 0 picks a default based on the
	// core count.
	NumThreads int
	// DirtyMaxIndexSize disables the unstaged/untracked scans on
	// repositories whose index exceeds this many entries. Negative means
	// no limit.
	DirtyMaxIndexSize int
	// LogLevel is a logrus level name ("debug", "info", ...).
	LogLevel string
}{
	DirtyMaxIndexSize: -1,
	LogLevel:          "info",
}

// Load initializes the configuration values. It may optionally be called
// with a list of additional paths to check for the config file.
// Returns whether a config file was loaded and an error if one occurred.
func Load(paths []string) (bool, error) {
	loaded, err := loadFromFile(paths)
	loadFromEnv()
	return loaded, err
}

func loadFromFile(paths []string) (bool, error) {
	config := viper.New()

	config.SetConfigName("config")
	config.AddConfigPath("$XDG_CONFIG_HOME/glint")
	config.AddConfigPath("$HOME/.config/glint")
	config.AddConfigPath("$GLINT_HOME")
	for _, path := range paths {
		config.AddConfigPath(path)
	}

	if err := config.ReadInConfig(); err != nil {
		if errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return false, nil
		}
		return false, err
	}

	if err := config.Unmarshal(&Glint); err != nil {
		return true, errors.Wrap(err, "failed to read glint configs")
	}

	return true, nil
}

func loadFromEnv() {
	if v := os.Getenv("GLINT_NUM_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			Glint.NumThreads = n
		}
	}
	if v := os.Getenv("GLINT_DIRTY_MAX_INDEX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			Glint.DirtyMaxIndexSize = n
		}
	}
	if v := os.Getenv("GLINT_LOG_LEVEL"); v != "" {
		Glint.LogLevel = v
	}
}
