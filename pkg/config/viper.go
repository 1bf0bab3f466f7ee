package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Options controls where configuration is looked up.
type Options struct {
	// Path is an explicit config file. When empty the search dirs are used.
	Path string
	// Name is the config file name without extension.
	Name string
	// Dirs are searched in order after the explicit path.
	Dirs []string
	// EnvPrefix namespaces environment overrides, e.g. SYNCPARTY_SERVER_PORT.
	EnvPrefix string
}

// Load reads a yaml config file (optional) and layers environment
// variables over it. Keys use "." as separator; env keys use "_".
func Load(opts Options) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if opts.Path != "" {
		v.SetConfigFile(opts.Path)
	} else {
		name := opts.Name
		if name == "" {
			name = "config"
		}
		v.SetConfigName(name)
		for _, dir := range opts.Dirs {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && opts.Path == "" {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return v, nil
}

// Watch calls onChange after every write to the config file v was read
// from. It reports false when v has no file to watch.
func Watch(v *viper.Viper, onChange func(fsnotify.Event)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Has(fsnotify.Write) || e.Has(fsnotify.Create) {
			onChange(e)
		}
	})
	v.WatchConfig()
	return true
}
