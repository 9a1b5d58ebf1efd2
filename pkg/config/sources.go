package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ConfigSource represents a source of configuration values
type ConfigSource interface {
	GetString(key string) (string, bool)
	GetInt(key string) (int, bool)
	GetFloat(key string) (float64, bool)
}

// EnvSource implements ConfigSource for environment variables
type EnvSource struct{}

func (e *EnvSource) GetString(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	return value, value != ""
}

func (e *EnvSource) GetInt(key string) (int, bool) {
	value, ok := e.GetString(key)
	if !ok {
		return 0, false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i, true
	}
	return 0, false
}

func (e *EnvSource) GetFloat(key string) (float64, bool) {
	value, ok := e.GetString(key)
	if !ok {
		return 0, false
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f, true
	}
	return 0, false
}

// FlagSource implements ConfigSource for command-line flags
type FlagSource struct {
	values map[string]interface{}
}

func NewFlagSource() *FlagSource {
	return &FlagSource{values: make(map[string]interface{})}
}

func (f *FlagSource) Set(key string, value interface{}) {
	f.values[key] = value
}

func (f *FlagSource) GetString(key string) (string, bool) {
	if value, exists := f.values[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str, true
		}
	}
	return "", false
}

func (f *FlagSource) GetInt(key string) (int, bool) {
	if value, exists := f.values[key]; exists {
		if i, ok := value.(int); ok {
			return i, true
		}
	}
	return 0, false
}

func (f *FlagSource) GetFloat(key string) (float64, bool) {
	if value, exists := f.values[key]; exists {
		if fl, ok := value.(float64); ok {
			return fl, true
		}
	}
	return 0, false
}

// FileSource implements ConfigSource for a YAML config file. File keys are the
// lower-cased environment keys, e.g. solar_channel_url.
type FileSource struct {
	v *viper.Viper
}

// NewFileSource reads path when given. Without a path it looks for
// solarwatch.yaml in the working directory, ./config and /etc/solarwatch, and a
// missing file yields an empty source.
func NewFileSource(path string) (*FileSource, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/" + AppName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return &FileSource{v: v}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return &FileSource{v: v}, nil
}

// Used returns the path of the file that was read, or "" if none was.
func (f *FileSource) Used() string {
	return f.v.ConfigFileUsed()
}

func (f *FileSource) lookup(key string) (interface{}, bool) {
	k := strings.ToLower(key)
	if !f.v.IsSet(k) {
		return nil, false
	}
	return f.v.Get(k), true
}

// GetString also accepts a YAML list and joins it with commas, so transports
// may be written either way.
func (f *FileSource) GetString(key string) (string, bool) {
	raw, ok := f.lookup(key)
	if !ok {
		return "", false
	}
	if list, isList := raw.([]interface{}); isList {
		parts, err := cast.ToStringSliceE(list)
		if err != nil || len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, ","), true
	}
	s, err := cast.ToStringE(raw)
	if err != nil || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func (f *FileSource) GetInt(key string) (int, bool) {
	raw, ok := f.lookup(key)
	if !ok {
		return 0, false
	}
	i, err := cast.ToIntE(raw)
	if err != nil {
		return 0, false
	}
	return i, true
}

func (f *FileSource) GetFloat(key string) (float64, bool) {
	raw, ok := f.lookup(key)
	if !ok {
		return 0, false
	}
	fl, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, false
	}
	return fl, true
}

// loadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing default .env is not an error.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
