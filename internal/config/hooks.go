package config

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// StringToLevel decodes "debug", "info", "warn" or "error" (any case, with an
// optional +/-N offset as slog allows) into a slog.Level.
func StringToLevel() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(slog.Level(0)) {
			return data, nil
		}
		raw := strings.TrimSpace(data.(string))
		if raw == "" {
			return nil, fmt.Errorf("log level must not be empty")
		}
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("invalid log level %q", raw)
		}
		return lvl, nil
	}
}

// StringToSize decodes human sizes ("1MiB", "512K", "4096") into int64 byte
// counts using ParseSize.
func StringToSize() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(int64(0)) {
			return data, nil
		}
		return ParseSize(data.(string))
	}
}
