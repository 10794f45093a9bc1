package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

var ErrMissingSetting = errors.New("missing required setting")

const envPrefix = "CSBOT"

var required = []string{"api.email", "api.key", "api.site"}

// Init sets defaults for the bot section and lets CSBOT_* environment variables override any key,
// e.g. CSBOT_BOT_HANDLER_TIMEOUT for bot.handler_timeout.
func Init() {
	viper.SetDefault("bot.handler_timeout", "30s")
	viper.SetDefault("bot.poll_backoff", "5s")
	viper.SetDefault("bot.log_level", "info")

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// LoadZuliprc merges every section of the INI file at path into viper, keyed as section.key.
// The [api] section must provide email, key and site.
func LoadZuliprc(path string) error {
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to read zuliprc %s: %w", path, err)
	}

	settings := make(map[string]any)
	for _, section := range f.Sections() {
		keys := section.Keys()
		if len(keys) == 0 {
			continue
		}

		values := make(map[string]any, len(keys))
		for _, key := range keys {
			values[strings.ToLower(key.Name())] = key.String()
		}
		settings[strings.ToLower(section.Name())] = values
	}

	if err := viper.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("failed to merge zuliprc %s: %w", path, err)
	}

	for _, key := range required {
		if strings.TrimSpace(viper.GetString(key)) == "" {
			return fmt.Errorf("%w: %s in %s", ErrMissingSetting, key, path)
		}
	}

	return nil
}
