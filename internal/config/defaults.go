package config

import (
	"github.com/spf13/viper"

	"contextkeeper/internal/compaction"
)

// SetDefaults registers the default value of every key.
func SetDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")

	viper.SetDefault("storage.driver", DriverFile)
	viper.SetDefault("storage.path", "")
	viper.SetDefault("storage.compress", false)

	defaults := compaction.DefaultConfig()
	viper.SetDefault("compaction.impact_threshold", defaults.ImpactThreshold)
	viper.SetDefault("compaction.first_message_max_chars", defaults.FirstMessageMaxChars)
	viper.SetDefault("compaction.default_context_window", defaults.DefaultContextWindow)
	viper.SetDefault("compaction.read_tools", defaults.ReadTools)
	viper.SetDefault("compaction.write_tools", defaults.WriteTools)

	viper.SetDefault("model.id", "")
	viper.SetDefault("model.provider", "")
	viper.SetDefault("model.context_window", 0)
}
