package config

import (
	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway process.
type Config struct {
	ServerHost      string `mapstructure:"server_host"`
	ServerPort      int    `mapstructure:"anova_server_port"`
	FrontendDistDir string `mapstructure:"frontend_dist_dir"`
	AdminUsername   string `mapstructure:"admin_username"`
	AdminPassword   string `mapstructure:"admin_password"`
	LogLevel        string `mapstructure:"log_level"`
	LogDir          string `mapstructure:"log_dir"`
}

// Load reads configuration from environment variables. There is no config
// file: every key below is optional and falls back to its default.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	for _, key := range []string{
		"server_host", "anova_server_port", "frontend_dist_dir",
		"admin_username", "admin_password", "log_level", "log_dir",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("anova_server_port", 8080)
	v.SetDefault("frontend_dist_dir", "")
	v.SetDefault("admin_username", "")
	v.SetDefault("admin_password", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "")
}
