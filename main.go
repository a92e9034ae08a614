package main

import (
	"errors"
	"fmt"

	"github.com/penny-vault/pv-screener/cmd"

	"github.com/spf13/viper"
)

func configureViper() {
	// read config file
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath("/etc/pv-screener/")
	viper.AddConfigPath("$HOME/.config/pv-screener")
	viper.AddConfigPath(".")

	// the config file is optional; defaults and env vars cover every setting
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}
}

func main() {
	configureViper()
	cmd.Execute()
}
