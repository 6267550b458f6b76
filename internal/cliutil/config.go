package cliutil

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// GetString returns a flag's value if it was set on the command line, falling
// back to the config file and then to the UPLOADER_<FLAG> environment variable.
func GetString(cmd *cobra.Command, flag string) string {
	if cmd.Flags().Changed(flag) {
		value, _ := cmd.Flags().GetString(flag)
		return value
	}

	value := viper.GetString(flag)
	if value != "" {
		return value
	}

	return os.Getenv(EnvName(flag))
}

// EnvName is the environment variable that stands in for a config key.
func EnvName(key string) string {
	return "UPLOADER_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
