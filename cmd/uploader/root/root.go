package root

import (
	"fmt"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/uploadkit/uploader/cmd/uploader/root/backup"
	"github.com/uploadkit/uploader/cmd/uploader/root/config"
	"github.com/uploadkit/uploader/cmd/uploader/root/image"
	"github.com/uploadkit/uploader/cmd/uploader/root/send"
	"github.com/uploadkit/uploader/cmd/uploader/root/version"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uploader <command> [flags]",
		Short: "Upload files to a Home Assistant server",
		Long:  `Upload files with progress reporting. Interrupting the command aborts the upload.`,
		Example: heredoc.Doc(`
			$ uploader config set url http://homeassistant.local:8123
			$ uploader image ./cat.png
			$ uploader backup ./backup.tar --timeout 10m
			$ uploader send ./report.pdf --to /api/files --header "X-Tag: q3"
		`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			templateFlag, _ := cmd.Flags().GetString("template")
			formatFlag, _ := cmd.Flags().GetString("format")

			if templateFlag != "" && formatFlag != "json" {
				return fmt.Errorf("--template and --format flags cannot be used together")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("url", "", "Base URL of the server")
	flags.String("access-token", "", "Access token sent as a bearer token")
	flags.String("refresh-token", "", "Refresh token used when the access token expires")
	flags.String("client-id", "", "OAuth client ID (default is the server URL)")
	flags.String("timeout", "", "Abort the upload after this long (e.g. 30s, 10m)")
	flags.String("log-level", "", "Log level: debug, info, warn or error (default info)")
	flags.String("sentry-dsn", "", "Report errors to this Sentry DSN")
	flags.String("pushgateway", "", "Push upload metrics to this Prometheus Pushgateway")
	flags.String("template", "", "Template for output format. Accepts Go template format (e.g. --template='{{.status}}')")
	flags.String("format", "json", "Output format. Accepts 'json' or 'yaml'")

	for _, key := range []string{
		"url", "access-token", "refresh-token", "client-id",
		"timeout", "log-level", "sentry-dsn", "pushgateway",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(key))
	}

	cmd.AddCommand(send.NewSendCmd())
	cmd.AddCommand(image.NewImageCmd())
	cmd.AddCommand(backup.NewBackupCmd())
	cmd.AddCommand(config.NewConfigCmd())
	cmd.AddCommand(version.NewVersionCmd())

	return cmd
}
