package backup

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/uploadkit/uploader/cmd/uploader/root/session"
	"github.com/uploadkit/uploader/internal/cliutil"
	"github.com/uploadkit/uploader/internal/hassapi"
	"github.com/uploadkit/uploader/internal/upload"
)

func NewBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup <file>",
		Short: "Upload a backup archive",
		Long: heredoc.Doc(`
			Upload a backup archive to the Supervisor and print its slug.

			Large backups can take a while; use --timeout to give up after a
			set time, or interrupt the command to abort the upload.
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.New(cmd)
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			file, err := upload.OpenFile(afero.NewOsFs(), args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			u, err := s.Client.CreateBackupUpload(cmd.Context(), hassapi.FromUploadFile(file))
			if err != nil {
				return err
			}

			ctx, cancel := s.Context(cmd.Context())
			defer cancel()

			stop := s.ShowProgress(u)
			slug, err := hassapi.DoBackupUpload(ctx, u)
			stop()
			if err != nil {
				return session.Explain(err)
			}

			s.Logger.Info("backup uploaded", "slug", slug)
			return cliutil.HandleOutput(cmd, map[string]any{"slug": slug})
		},
	}

	return cmd
}
