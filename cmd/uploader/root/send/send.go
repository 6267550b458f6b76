package send

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/uploadkit/uploader/cmd/uploader/root/session"
	"github.com/uploadkit/uploader/internal/cliutil"
	"github.com/uploadkit/uploader/internal/upload"
)

func NewSendCmd() *cobra.Command {
	var to string
	var field string
	var raw bool
	var headers []string

	cmd := &cobra.Command{
		Use:   "send <file>",
		Short: "Upload a file to any path on the server",
		Long: heredoc.Doc(`
			Upload a file in a POST request and print the server's response.

			The file is sent in a multipart form unless --raw is given. Any
			status code is printed as a response; only connection failures and
			aborts are errors.
		`),
		Example: heredoc.Doc(`
			$ uploader send ./cat.png --to /api/image/upload
			$ uploader send ./data.bin --to /api/raw --raw --header "X-Checksum: abc"
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			extraHeaders, err := cliutil.ParseHeaders(headers)
			if err != nil {
				return err
			}

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

			var payload upload.Payload
			if raw {
				payload = upload.NewPayload(file, file.Size, file.ContentType)
			} else {
				payload, err = upload.NewForm().
					AddFile(field, file.Filename, file, file.Size, file.ContentType).
					Payload()
				if err != nil {
					return err
				}
			}

			u, err := s.Client.NewUploadWithHeaders(cmd.Context(), to, payload, extraHeaders)
			if err != nil {
				return err
			}

			ctx, cancel := s.Context(cmd.Context())
			defer cancel()

			stop := s.ShowProgress(u)
			resp, err := upload.Wait(ctx, u, u.Start())
			stop()
			if err != nil {
				return session.Explain(err)
			}

			return cliutil.HandleOutput(cmd, cliutil.ResponseResult(resp))
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Path or URL to upload to (required)")
	cmd.Flags().StringVar(&field, "field", "file", "Form field holding the file")
	cmd.Flags().BoolVar(&raw, "raw", false, "Send the file as the request body instead of a form")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra header as \"Name: Value\" (repeatable)")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
