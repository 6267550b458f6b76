package image

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/uploadkit/uploader/cmd/uploader/root/session"
	"github.com/uploadkit/uploader/internal/cliutil"
	"github.com/uploadkit/uploader/internal/hassapi"
	"github.com/uploadkit/uploader/internal/upload"
)

func NewImageCmd() *cobra.Command {
	var thumbnailSize int

	cmd := &cobra.Command{
		Use:   "image <file>",
		Short: "Upload an image",
		Long:  `Upload an image to the server's image store and print the stored image.`,
		Args:  cobra.ExactArgs(1),
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

			u, err := s.Client.CreateImageUpload(cmd.Context(), hassapi.FromUploadFile(file))
			if err != nil {
				return err
			}

			ctx, cancel := s.Context(cmd.Context())
			defer cancel()

			stop := s.ShowProgress(u)
			image, err := hassapi.DoImageUpload(ctx, u)
			stop()
			if err != nil {
				return session.Explain(err)
			}

			return cliutil.HandleOutput(cmd, map[string]any{
				"id":           image.ID,
				"name":         image.Name,
				"filesize":     image.Filesize,
				"content_type": image.ContentType,
				"uploaded_at":  image.UploadedAt,
				"thumbnail":    s.Client.URL(hassapi.ThumbnailURL(image.ID, thumbnailSize)),
			})
		},
	}

	cmd.Flags().IntVar(&thumbnailSize, "thumbnail-size", 512, "Size of the printed thumbnail URL")

	return cmd
}
