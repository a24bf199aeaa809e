package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	sysclip "golang.design/x/clipboard"

	"clio/internal/clipboard"
	"clio/internal/imaging"
)

// newServeClipboardCmd is the hidden holder process spawned by `copy`:
// it reads one framed message from stdin, takes clipboard ownership and
// stays alive until another application supersedes it.
func newServeClipboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "serve-clipboard",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := clipboard.ReadFrame(os.Stdin)
			if err != nil {
				return err
			}
			if content.IsEmpty() {
				return nil
			}
			if err := sysclip.Init(); err != nil {
				return fmt.Errorf("clipboard unavailable: %w", err)
			}

			var superseded <-chan struct{}
			switch content.Kind {
			case clipboard.KindText:
				superseded = sysclip.Write(sysclip.FmtText, []byte(content.Text))
			case clipboard.KindImage:
				png, err := imaging.EncodePNG(content.Image.Width, content.Image.Height, content.Image.RGBA)
				if err != nil {
					return err
				}
				superseded = sysclip.Write(sysclip.FmtImage, png)
			}

			// Hold ownership until another app takes the selection.
			<-superseded
			return nil
		},
	}
}
