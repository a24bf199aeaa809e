package cli

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/spf13/cobra"

	"clio/internal/clipboard"
	"clio/internal/entry"
	"clio/internal/imaging"
)

func newCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy <id>",
		Short: "Copy a history entry back to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			e, err := st.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}
			if e == nil {
				return fmt.Errorf("no entry with id %d", id)
			}

			content, err := entryContent(e)
			if err != nil {
				return err
			}
			return spawnClipboardHolder(content)
		},
	}
}

func entryContent(e *entry.Entry) (clipboard.Content, error) {
	if e.IsImage() {
		w, h, rgba, err := imaging.DecodePNG(e.BlobContent)
		if err != nil {
			return clipboard.EmptyContent(), err
		}
		return clipboard.ImageContent(clipboard.Image{Width: w, Height: h, RGBA: rgba}), nil
	}
	return clipboard.TextContent(e.TextContent), nil
}

// spawnClipboardHolder hands the content to a detached copy of this
// binary so selection ownership survives this short-lived process.
func spawnClipboardHolder(content clipboard.Content) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	holder := exec.Command(exe, "serve-clipboard")
	stdin, err := holder.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open holder stdin: %w", err)
	}
	if err := holder.Start(); err != nil {
		return fmt.Errorf("failed to spawn clipboard holder: %w", err)
	}

	if err := clipboard.WriteFrame(stdin, content); err != nil {
		stdin.Close()
		return fmt.Errorf("failed to hand off content: %w", err)
	}
	if err := stdin.Close(); err != nil {
		return err
	}
	// Detach: the holder keeps serving until another app takes over.
	return holder.Process.Release()
}
