package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"facecam/internal/app"
	"facecam/internal/models"
	"facecam/internal/ui/view"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

var outputFmt string

func newDetectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <image>",
		Short: "Detect faces in one image and print the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args[0])
		},
	}

	cmd.Flags().StringVarP(&outputFmt, "output", "o", "text", "output format (text, json)")

	return cmd
}

func runDetect(cmd *cobra.Command, path string) error {
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format %q", outputFmt)
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	ctx := contextOrBackground(cmd.Context())

	s := newSession(cfg)
	s.start()
	defer s.close()

	if err := s.loader.Load(ctx); err != nil {
		return err
	}

	s.store.Dispatch(app.FileSelected{Path: path, Size: info.Size()})
	s.store.Dispatch(app.UploadRequested{})
	s.store.Wait()

	state := s.store.State()
	if state.ModalOpen() {
		return errors.New(state.ErrorMessage)
	}

	out := cmd.OutOrStdout()
	if outputFmt == "json" {
		return writeJSON(out, state.Detections)
	}
	writeText(out, state.Detections)
	return nil
}

func writeJSON(w io.Writer, detections []models.DetectionRecord) error {
	if detections == nil {
		detections = []models.DetectionRecord{}
	}
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(detections)
}

func writeText(w io.Writer, detections []models.DetectionRecord) {
	for i, d := range detections {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Face %d\n", i+1)
		for _, line := range view.NewCard(d).Lines() {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}
