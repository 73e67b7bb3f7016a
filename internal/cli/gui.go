package cli

import (
	"context"

	"facecam/internal/tui"
	"facecam/internal/ui"
	"facecam/pkg/log"

	"github.com/spf13/cobra"
)

func newGUICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gui",
		Short: "Open the desktop window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGUI(cmd.Context())
		},
	}
}

func newTUICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal interface",
		Long: `Runs the same detection workflow in the terminal.

Keys: d detect from feed, c start/stop webcam, o choose image,
u upload and detect, esc close error, q quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context())
		},
	}
}

func runGUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(contextOrBackground(ctx))
	defer cancel()

	s := newSession(cfg)
	s.start()
	defer s.close()

	s.loadModelsAsync(ctx)
	s.watchConfig(ctx, cfgFile)

	detectApp := ui.CreateApp(ui.Deps{
		Config:     cfg,
		ConfigPath: cfgFile,
		Store:      s.store,
		Camera:     s.camera,
		Status: func() ui.Status {
			return ui.Status{
				Connected:   s.detector.Connected(),
				ModelsReady: s.loader.Ready(),
			}
		},
		Log: log.Component("ui"),
	})

	detectApp.Run()
	return nil
}

func runTUI(ctx context.Context) error {
	ctx, cancel := context.WithCancel(contextOrBackground(ctx))
	defer cancel()

	s := newSession(cfg)
	s.start()
	defer s.close()

	s.loadModelsAsync(ctx)
	s.watchConfig(ctx, cfgFile)

	return tui.Run(s.store)
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
