package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/estudio-ia/studio-server/internal/config"
	"github.com/estudio-ia/studio-server/internal/di"
	"github.com/estudio-ia/studio-server/internal/di/providers"
	"github.com/estudio-ia/studio-server/internal/domain"
	"github.com/estudio-ia/studio-server/internal/export"
	"github.com/estudio-ia/studio-server/internal/timeline"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "studio",
		Short:         "Estúdio IA export server",
		Long:          "Runs the export-job orchestrator and its HTTP API, and inspects presets and timelines offline.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newPresetsCmd(), newFormatsCmd(), newEDLCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var flags config.Flags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and export workers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return serve(flags)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.EnvFile, "env-file", "", "path to a .env file (default .env)")
	f.StringVar(&flags.Env, "env", "", "environment: development, staging or production")
	f.StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	f.StringVar(&flags.LogFormat, "log-format", "", "log format: json or pretty")
	f.StringVar(&flags.LogFile, "log-file", "", "also write logs to this rotated file")
	f.StringVar(&flags.StorageBackend, "storage", "", "storage backend: badger or sqlite")
	f.StringVar(&flags.DataPath, "data-path", "", "directory for the job database")
	f.StringVar(&flags.Port, "port", "", "HTTP port")
	f.StringVar(&flags.CORSOrigins, "cors-origins", "", "comma-separated allowed origins")
	f.StringVar(&flags.MaxConcurrent, "max-concurrent", "", "export jobs processed at once")
	f.StringVar(&flags.StepDelayScale, "step-delay-scale", "", "multiplier for simulated step delays, 0 disables them")
	f.StringVar(&flags.PhaseDeadlines, "phase-timeouts", "", "per-phase deadlines, e.g. encoding=10m,finalizing=1m")
	f.StringVar(&flags.PresetsFile, "presets-file", "", "JSON file of custom platform presets")
	f.StringVar(&flags.RedisAddr, "redis-addr", "", "mirror job events to Redis at this address")

	return cmd
}

func serve(flags config.Flags) error {
	injector := di.NewContainer(flags)

	if err := di.Bootstrap(injector); err != nil {
		return fmt.Errorf("failed to bootstrap server: %w", err)
	}

	log := do.MustInvoke[*providers.LoggerHandle](injector)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// Dependents stop first: HTTP server, workers, event fan-out, then the store.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}
	return nil
}

func newPresetsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "presets [platform]",
		Short: "Print platform presets as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog := export.NewCatalog(file, nil)
			if err := catalog.Load(); err != nil {
				return err
			}
			if len(args) == 0 {
				return writeJSON(cmd.OutOrStdout(), catalog.List())
			}

			platform := domain.Platform(args[0])
			preset, ok := catalog.Get(platform)
			if !ok {
				return fmt.Errorf("unsupported platform: %s", platform)
			}
			_, builtin := export.BuiltinPreset(platform)
			return writeJSON(cmd.OutOrStdout(), export.NamedPreset{Platform: platform, Builtin: builtin, Preset: preset})
		},
	}
	cmd.Flags().StringVar(&file, "presets-file", "", "JSON file of custom platform presets")
	return cmd
}

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported export formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			for _, f := range export.Formats() {
				audio := f.AudioCodec
				if audio == "" {
					audio = "-"
				}
				if _, err := fmt.Fprintf(w, "%-6s %-10s %s\n", f.Format, f.Codec, audio); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newEDLCmd() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "edl <timeline.json>",
		Short: "Render a timeline document as a CMX3600 EDL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var tl domain.Timeline
			if err := json.Unmarshal(data, &tl); err != nil {
				return fmt.Errorf("parse timeline: %w", err)
			}

			// Load checks clip windows, sorts clips and fills defaults the way the API does.
			editor := timeline.NewEditor()
			if err := editor.Load(tl); err != nil {
				return err
			}
			if err := timeline.ValidateTimeline(editor.Timeline()); err != nil {
				return err
			}
			if title == "" {
				title = "Untitled"
			}
			_, err = io.WriteString(cmd.OutOrStdout(), editor.RenderEDL(title))
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "EDL title")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
