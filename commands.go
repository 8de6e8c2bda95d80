package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"texswap/internal/app"
	"texswap/internal/config"
	"texswap/internal/pipeline"
	"texswap/internal/version"
)

// flagKeys maps persistent flags onto config keys. --no-lighting inverts its
// key and is applied after loading.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"strategy":   "segmenter.strategies",
	"endpoint":   "segmenter.remote.endpoint",
	"model":      "segmenter.model.path",
	"feather":    "options.feather_radius",
	"quality":    "options.output_quality",
	"max-size":   "options.max_output_size",
}

func rootCommand() *cobra.Command {
	v := viper.New()
	var configPath, preset string

	root := &cobra.Command{
		Use:           "texswap",
		Short:         "Replace the countertop in kitchen photos with a material sample.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	d := config.Default()
	flags := root.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "YAML config file (default "+config.DefaultPath+" if present)")
	flags.StringVarP(&preset, "preset", "p", config.PresetBalanced, fmt.Sprintf("Parameter preset %v", config.Presets()))
	flags.String("log-level", d.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log-format", d.Log.Format, "Log format (text or json)")
	flags.StringSlice("strategy", d.Segmenter.Strategies, "Segmentation strategies in fallback order (remote, cvnet, heuristic)")
	flags.String("endpoint", "", "Remote segmentation endpoint")
	flags.String("model", "", "Segmentation network for the cvnet strategy")
	flags.Int("feather", d.Options.FeatherRadius, "Mask feather radius in pixels")
	flags.Bool("no-lighting", false, "Do not transfer the kitchen's lighting onto the material")
	flags.Int("quality", d.Options.OutputQuality, "JPEG output quality (1-100)")
	flags.Int("max-size", d.Options.MaxOutputSize, "Longest output side in pixels")

	load := func(cmd *cobra.Command) (*app.App, error) {
		for name, key := range flagKeys {
			if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
				return nil, errors.Wrapf(err, "failed to bind --%s", name)
			}
		}
		if configPath == "" {
			if _, err := os.Stat(config.DefaultPath); err == nil {
				configPath = config.DefaultPath
			}
		}
		cfg, err := config.LoadPreset(v, configPath, preset)
		if err != nil {
			return nil, err
		}
		if noLight, _ := flags.GetBool("no-lighting"); noLight {
			cfg.Options.PreserveLighting = false
		}
		return app.New(cfg)
	}

	root.AddCommand(
		replaceCommand(load),
		batchCommand(load),
		assessCommand(),
		versionCommand(),
	)
	return root
}

type loader func(cmd *cobra.Command) (*app.App, error)

func outputFlags(cmd *cobra.Command) *app.OutputOptions {
	out := &app.OutputOptions{}
	cmd.Flags().StringVarP(&out.Dir, "output", "o", ".", "Output directory")
	cmd.Flags().BoolVar(&out.Debug, "debug-images", false, "Also write mask, texture, warped, lighting and pre-blend images")
	cmd.Flags().BoolVar(&out.Report, "report", true, "Write a JSON report next to each output")
	return out
}

func replaceCommand(load loader) *cobra.Command {
	var out *app.OutputOptions
	command := &cobra.Command{
		Use:   "replace <kitchen image> <material image>",
		Short: "Replace the countertop in one kitchen image.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.ReplaceFile(cmd.Context(), args[0], args[1], *out)
			if err != nil {
				return errors.Wrapf(err, "could not replace countertop in '%v'", args[0])
			}
			printQuality(cmd, report.Output, report.Quality)
			return nil
		},
	}
	out = outputFlags(command)
	return command
}

func batchCommand(load loader) *cobra.Command {
	var out *app.OutputOptions
	command := &cobra.Command{
		Use:   "batch <material image> <kitchen image>...",
		Short: "Apply one material to several kitchen images.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			a.On(app.EventImageFailed, func(data interface{}) {
				f := data.(app.FailedImage)
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s: %v\n", f.Path, f.Err)
			})

			reports, err := a.BatchFiles(cmd.Context(), args[1:], args[0], *out)
			if err != nil {
				return err
			}
			for _, r := range reports {
				printQuality(cmd, r.Output, r.Quality)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d images processed\n", len(reports), len(args)-1)
			if len(reports) == 0 {
				return errors.New("no image could be processed")
			}
			return nil
		},
	}
	out = outputFlags(command)
	return command
}

// assessCommand re-scores a report written by replace or batch.
func assessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assess <report.json>",
		Short: "Print the quality assessment of a previous result.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrapf(err, "could not read report '%v'", args[0])
			}
			var report app.Report
			if err := json.Unmarshal(data, &report); err != nil {
				return errors.Wrapf(err, "could not parse report '%v'", args[0])
			}
			q := pipeline.AssessQuality(report.Metadata, config.DefaultParams().Quality)
			printQuality(cmd, report.Output, q)
			return nil
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func printQuality(cmd *cobra.Command, output string, q pipeline.Quality) {
	w := cmd.OutOrStdout()
	b := q.Breakdown
	fmt.Fprintf(w, "%s: quality %.2f (segmentation %.2f, perspective %.2f, lighting %.2f, blending %.2f)\n",
		output, q.OverallScore, b.Segmentation, b.Perspective, b.Lighting, b.Blending)
	for _, r := range q.Recommendations {
		fmt.Fprintf(w, "  - %s\n", r)
	}
}
