package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/prymatex/codeintel/internal/addon"
	"github.com/prymatex/codeintel/internal/config"
	"github.com/prymatex/codeintel/internal/config/loader"
	"github.com/prymatex/codeintel/internal/config/notify"
)

func (c *cli) resolveCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "resolve <syntax>",
		Short: "Show the gate result and effective settings for a syntax",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.openConfig(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cfg.Close()

			snap := cfg.Resolver().Snapshot()
			language, enabled := snap.Gate(args[0])
			res := resolution{
				Syntax:   args[0],
				Language: language,
				Enabled:  enabled,
				Snapshot: snap.ID(),
				Version:  snap.Version(),
			}
			eff := snap.Resolve(language)
			res.Override = eff.HasOverride()
			if enabled {
				res.Config = eff.Map()
			}

			if asJSON {
				return writeJSON(c.out, res)
			}
			formatResolution(c.out, res)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *cli) excludeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exclude <language> <path>...",
		Short: "Check paths against a language's scan exclusions",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.openConfig(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cfg.Close()

			r := cfg.Resolver()
			for _, path := range args[1:] {
				formatExclusion(c.out, path, r.ShouldExcludePath(args[0], path))
			}
			return nil
		},
	}
}

func (c *cli) triggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <language> <scope>...",
		Short: "Check whether live completion triggers in a scope stack",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.openConfig(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cfg.Close()

			eff := cfg.Resolver().Resolve(args[0])
			formatTrigger(c.out, eff.ShouldTriggerLiveCompletion(args[1:]))
			return nil
		},
	}
}

func (c *cli) languagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List enabled languages, overrides and syntax aliases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.openConfig(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cfg.Close()

			formatLanguages(c.out, cfg.Resolver().Snapshot())
			return nil
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print a merged setting and the layer it comes from",
		Long:  "Print a merged setting. Paths are dot-separated; escape literal dots with a backslash (codeintel_config.Node\\.js).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.openConfig(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cfg.Close()

			data, err := json.Marshal(cfg.Merged())
			if err != nil {
				return errors.Wrap(err, "encoding settings")
			}
			result := gjson.GetBytes(data, args[0])
			if !result.Exists() {
				return errors.Wrapf(config.ErrSettingNotFound, "%s", args[0])
			}

			writeRaw(c.out, []byte(result.Raw))
			if name := cfg.WhichLayer(args[0]); name != "" {
				fmt.Fprintf(c.errOut, "(from %s)\n", name)
			}
			return nil
		},
	}
}

func (c *cli) setCmd() *cobra.Command {
	var project bool
	cmd := &cobra.Command{
		Use:   "set <key> <json-value>",
		Short: "Write a setting into the user (or project) JSON settings file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := args[0], args[1]
			if !gjson.Valid(raw) {
				return errors.Newf("value %q is not valid JSON", raw)
			}

			cfg, err := c.openConfig(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer cfg.Close()

			// Validate against the schema before touching the file.
			if err := cfg.Set(key, gjson.Parse(raw).Value()); err != nil {
				return err
			}

			path := cfg.UserSettingsFile()
			if project {
				if path = cfg.ProjectSettingsFile(); path == "" {
					return errors.New("--project-file requires --project")
				}
			}
			if err := loader.EditSettingRaw(path, key, raw); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s %s in %s\n", okColor.Sprint("set"), key, path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&project, "project-file", false, "write to the project settings file")
	return cmd
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a settings file, or all loaded layers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New(
				config.WithUserConfigDir(c.configDir),
				config.WithProjectDir(c.project),
				config.WithWatcher(false),
			)
			if err != nil {
				return err
			}
			defer cfg.Close()

			var warnings []string
			if len(args) == 1 {
				if warnings, err = cfg.ValidateFile(args[0]); err != nil {
					return err
				}
			} else {
				if err := cfg.Load(cmd.Context()); err != nil {
					return err
				}
				warnings = cfg.Warnings()
				formatLayers(c.out, cfg.Layers())
			}

			for _, w := range warnings {
				fmt.Fprintf(c.out, "%s %s\n", warnColor.Sprint("warning:"), w)
			}
			fmt.Fprintln(c.out, okColor.Sprint("ok"))
			return nil
		},
	}
}

func (c *cli) shortcutsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shortcuts",
		Short: "List the key bindings the addon contributes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, def := range addon.DefaultShortcuts {
				ev, err := addon.ParseKey(def.Sequence)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s.%s\t%s\n", addon.ShortcutGroup, def.Name, addon.FormatKey(ev))
			}
			return nil
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload settings on change and print what changed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := c.openConfig(ctx, true)
			if err != nil {
				return err
			}
			defer cfg.Close()

			sub := cfg.Subscribe(func(ch notify.Change) {
				formatChange(c.out, ch)
			})
			defer sub.Unsubscribe()

			snap := cfg.Resolver().Snapshot()
			fmt.Fprintf(c.errOut, "watching %s (snapshot %d)\n", cfg.UserConfigDir(), snap.Version())
			<-ctx.Done()
			return nil
		},
	}
}
