package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/tidwall/pretty"

	"github.com/prymatex/codeintel/internal/config"
	"github.com/prymatex/codeintel/internal/config/notify"
	"github.com/prymatex/codeintel/internal/resolver"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	offColor  = color.New(color.FgRed)
	keyColor  = color.New(color.FgCyan)
)

// resolution is the result of the resolve command.
type resolution struct {
	Syntax   string         `json:"syntax"`
	Language string         `json:"language"`
	Enabled  bool           `json:"enabled"`
	Override bool           `json:"override"`
	Snapshot string         `json:"snapshot"`
	Version  uint64         `json:"version"`
	Config   map[string]any `json:"config"`
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeRaw(w, data)
	return nil
}

// writeRaw pretty-prints a JSON document, colored unless color is off.
func writeRaw(w io.Writer, data []byte) {
	out := pretty.PrettyOptions(data, &pretty.Options{Indent: "  ", SortKeys: true})
	if !color.NoColor {
		out = pretty.Color(out, pretty.TerminalStyle)
	}
	fmt.Fprint(w, string(out))
}

func formatResolution(w io.Writer, r resolution) {
	state := okColor.Sprint("enabled")
	if !r.Enabled {
		state = offColor.Sprint("disabled")
	}
	fmt.Fprintf(w, "%s -> %s (%s)\n", r.Syntax, keyColor.Sprint(r.Language), state)
	fmt.Fprintf(w, "snapshot %s v%d\n", r.Snapshot, r.Version)
	if r.Config == nil {
		return
	}

	keys := make([]string, 0, len(r.Config))
	for k := range r.Config {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		v, _ := json.Marshal(r.Config[k])
		fmt.Fprintf(tw, "%s\t%s\n", k, v)
	}
	tw.Flush()
}

func formatExclusion(w io.Writer, path string, excluded bool) {
	if excluded {
		fmt.Fprintf(w, "%s\t%s\n", offColor.Sprint("excluded"), path)
		return
	}
	fmt.Fprintf(w, "%s\t%s\n", okColor.Sprint("scanned"), path)
}

func formatTrigger(w io.Writer, trigger bool) {
	if trigger {
		fmt.Fprintln(w, okColor.Sprint("trigger"))
		return
	}
	fmt.Fprintln(w, warnColor.Sprint("suppressed"))
}

func formatLanguages(w io.Writer, snap *resolver.Snapshot) {
	overrides := map[string]bool{}
	for _, lang := range snap.OverrideLanguages() {
		overrides[lang] = true
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tOVERRIDE")
	for _, lang := range snap.Languages() {
		mark := ""
		if overrides[lang] {
			mark = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\n", lang, mark)
	}
	tw.Flush()

	if dropped := snap.DroppedOverrides(); len(dropped) > 0 {
		fmt.Fprintf(w, "%s ignored non-object overrides: %s\n", warnColor.Sprint("warning:"), strings.Join(dropped, ", "))
	}

	aliases := snap.Aliases()
	if len(aliases) == 0 {
		return
	}
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYNTAX\tLANGUAGE")
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%s\n", name, aliases[name])
	}
	tw.Flush()
}

func formatLayers(w io.Writer, layers []config.LayerInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LAYER\tPRIORITY\tKEYS\tPATH")
	for _, l := range layers {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", l.Name, l.Priority, l.Keys, l.Path)
	}
	tw.Flush()
}

func formatChange(w io.Writer, ch notify.Change) {
	switch ch.Type {
	case notify.ChangeReload:
		fmt.Fprintf(w, "%s snapshot v%d %s (%s)\n", okColor.Sprint("reload"), ch.Version, ch.SnapshotID, ch.Source)
	case notify.ChangeDelete:
		fmt.Fprintf(w, "%s %s\n", offColor.Sprint("unset"), ch.Path)
	default:
		v, _ := json.Marshal(ch.NewValue)
		fmt.Fprintf(w, "%s %s = %s\n", keyColor.Sprint("set"), ch.Path, v)
	}
}
