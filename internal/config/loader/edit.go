package loader

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/jsonc"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// EditSetting writes value at key in the JSON settings file at path,
// creating the file if needed. Keys use dot paths with backslash escapes
// ("codeintel_config.Node\.js.node"). Comments in the file are dropped.
func EditSetting(path, key string, value any) error {
	return editJSON(path, func(doc []byte) ([]byte, error) {
		return sjson.SetBytes(doc, key, value)
	})
}

// EditSettingRaw is like EditSetting but takes the value as a JSON literal.
func EditSettingRaw(path, key, raw string) error {
	if !gjson.Valid(raw) {
		return errors.Newf("invalid JSON value for %s: %s", key, raw)
	}
	return editJSON(path, func(doc []byte) ([]byte, error) {
		return sjson.SetRawBytes(doc, key, []byte(raw))
	})
}

// DeleteSetting removes key from the JSON settings file at path.
func DeleteSetting(path, key string) error {
	return editJSON(path, func(doc []byte) ([]byte, error) {
		return sjson.DeleteBytes(doc, key)
	})
}

func editJSON(path string, edit func([]byte) ([]byte, error)) error {
	if f, ok := FormatOf(path); !ok || f != FormatJSONC {
		return errors.Newf("settings file %s is not JSON; edit it by hand", path)
	}

	doc, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		doc = []byte("{}")
	case err != nil:
		return errors.Wrapf(err, "reading settings file %s", path)
	default:
		doc = jsonc.ToJSON(doc)
		if !gjson.ValidBytes(doc) {
			return &ParseError{Path: path, Message: "file is not valid JSON"}
		}
	}

	out, err := edit(doc)
	if err != nil {
		return errors.Wrapf(err, "editing %s", path)
	}
	out = pretty.PrettyOptions(out, &pretty.Options{Width: 80, Indent: "    "})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating settings directory")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return errors.Wrapf(err, "writing settings file %s", path)
	}
	return errors.Wrapf(os.Rename(tmp, path), "replacing settings file %s", path)
}
