// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package settings

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

// Values holds overridden setting values. A nil *Values, or the zero value,
// reads every setting's default. Values is not safe for concurrent mutation;
// it is built once and then handed, read-only, to an optimization run.
type Values struct {
	overrides map[string]interface{}
}

// ErrUnknownSetting is returned when a key is not registered.
var ErrUnknownSetting = errors.New("unknown setting")

func (sv *Values) get(key string) (interface{}, bool) {
	if sv == nil || sv.overrides == nil {
		return nil, false
	}
	v, ok := sv.overrides[key]
	return v, ok
}

// Set parses and stores an override for the named setting.
func (sv *Values) Set(key, encoded string) error {
	ws, ok := registry[key]
	if !ok {
		return errors.Mark(errors.Newf("unknown setting %q", key), ErrUnknownSetting)
	}
	v, err := ws.setting.decode(encoded)
	if err != nil {
		return err
	}
	if sv.overrides == nil {
		sv.overrides = make(map[string]interface{})
	}
	sv.overrides[key] = v
	return nil
}

// Reset removes any override for the named setting.
func (sv *Values) Reset(key string) {
	delete(sv.overrides, key)
}

// Overrides returns the sorted list of overridden keys.
func (sv *Values) Overrides() []string {
	if sv == nil {
		return nil
	}
	res := make([]string, 0, len(sv.overrides))
	for k := range sv.overrides {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

// LoadYAML applies overrides from a YAML document mapping setting keys to
// values, e.g.:
//
//	sql.optimizer.cost.buffer_pages: 2000
//	sql.optimizer.join_search.dominant_first_nodes.enabled: false
func (sv *Values) LoadYAML(data []byte) error {
	var raw yaml.MapSlice
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "parsing settings")
	}
	for _, item := range raw {
		key, ok := item.Key.(string)
		if !ok {
			return errors.Newf("setting key %v is not a string", item.Key)
		}
		if err := sv.Set(key, fmt.Sprint(item.Value)); err != nil {
			return err
		}
	}
	return nil
}

// setFlag is a repeatable "--set key=value" flag.
type setFlag struct {
	sv *Values
}

var _ pflag.Value = setFlag{}

func (f setFlag) String() string {
	if f.sv == nil {
		return ""
	}
	return strings.Join(f.sv.Overrides(), ",")
}

func (f setFlag) Set(s string) error {
	kv := strings.SplitN(s, "=", 2)
	if len(kv) != 2 {
		return errors.Newf("expected key=value, got %q", s)
	}
	return f.sv.Set(strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1]))
}

func (setFlag) Type() string { return "key=value" }

// AddFlags registers a repeatable --set flag that overrides settings in sv.
func (sv *Values) AddFlags(fs *pflag.FlagSet) {
	fs.Var(setFlag{sv: sv}, "set", "override an optimizer setting (repeatable)")
}
