// Package config loads asremap.toml, the per-project settings of the
// asremap tool: which remap function to run, whether to verify modules
// around the pass and how to trace it.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"

	"asremap/internal/remap"
	"asremap/internal/trace"
	"asremap/internal/types"
)

// Remap modes accepted in [remap].mode.
const (
	ModeAll      = "all"
	ModeReserved = "reserved"
	ModeTable    = "table"
	ModeIdentity = "identity"
)

var modes = []string{ModeAll, ModeReserved, ModeTable, ModeIdentity}

// ErrUnknownMode is returned for a [remap].mode outside the known set.
var ErrUnknownMode = errors.New("unknown remap mode")

// Config is the decoded asremap.toml. Path is empty when defaults are used.
type Config struct {
	Path   string       `toml:"-"`
	Remap  RemapConfig  `toml:"remap"`
	Verify VerifyConfig `toml:"verify"`
	Trace  TraceConfig  `toml:"trace"`
}

// RemapConfig selects the remap function.
type RemapConfig struct {
	Mode         string           `toml:"mode"`
	Generic      int64            `toml:"generic"`
	FirstSpecial int64            `toml:"first_special"`
	LastSpecial  int64            `toml:"last_special"`
	Table        map[string]int64 `toml:"table"`
}

// VerifyConfig toggles structural verification around the pass.
type VerifyConfig struct {
	Before bool `toml:"before"`
	After  bool `toml:"after"`
}

// TraceConfig mirrors the --trace flags.
type TraceConfig struct {
	Level  string `toml:"level"`
	Mode   string `toml:"mode"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// Default returns the configuration used when no asremap.toml exists.
func Default() Config {
	return Config{
		Remap: RemapConfig{
			Mode:         ModeReserved,
			Generic:      int64(remap.Generic),
			FirstSpecial: int64(remap.FirstSpecial),
			LastSpecial:  int64(remap.LastSpecial),
		},
		Verify: VerifyConfig{Before: true, After: true},
		Trace:  TraceConfig{Level: "off", Mode: "stream", Format: "auto", Output: "-"},
	}
}

// Load finds asremap.toml above startDir and decodes it. Without a file it
// returns Default.
func Load(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile decodes path over the defaults and validates the result.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if !slices.Contains(modes, c.Remap.Mode) {
		errs = append(errs, fmt.Errorf("[remap].mode %q: %w (expected: %s)", c.Remap.Mode, ErrUnknownMode, strings.Join(modes, "|")))
	}
	for _, f := range []struct {
		key string
		val int64
	}{
		{"generic", c.Remap.Generic},
		{"first_special", c.Remap.FirstSpecial},
		{"last_special", c.Remap.LastSpecial},
	} {
		if _, err := addrSpace(f.val); err != nil {
			errs = append(errs, fmt.Errorf("[remap].%s: %w", f.key, err))
		}
	}
	if c.Remap.FirstSpecial > c.Remap.LastSpecial {
		errs = append(errs, fmt.Errorf("[remap].first_special %d is above last_special %d", c.Remap.FirstSpecial, c.Remap.LastSpecial))
	}
	if _, err := c.Remap.table(); err != nil {
		errs = append(errs, err)
	}
	if _, err := trace.ParseLevel(c.Trace.Level); err != nil {
		errs = append(errs, fmt.Errorf("[trace].level: %w", err))
	}
	if _, err := trace.ParseMode(c.Trace.Mode); err != nil {
		errs = append(errs, fmt.Errorf("[trace].mode: %w", err))
	}
	if _, err := trace.ParseFormat(c.Trace.Format); err != nil {
		errs = append(errs, fmt.Errorf("[trace].format: %w", err))
	}
	return errors.Join(errs...)
}

// Func builds the remap function. Table entries apply first, then the
// mode.
func (r RemapConfig) Func() (remap.Func, error) {
	generic, err := addrSpace(r.Generic)
	if err != nil {
		return nil, fmt.Errorf("[remap].generic: %w", err)
	}
	first, err := addrSpace(r.FirstSpecial)
	if err != nil {
		return nil, fmt.Errorf("[remap].first_special: %w", err)
	}
	last, err := addrSpace(r.LastSpecial)
	if err != nil {
		return nil, fmt.Errorf("[remap].last_special: %w", err)
	}
	tbl, err := r.table()
	if err != nil {
		return nil, err
	}

	var base remap.Func
	switch r.Mode {
	case ModeAll:
		base = remap.Range(0, types.MaxAddrSpace, generic)
	case ModeReserved:
		base = remap.Range(first, last, generic)
	case ModeTable, ModeIdentity:
		base = remap.Identity
	default:
		return nil, fmt.Errorf("[remap].mode %q: %w", r.Mode, ErrUnknownMode)
	}
	if len(tbl) == 0 {
		return base, nil
	}
	return remap.Chain(remap.Table(tbl), base), nil
}

func (r RemapConfig) table() (map[types.AddrSpace]types.AddrSpace, error) {
	if len(r.Table) == 0 {
		return nil, nil
	}
	out := make(map[types.AddrSpace]types.AddrSpace, len(r.Table))
	var errs []error
	for key, val := range r.Table {
		k, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("[remap.table] key %q is not an address space", key))
			continue
		}
		from, err := addrSpace(k)
		if err != nil {
			errs = append(errs, fmt.Errorf("[remap.table] key %q: %w", key, err))
			continue
		}
		to, err := addrSpace(val)
		if err != nil {
			errs = append(errs, fmt.Errorf("[remap.table] %q: %w", key, err))
			continue
		}
		out[from] = to
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

func addrSpace(v int64) (types.AddrSpace, error) {
	u, err := safecast.Conv[uint32](v)
	if err != nil || types.AddrSpace(u) > types.MaxAddrSpace {
		return 0, fmt.Errorf("address space %d out of range [0, %d]", v, types.MaxAddrSpace)
	}
	return types.AddrSpace(u), nil
}
