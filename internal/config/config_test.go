package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"asremap/internal/types"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != "" {
		t.Fatalf("Path = %q, want empty", cfg.Path)
	}
	if cfg.Remap.Mode != ModeReserved || !cfg.Verify.Before || !cfg.Verify.After {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
}

func TestLoadSearchesParents(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root, `
[remap]
mode = "all"
generic = 1

[verify]
before = false

[trace]
level = "detail"
`)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	cfg, err := Load(nested)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Path != path {
		t.Fatalf("Path = %q, want %q", cfg.Path, path)
	}
	if cfg.Remap.Mode != ModeAll || cfg.Remap.Generic != 1 {
		t.Fatalf("remap section = %+v", cfg.Remap)
	}
	if cfg.Verify.Before || !cfg.Verify.After {
		t.Fatalf("verify section = %+v, want after kept from defaults", cfg.Verify)
	}
	if cfg.Trace.Level != "detail" || cfg.Trace.Mode != "stream" {
		t.Fatalf("trace section = %+v", cfg.Trace)
	}
	if cfg.Remap.FirstSpecial != 10 || cfg.Remap.LastSpecial != 13 {
		t.Fatalf("special range = [%d, %d], want defaults", cfg.Remap.FirstSpecial, cfg.Remap.LastSpecial)
	}
}

func TestLoadFileRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[remap\n", "failed to parse TOML"},
		{"unknown key", "[remap]\nmod = \"all\"\n", "unknown keys: remap.mod"},
		{"mode", "[remap]\nmode = \"some\"\n", "unknown remap mode"},
		{"range", "[remap]\nfirst_special = 14\nlast_special = 13\n", "is above last_special"},
		{"negative", "[remap]\ngeneric = -1\n", "[remap].generic"},
		{"too large", "[remap]\ngeneric = 16777216\n", "out of range"},
		{"table key", "[remap.table]\n\"x\" = 1\n", "is not an address space"},
		{"table value", "[remap.table]\n\"3\" = 99999999\n", "out of range"},
		{"trace level", "[trace]\nlevel = \"loud\"\n", "invalid trace level"},
		{"trace mode", "[trace]\nmode = \"disk\"\n", "invalid storage mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := LoadFile(path)
			if err == nil {
				t.Fatalf("LoadFile succeeded, want error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestRemapFunc(t *testing.T) {
	tests := []struct {
		name string
		cfg  RemapConfig
		in   []types.AddrSpace
		want []types.AddrSpace
	}{
		{
			name: "all",
			cfg:  RemapConfig{Mode: ModeAll},
			in:   []types.AddrSpace{0, 3, 10, types.MaxAddrSpace},
			want: []types.AddrSpace{0, 0, 0, 0},
		},
		{
			name: "all to one",
			cfg:  RemapConfig{Mode: ModeAll, Generic: 1},
			in:   []types.AddrSpace{0, 5},
			want: []types.AddrSpace{1, 1},
		},
		{
			name: "reserved",
			cfg:  RemapConfig{Mode: ModeReserved, FirstSpecial: 10, LastSpecial: 13},
			in:   []types.AddrSpace{3, 10, 13, 14},
			want: []types.AddrSpace{3, 0, 0, 14},
		},
		{
			name: "table",
			cfg:  RemapConfig{Mode: ModeTable, Table: map[string]int64{"3": 0, " 5 ": 6}},
			in:   []types.AddrSpace{3, 5, 10},
			want: []types.AddrSpace{0, 6, 10},
		},
		{
			name: "table then reserved",
			cfg:  RemapConfig{Mode: ModeReserved, FirstSpecial: 10, LastSpecial: 13, Table: map[string]int64{"4": 11}},
			in:   []types.AddrSpace{4, 11, 2},
			want: []types.AddrSpace{0, 0, 2},
		},
		{
			name: "identity",
			cfg:  RemapConfig{Mode: ModeIdentity},
			in:   []types.AddrSpace{0, 10},
			want: []types.AddrSpace{0, 10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := tt.cfg.Func()
			if err != nil {
				t.Fatalf("Func: %v", err)
			}
			for i, as := range tt.in {
				if got := fn(as); got != tt.want[i] {
					t.Errorf("fn(%d) = %d, want %d", as, got, tt.want[i])
				}
			}
		})
	}

	_, err := RemapConfig{Mode: "other"}.Func()
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("err = %v, want ErrUnknownMode", err)
	}
}
