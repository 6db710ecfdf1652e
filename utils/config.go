package utils

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"sh2edit/tables"
	"sh2edit/types"
	"sh2edit/writers"
)

const CONFIG_FILENAME = "sh2edit.ini"

// Config is everything sh2edit.ini can set.  Example:
//
//	dir = C:\Users\me\AppData\Local\SilentHill2\Saved\SaveGames\76561198000000000
//	backup = true
//	level = 9
//	settle = 2s
//
//	[health]
//	min = 0
//	max = 100
//
//	[items]
//	names = HealthDrink, Syringe, FirstAidKit, Bullets
//
//	[signature.Bandage]
//	kind = item
//	anchor = Quantity
//	window = 100
//	skip = 26
//	encoding = int32
type Config struct {
	Source string // file the config came from, empty for defaults

	Dir    string
	Backup bool
	Level  int
	Settle time.Duration

	HealthMin, HealthMax float64
	CountMin, CountMax   float64

	Weapons    []string
	Items      []string
	Signatures []types.Signature
}

func DefaultConfig() *Config {
	wd, _ := os.Getwd()
	return &Config{
		Dir:       wd,
		Backup:    true,
		Level:     writers.DEFAULT_LEVEL,
		Settle:    2 * time.Second,
		HealthMin: 0,
		HealthMax: 100,
		CountMin:  0,
		CountMax:  999,
		Weapons:   append([]string{}, tables.Weapons...),
		Items:     append([]string{}, tables.Items...),
	}
}

// LoadConfig reads the config file.  With an empty filename, sh2edit.ini in
// the working directory is used if it exists, and defaults otherwise.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	if filename == "" {
		if _, err := os.Stat(CONFIG_FILENAME); errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		filename = CONFIG_FILENAME
	}

	file, err := ini.Load(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: config: %v", types.ErrIO, err)
	}
	cfg.Source = filename

	if err := cfg.apply(file); err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return cfg, nil
}

func (cfg *Config) apply(file *ini.File) error {
	// default section can be represented as empty string
	top := file.Section("")
	if dir := top.Key("dir").String(); dir != "" {
		cfg.Dir = dir
	}

	var err error
	if top.HasKey("backup") {
		if cfg.Backup, err = top.Key("backup").Bool(); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	}
	if top.HasKey("level") {
		if cfg.Level, err = top.Key("level").Int(); err != nil {
			return fmt.Errorf("level: %w", err)
		}
		if cfg.Level < 1 || cfg.Level > 9 {
			return fmt.Errorf("level must be between 1 and 9, got %v", cfg.Level)
		}
	}
	if top.HasKey("settle") {
		if cfg.Settle, err = top.Key("settle").Duration(); err != nil {
			return fmt.Errorf("settle: %w", err)
		}
	}

	ranges := []struct {
		section  string
		min, max *float64
	}{
		{"health", &cfg.HealthMin, &cfg.HealthMax},
		{"count", &cfg.CountMin, &cfg.CountMax},
	}
	for _, r := range ranges {
		sec := file.Section(r.section)
		for key, into := range map[string]*float64{"min": r.min, "max": r.max} {
			if !sec.HasKey(key) {
				continue
			}
			if *into, err = sec.Key(key).Float64(); err != nil {
				return fmt.Errorf("%v.%v: %w", r.section, key, err)
			}
		}
		if *r.min > *r.max {
			return fmt.Errorf("%v: min %v is above max %v", r.section, *r.min, *r.max)
		}
	}

	if sec := file.Section("weapons"); sec.HasKey("names") {
		cfg.Weapons = names(sec.Key("names"))
	}
	if sec := file.Section("items"); sec.HasKey("names") {
		cfg.Items = names(sec.Key("names"))
	}

	for _, sec := range file.Sections() {
		name, ok := strings.CutPrefix(sec.Name(), "signature.")
		if !ok {
			continue
		}
		sig, err := section_signature(name, sec)
		if err != nil {
			return fmt.Errorf("[%v]: %w", sec.Name(), err)
		}
		cfg.Signatures = append(cfg.Signatures, sig)
	}

	return nil
}

func names(key *ini.Key) []string {
	out := []string{}
	for _, n := range key.Strings(",") {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// section_signature builds a signature from a [signature.<name>] section.
// Anything left out takes the standard value for the kind.
func section_signature(name string, sec *ini.Section) (types.Signature, error) {
	kind, err := types.ParseKind(sec.Key("kind").MustString("item"))
	if err != nil {
		return types.Signature{}, err
	}
	sig := tables.Of(kind, name)
	if token := sec.Key("token").String(); token != "" {
		sig.Name = token
	}
	if sig.Name == "" {
		return types.Signature{}, errors.New("empty token")
	}
	if sec.HasKey("anchor") {
		sig.Anchor = sec.Key("anchor").String()
	}
	if sec.HasKey("window") {
		if sig.Window, err = sec.Key("window").Int(); err != nil {
			return types.Signature{}, fmt.Errorf("window: %w", err)
		}
	}
	if sec.HasKey("skip") {
		if sig.Skip, err = sec.Key("skip").Int(); err != nil {
			return types.Signature{}, fmt.Errorf("skip: %w", err)
		}
	}
	if sec.HasKey("encoding") {
		if sig.Encoding, err = types.ParseEncoding(sec.Key("encoding").String()); err != nil {
			return types.Signature{}, err
		}
	}
	if sig.Skip < 0 || sig.Window < 0 {
		return types.Signature{}, errors.New("skip and window must not be negative")
	}
	if sig.Anchor != "" && sig.Window == 0 {
		return types.Signature{}, errors.New("anchor needs a window")
	}
	return sig, nil
}

// Table builds the signature table for this run.
func (cfg *Config) Table() *tables.Table {
	return tables.New(cfg.Weapons, cfg.Items, cfg.Signatures...)
}

// Range is the safe range for values of a kind.
func (cfg *Config) Range(kind types.Kind) (float64, float64) {
	if kind == types.KIND_HEALTH {
		return cfg.HealthMin, cfg.HealthMax
	}
	return cfg.CountMin, cfg.CountMax
}
