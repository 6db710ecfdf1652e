// Package editor runs the read-modify-write cycle on a save file.
//
// Everything happens on an in-memory copy.  The destination file is written
// once, as the very last step, and only if every earlier step succeeded, so a
// failed run never leaves a half-written save behind.
package editor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sh2edit/readers"
	"sh2edit/types"
	"sh2edit/utils"
	"sh2edit/writers"
)

type State int

const (
	STATE_LOADED State = iota
	STATE_DECOMPRESSED
	STATE_PATCHED
	STATE_RECOMPRESSED
	STATE_WRITTEN
	STATE_FAILED
)

func (s State) String() string {
	switch s {
	case STATE_LOADED:
		return "loaded"
	case STATE_DECOMPRESSED:
		return "decompressed"
	case STATE_PATCHED:
		return "patched"
	case STATE_RECOMPRESSED:
		return "recompressed"
	case STATE_WRITTEN:
		return "written"
	case STATE_FAILED:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options are the per-run settings the editor cares about.
type Options struct {
	Level int // zlib level for the written body

	// Safe ranges.  Values outside them are written anyway, with a warning.
	HealthMin, HealthMax float64
	CountMin, CountMax   float64

	Backup bool      // back up the source before overwriting it
	Now    time.Time // for the backup name; zero means time.Now()
}

func OptionsFrom(cfg *utils.Config) Options {
	opts := Options{Level: cfg.Level, Backup: cfg.Backup}
	opts.HealthMin, opts.HealthMax = cfg.Range(types.KIND_HEALTH)
	opts.CountMin, opts.CountMax = cfg.Range(types.KIND_ITEM)
	return opts
}

// Range is the safe range for values of a kind.
func (o Options) Range(kind types.Kind) (float64, float64) {
	if kind == types.KIND_HEALTH {
		return o.HealthMin, o.HealthMax
	}
	return o.CountMin, o.CountMax
}

func DefaultOptions() Options {
	return OptionsFrom(utils.DefaultConfig())
}

// Edit is one requested change.
type Edit struct {
	Signature types.Signature
	Value     types.Scalar
}

type Status int

const (
	APPLIED Status = iota
	NOT_FOUND
)

// Result is what happened to one Edit.
type Result struct {
	Edit    Edit
	Status  Status
	Offset  int
	Old     types.Scalar
	Warning string // value outside the safe range, written anyway
}

// Err is nil for an applied edit and wraps types.ErrNotFound otherwise.
func (r Result) Err() error {
	if r.Status == NOT_FOUND {
		return fmt.Errorf("%w: no %q in the payload", types.ErrNotFound, r.Edit.Signature.Name)
	}
	return nil
}

// Reading is one value found by Inspect.
type Reading struct {
	Signature   types.Signature
	Found       bool
	Offset      int
	Value       types.Scalar
	Occurrences int   // of the name; more than 1 means the first one was used
	Err         error // value's offset is past the end of the payload
}

type Editor struct {
	Frame   *types.Frame
	Payload []byte
	State   State
	Applied int

	opts Options
	// sizes before any edits, for the summary
	original_compressed   uint32
	original_uncompressed uint32
}

// Load parses and decompresses a whole save file.
func Load(data []byte, opts Options) (*Editor, error) {
	frame, err := readers.ReadFrame(data)
	if err != nil {
		return nil, err
	}
	ed := &Editor{
		Frame:                 frame,
		State:                 STATE_LOADED,
		opts:                  opts,
		original_compressed:   frame.CompressedSize,
		original_uncompressed: frame.UncompressedSize,
	}

	ed.Payload, err = readers.Inflate(frame.Body, frame.UncompressedSize)
	if err != nil {
		ed.State = STATE_FAILED
		return nil, err
	}
	ed.State = STATE_DECOMPRESSED
	return ed, nil
}

// Dedupe drops all but the last edit for each signature.  Edits to different
// signatures touch different bytes, so their order does not matter.
func Dedupe(edits []Edit) []Edit {
	last := map[string]int{}
	for i, e := range edits {
		last[e.Signature.Key()] = i
	}
	out := []Edit{}
	for i, e := range edits {
		if last[e.Signature.Key()] == i {
			out = append(out, e)
		}
	}
	return out
}

// Apply makes the edits.  A signature that is not in the payload is reported
// as NOT_FOUND and the rest carry on.  An offset past the end of the payload
// means the save is not what we think it is, and stops everything.
func (ed *Editor) Apply(edits []Edit) ([]Result, error) {
	if ed.State != STATE_DECOMPRESSED && ed.State != STATE_PATCHED {
		return nil, fmt.Errorf("cannot apply edits to a save in state %v", ed.State)
	}

	results := []Result{}
	for _, edit := range Dedupe(edits) {
		sig := edit.Signature
		value := edit.Value
		if value.Encoding != sig.Encoding {
			// values are just numbers to the user
			value = convert(value, sig.Encoding)
		}
		result := Result{Edit: Edit{sig, value}}

		offset, ok := readers.Find(ed.Payload, sig)
		if !ok {
			result.Status = NOT_FOUND
			results = append(results, result)
			continue
		}

		old, err := readers.ReadScalar(ed.Payload, offset, sig.Encoding)
		if err != nil {
			ed.State = STATE_FAILED
			return results, fmt.Errorf("%v: %w", sig, err)
		}
		if err := writers.WriteScalar(ed.Payload, offset, sig.Width(), value); err != nil {
			ed.State = STATE_FAILED
			return results, fmt.Errorf("%v: %w", sig, err)
		}

		result.Status = APPLIED
		result.Offset = offset
		result.Old = old
		result.Warning = ed.check_range(sig, value)
		results = append(results, result)
		ed.Applied++
	}

	ed.State = STATE_PATCHED
	return results, nil
}

func convert(v types.Scalar, enc types.Encoding) types.Scalar {
	if enc == types.ENC_FLOAT32 {
		return types.Float(float32(v.Number()))
	}
	return types.Int(int32(v.Number()))
}

func (ed *Editor) check_range(sig types.Signature, v types.Scalar) string {
	lo, hi := ed.opts.Range(sig.Kind)
	n := v.Number()
	if n != n || n < lo || n > hi { // n != n catches NaN
		return fmt.Sprintf("%v is outside the usual range %v-%v", v, lo, hi)
	}
	return ""
}

// Inspect reads the current value of every signature, without changing anything.
func (ed *Editor) Inspect(sigs []types.Signature) []Reading {
	out := []Reading{}
	for _, sig := range sigs {
		r := Reading{Signature: sig, Occurrences: readers.Occurrences(ed.Payload, sig)}
		offset, ok := readers.Find(ed.Payload, sig)
		if ok {
			r.Offset = offset
			r.Value, r.Err = readers.ReadScalar(ed.Payload, offset, sig.Encoding)
			r.Found = r.Err == nil
		}
		out = append(out, r)
	}
	return out
}

// Encode recompresses the payload and rebuilds the file.
func (ed *Editor) Encode() ([]byte, error) {
	if ed.State == STATE_FAILED {
		return nil, errors.New("cannot encode a failed edit")
	}
	body, err := writers.Deflate(ed.Payload, ed.opts.Level)
	if err != nil {
		ed.State = STATE_FAILED
		return nil, err
	}
	ed.Frame.Body = body
	ed.Frame.CompressedSize = uint32(len(body))
	ed.Frame.UncompressedSize = uint32(len(ed.Payload))
	ed.State = STATE_RECOMPRESSED
	return writers.FrameBytes(ed.Frame), nil
}

// Summary describes the size change of the last Encode.
type Summary struct {
	OldCompressed, NewCompressed     uint32
	OldUncompressed, NewUncompressed uint32
}

func (ed *Editor) Summary() Summary {
	return Summary{
		ed.original_compressed, ed.Frame.CompressedSize,
		ed.original_uncompressed, ed.Frame.UncompressedSize,
	}
}

// Report is the outcome of Run.
type Report struct {
	Source  string
	Output  string
	Backup  string // empty if none was made
	Results []Result
	Summary Summary
	State   State
}

// Missing lists the edits that were not found.
func (r *Report) Missing() []Result {
	out := []Result{}
	for _, res := range r.Results {
		if res.Status == NOT_FOUND {
			out = append(out, res)
		}
	}
	return out
}

// Run edits the save at source and writes it to output (source if empty).
//
// Order matters here: read, decode, back up, patch, encode, then write.  The
// backup happens only when the source itself is about to be overwritten, and
// a failed backup stops the run before anything is changed.
func Run(source string, output string, edits []Edit, opts Options) (*Report, error) {
	if output == "" {
		output = source
	}
	report := &Report{Source: source, Output: output, State: STATE_FAILED}

	data, err := os.ReadFile(source)
	if err != nil {
		return report, fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	ed, err := Load(data, opts)
	if err != nil {
		return report, err
	}

	if opts.Backup && utils.Same(source, output) {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}
		report.Backup, err = utils.Backup(source, now)
		if err != nil {
			return report, err
		}
	}

	report.Results, err = ed.Apply(edits)
	if err != nil {
		return report, err
	}

	out, err := ed.Encode()
	if err != nil {
		return report, err
	}
	report.Summary = ed.Summary()

	if err := write_file(output, out); err != nil {
		return report, err
	}
	ed.State = STATE_WRITTEN
	report.State = ed.State
	return report, nil
}

// write_file replaces filename with data in one go: the bytes go to a fresh
// temporary file in the same directory, which is then renamed over the target.
func write_file(filename string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(filename); err == nil {
		mode = info.Mode().Perm()
	}

	f, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	tmp := f.Name()
	fail := func(err error) error {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	if _, err := f.Write(data); err != nil {
		return fail(err)
	}
	if err := f.Chmod(mode); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	return nil
}
