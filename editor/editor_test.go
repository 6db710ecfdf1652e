package editor

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sh2edit/readers"
	"sh2edit/savetest"
	"sh2edit/tables"
	"sh2edit/types"
	"sh2edit/utils"
)

func load(t *testing.T, file []byte) *Editor {
	t.Helper()
	ed, err := Load(file, DefaultOptions())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ed.State != STATE_DECOMPRESSED {
		t.Fatalf("state after load = %v", ed.State)
	}
	return ed
}

func reading(t *testing.T, ed *Editor, sig types.Signature) Reading {
	t.Helper()
	r := ed.Inspect([]types.Signature{sig})[0]
	if !r.Found {
		t.Fatalf("%v not found", sig)
	}
	return r
}

func TestItemQuantity(t *testing.T) {
	payload := savetest.Payload(savetest.Health(40), savetest.Item("HealthDrink", 7))
	ed := load(t, savetest.File(145, payload))

	results, err := ed.Apply([]Edit{{tables.Item("HealthDrink"), types.Int(99)}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Status != APPLIED || results[0].Old.Int() != 7 {
		t.Fatalf("results = %+v", results)
	}
	if len(ed.Payload) != len(payload) {
		t.Errorf("payload length %v -> %v", len(payload), len(ed.Payload))
	}

	// only the four value bytes changed
	diff := 0
	for i := range payload {
		if payload[i] != ed.Payload[i] {
			diff++
			if i < results[0].Offset || i >= results[0].Offset+4 {
				t.Errorf("byte 0x%x changed outside the value", i)
			}
		}
	}
	if diff == 0 {
		t.Error("nothing changed")
	}

	out, err := ed.Encode()
	if err != nil {
		t.Fatal(err)
	}
	again := load(t, out)
	if r := reading(t, again, tables.Item("HealthDrink")); r.Value.Int() != 99 {
		t.Errorf("HealthDrink = %v after reload, want 99", r.Value)
	}
}

func TestSizesAfterPatch(t *testing.T) {
	// 4000 bytes that don't compress to nothing
	records := [][]byte{savetest.Weapon("Pistol", 10)}
	for len(bytes.Join(records, nil)) < 3900 {
		records = append(records, savetest.Filler(97), []byte{byte(len(records) * 37), byte(len(records) * 11)})
	}
	payload := bytes.Join(records, nil)
	payload = append(payload, savetest.Filler(4000-len(payload))...)

	file := savetest.File(150, payload)
	ed := load(t, file)
	if ed.Frame.UncompressedSize != 4000 {
		t.Fatalf("uncompressed size %v", ed.Frame.UncompressedSize)
	}

	if _, err := ed.Apply([]Edit{{tables.Weapon("Pistol"), types.Int(999)}}); err != nil {
		t.Fatal(err)
	}
	out, err := ed.Encode()
	if err != nil {
		t.Fatal(err)
	}

	frame, err := readers.ReadFrame(out)
	if err != nil {
		t.Fatal(err)
	}
	if frame.UncompressedSize != 4000 {
		t.Errorf("uncompressed size = %v, want 4000", frame.UncompressedSize)
	}
	if int(frame.CompressedSize) != len(frame.Body) || int(frame.CompressedSize) != len(out)-150 {
		t.Errorf("compressed size = %v, body is %v", frame.CompressedSize, len(frame.Body))
	}
	if !bytes.Equal(out[:142], file[:142]) {
		t.Error("header bytes changed")
	}
	if s := ed.Summary(); s.OldUncompressed != 4000 || s.NewUncompressed != 4000 || s.NewCompressed != frame.CompressedSize {
		t.Errorf("summary = %+v", s)
	}
}

func TestNotFoundContinues(t *testing.T) {
	ed := load(t, savetest.File(140, savetest.Payload(savetest.Weapon("Pistol", 1))))

	results, err := ed.Apply([]Edit{
		{tables.Weapon("Rifle"), types.Int(50)},
		{tables.Weapon("Pistol"), types.Int(60)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Status != NOT_FOUND || results[1].Status != APPLIED {
		t.Errorf("results = %+v", results)
	}
	if ed.Applied != 1 || ed.State != STATE_PATCHED {
		t.Errorf("applied %v, state %v", ed.Applied, ed.State)
	}
	if !errors.Is(results[0].Err(), types.ErrNotFound) || results[1].Err() != nil {
		t.Errorf("errors = %v, %v", results[0].Err(), results[1].Err())
	}
}

func TestRangeErrorIsFatal(t *testing.T) {
	// the weapon name is right at the end, no room for the value
	payload := append(savetest.Filler(30), "Shotgun\x00\x01"...)
	ed := load(t, savetest.File(140, payload))

	_, err := ed.Apply([]Edit{{tables.Weapon("Shotgun"), types.Int(3)}})
	if !errors.Is(err, types.ErrRange) {
		t.Fatalf("expected range error, got %v", err)
	}
	if ed.State != STATE_FAILED {
		t.Errorf("state = %v", ed.State)
	}
	if _, err := ed.Encode(); err == nil {
		t.Error("Encode after failure should fail")
	}

	r := ed.Inspect([]types.Signature{tables.Weapon("Shotgun")})[0]
	if r.Found || !errors.Is(r.Err, types.ErrRange) {
		t.Errorf("reading = %+v", r)
	}
}

func TestDedupeKeepsLast(t *testing.T) {
	edits := Dedupe([]Edit{
		{tables.Weapon("Pistol"), types.Int(1)},
		{tables.Health(), types.Float(50)},
		{tables.Weapon("Pistol"), types.Int(2)},
	})
	if len(edits) != 2 || edits[0].Signature.Kind != types.KIND_HEALTH || edits[1].Value.Int() != 2 {
		t.Errorf("Dedupe = %+v", edits)
	}
}

func TestRangeWarning(t *testing.T) {
	ed := load(t, savetest.File(140, savetest.Payload(savetest.Health(50), savetest.Item("Syringe", 1))))

	results, err := ed.Apply([]Edit{
		{tables.Health(), types.Float(250)},
		{tables.Item("Syringe"), types.Int(5)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Warning == "" {
		t.Error("expected a warning for health 250")
	}
	if results[1].Warning != "" {
		t.Errorf("unexpected warning %q", results[1].Warning)
	}
	// written anyway
	if r := reading(t, ed, tables.Health()); r.Value.Float() != 250 {
		t.Errorf("health = %v", r.Value)
	}
}

func TestValueConverted(t *testing.T) {
	ed := load(t, savetest.File(140, savetest.Payload(savetest.Health(50))))

	results, err := ed.Apply([]Edit{{tables.Health(), types.Int(80)}})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Edit.Value.Encoding != types.ENC_FLOAT32 {
		t.Error("int value was not converted to float")
	}
	if r := reading(t, ed, tables.Health()); r.Value.Float() != 80 {
		t.Errorf("health = %v", r.Value)
	}
}

func write_save(t *testing.T, dir string, payload []byte) string {
	t.Helper()
	filename := filepath.Join(dir, "SaveGameData_2.sav")
	if err := os.WriteFile(filename, savetest.File(145, payload), 0644); err != nil {
		t.Fatal(err)
	}
	return filename
}

func TestRunOverwriteWithBackup(t *testing.T) {
	dir := t.TempDir()
	filename := write_save(t, dir, savetest.Payload(savetest.Weapon("Pistol", 3)))
	original, _ := os.ReadFile(filename)

	opts := DefaultOptions()
	opts.Now = time.Date(2024, 10, 8, 21, 5, 9, 0, time.UTC)
	rep, err := Run(filename, "", []Edit{
		{tables.Weapon("Pistol"), types.Int(999)},
		{tables.Weapon("Rifle"), types.Int(10)},
	}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if rep.State != STATE_WRITTEN {
		t.Errorf("state = %v", rep.State)
	}
	if want := filename + ".backup_20241008_210509"; rep.Backup != want {
		t.Errorf("backup = %q, want %q", rep.Backup, want)
	}
	backup, err := os.ReadFile(rep.Backup)
	if err != nil || !bytes.Equal(backup, original) {
		t.Error("backup does not match the original")
	}
	if len(rep.Missing()) != 1 || rep.Missing()[0].Edit.Signature.Name != "Rifle" {
		t.Errorf("missing = %+v", rep.Missing())
	}

	data, _ := os.ReadFile(filename)
	ed := load(t, data)
	if r := reading(t, ed, tables.Weapon("Pistol")); r.Value.Int() != 999 {
		t.Errorf("Pistol = %v", r.Value)
	}
	if tmps, _ := filepath.Glob(filepath.Join(dir, "*.tmp")); len(tmps) != 0 {
		t.Errorf("temporary files left behind: %v", tmps)
	}
}

func TestRunOutputElsewhere(t *testing.T) {
	dir := t.TempDir()
	filename := write_save(t, dir, savetest.Payload(savetest.Item("Syringe", 1)))
	original, _ := os.ReadFile(filename)
	output := filepath.Join(dir, "modified.sav")

	rep, err := Run(filename, output, []Edit{{tables.Item("Syringe"), types.Int(20)}}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if rep.Backup != "" {
		t.Errorf("backup made when not overwriting: %v", rep.Backup)
	}
	after, _ := os.ReadFile(filename)
	if !bytes.Equal(after, original) {
		t.Error("source was modified")
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if r := reading(t, load(t, data), tables.Item("Syringe")); r.Value.Int() != 20 {
		t.Errorf("Syringe = %v", r.Value)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Errorf("%v files in dir, want 2", len(entries))
	}
}

func TestRunFailureLeavesFileAlone(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "broken.sav")
	broken := savetest.File(145, savetest.Payload(savetest.Weapon("Pistol", 3)))
	broken[145+3] ^= 0xff // corrupt the zlib stream
	os.WriteFile(filename, broken, 0644)

	output := filepath.Join(dir, "out.sav")
	_, err := Run(filename, output, []Edit{{tables.Weapon("Pistol"), types.Int(1)}}, DefaultOptions())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, types.ErrCodec) && !errors.Is(err, types.ErrFormat) {
		t.Errorf("unexpected error kind: %v", err)
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Error("output was written")
	}

	// and no backup of a file we could not even read
	_, err = Run(filename, "", nil, DefaultOptions())
	if err == nil {
		t.Fatal("expected an error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("%v files in dir, want 1", len(entries))
	}
}

func TestRunMissingFile(t *testing.T) {
	_, err := Run(filepath.Join(t.TempDir(), "nope.sav"), "", nil, DefaultOptions())
	if !errors.Is(err, types.ErrIO) {
		t.Errorf("expected io error, got %v", err)
	}
}

func TestRunBackupFailureStops(t *testing.T) {
	dir := t.TempDir()
	filename := write_save(t, dir, savetest.Payload(savetest.Weapon("Pistol", 3)))
	original, _ := os.ReadFile(filename)

	opts := DefaultOptions()
	opts.Now = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	// something is already where the backup should go
	os.WriteFile(utils.BackupName(filename, opts.Now), []byte("taken"), 0644)

	_, err := Run(filename, "", []Edit{{tables.Weapon("Pistol"), types.Int(1)}}, opts)
	if !errors.Is(err, types.ErrIO) {
		t.Fatalf("expected io error, got %v", err)
	}
	after, _ := os.ReadFile(filename)
	if !bytes.Equal(after, original) {
		t.Error("source was modified after the backup failed")
	}
}

// A file that happens to have the name the editor might pick for its own
// temporary file is left alone.
func TestRunKeepsUnrelatedTmp(t *testing.T) {
	dir := t.TempDir()
	filename := write_save(t, dir, savetest.Payload(savetest.Weapon("Pistol", 3)))
	unrelated := filename + ".tmp"
	os.WriteFile(unrelated, []byte("mine"), 0644)

	opts := DefaultOptions()
	opts.Backup = false
	if _, err := Run(filename, "", []Edit{{tables.Weapon("Pistol"), types.Int(9)}}, opts); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(unrelated)
	if err != nil || string(got) != "mine" {
		t.Errorf("%v was touched: %q, %v", unrelated, got, err)
	}
}

func TestRunKeepsMode(t *testing.T) {
	dir := t.TempDir()
	filename := write_save(t, dir, savetest.Payload(savetest.Weapon("Pistol", 3)))
	os.Chmod(filename, 0600)

	opts := DefaultOptions()
	opts.Backup = false
	if _, err := Run(filename, "", []Edit{{tables.Weapon("Pistol"), types.Int(9)}}, opts); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filename)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestOptionsRange(t *testing.T) {
	cfg := utils.DefaultConfig()
	cfg.HealthMax = 150
	cfg.CountMax = 50
	opts := OptionsFrom(cfg)

	if lo, hi := opts.Range(types.KIND_HEALTH); lo != 0 || hi != 150 {
		t.Errorf("health range %v-%v", lo, hi)
	}
	if lo, hi := opts.Range(types.KIND_WEAPON); lo != 0 || hi != 50 {
		t.Errorf("count range %v-%v", lo, hi)
	}
}

func TestStateString(t *testing.T) {
	if STATE_WRITTEN.String() != "written" {
		t.Errorf("STATE_WRITTEN = %v", STATE_WRITTEN)
	}
	if got := State(42).String(); got != "State(42)" {
		t.Errorf("State(42) = %v", got)
	}
}
