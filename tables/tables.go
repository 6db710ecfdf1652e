package tables

// Known property signatures.  These live in their own package because the
// command line, the info report and the watcher all want the same list.

import (
	"sort"

	"sh2edit/types"
)

const (
	HEALTH_NAME = "HealthValue"

	QUANTITY_ANCHOR = "Quantity"
	QUANTITY_WINDOW = 100
)

// Record layouts, measured from the end of the matched name.
//
// Health:   "HealthValue" 00 "FloatProperty" 00 size(4) metadata(8) value(4)
// Weapon:   "<weapon>" 00 value(4)
// Item:     "<item>" 00 ... "Quantity" 00 "IntProperty" 00 size(4) metadata(8) flag(1) value(4)
//
// An item's value is 34 bytes after the start of "Quantity".
const (
	HEALTH_SKIP   = 1 + len("FloatProperty") + 1 + 4 + 8
	WEAPON_SKIP   = 1
	QUANTITY_SKIP = 34 - len(QUANTITY_ANCHOR)
)

// Default lists.  Only these are read by --info
// unless the ini file says otherwise.
var Weapons = []string{"Pistol", "Shotgun", "Rifle", "Handgun", "SteelPipe"}

var Items = []string{"HealthDrink", "Syringe", "HandgunAmmo", "ShotgunAmmo", "ShotgunShells", "RifleAmmo", "FirstAidKit"}

func Health() types.Signature {
	return types.Signature{Kind: types.KIND_HEALTH, Name: HEALTH_NAME, Skip: HEALTH_SKIP, Encoding: types.ENC_FLOAT32}
}

func Weapon(name string) types.Signature {
	return types.Signature{Kind: types.KIND_WEAPON, Name: name, Skip: WEAPON_SKIP, Encoding: types.ENC_INT32}
}

func Item(name string) types.Signature {
	return types.Signature{
		Kind:     types.KIND_ITEM,
		Name:     name,
		Anchor:   QUANTITY_ANCHOR,
		Window:   QUANTITY_WINDOW,
		Skip:     QUANTITY_SKIP,
		Encoding: types.ENC_INT32,
	}
}

// Of builds the standard signature for a kind.
func Of(kind types.Kind, name string) types.Signature {
	switch kind {
	case types.KIND_HEALTH:
		return Health()
	case types.KIND_WEAPON:
		return Weapon(name)
	}
	return Item(name)
}

// Table is the set of signatures known to one run.  It is built once at
// startup and only read afterwards.
type Table struct {
	sigs  []types.Signature
	index map[string]int
}

// New builds a table from the default lists plus any extra signatures.
// An extra signature with the same kind and name as a default replaces it.
func New(weapons, items []string, extra ...types.Signature) *Table {
	t := &Table{index: map[string]int{}}
	t.add(Health())
	for _, w := range weapons {
		t.add(Weapon(w))
	}
	for _, i := range items {
		t.add(Item(i))
	}
	for _, s := range extra {
		t.add(s)
	}
	return t
}

// Default is the built-in table, with no config.
func Default() *Table {
	return New(Weapons, Items)
}

func (t *Table) add(s types.Signature) {
	if i, ok := t.index[s.Key()]; ok {
		t.sigs[i] = s
		return
	}
	t.index[s.Key()] = len(t.sigs)
	t.sigs = append(t.sigs, s)
}

// All returns every signature, health first, then in insertion order.
func (t *Table) All() []types.Signature {
	return append([]types.Signature{}, t.sigs...)
}

// Kind returns the signatures of one kind, in insertion order.
func (t *Table) Kind(kind types.Kind) []types.Signature {
	out := []types.Signature{}
	for _, s := range t.sigs {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// Lookup finds a known signature.  Unknown names still get the standard shape
// for their kind, since the save may contain things nobody has listed yet.
func (t *Table) Lookup(kind types.Kind, name string) (types.Signature, bool) {
	i, ok := t.index[types.Signature{Kind: kind, Name: name}.Key()]
	if !ok {
		return Of(kind, name), false
	}
	return t.sigs[i], true
}

// Names lists the names of one kind, sorted.  Used for help text.
func (t *Table) Names(kind types.Kind) []string {
	out := []string{}
	for _, s := range t.Kind(kind) {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}
