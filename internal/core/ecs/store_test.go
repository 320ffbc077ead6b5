package ecs_test

import (
	"testing"

	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/save"
	"go.uber.org/zap/zaptest"
)

// --- Test Components ---

const (
	kindCell ecs.Kind = iota + 1
	kindMass
	kindLabel
	kindActor
)

type cell struct{ X, Y int }

func (cell) Kind() ecs.Kind { return kindCell }
func (c cell) Save(e *save.Encoder) {
	e.Int("x", c.X)
	e.Int("y", c.Y)
}
func (c *cell) Load(d *save.Decoder) {
	d.Int("x", &c.X)
	d.Int("y", &c.Y)
}

type mass struct{ Value int }

func (mass) Kind() ecs.Kind          { return kindMass }
func (m mass) Save(e *save.Encoder)  { e.Int("value", m.Value) }
func (m *mass) Load(d *save.Decoder) { d.Int("value", &m.Value) }

type label struct{ Text string }

func (label) Kind() ecs.Kind          { return kindLabel }
func (l label) Save(e *save.Encoder)  { e.String("text", l.Text) }
func (l *label) Load(d *save.Decoder) { d.String("text", &l.Text) }

type actor struct{ Speed int }

func (actor) Kind() ecs.Kind          { return kindActor }
func (a actor) Save(e *save.Encoder)  { e.Int("speed", a.Speed) }
func (a *actor) Load(d *save.Decoder) { d.Int("speed", &a.Speed) }

func newStore(t *testing.T) *ecs.Store {
	s := ecs.NewStore(zaptest.NewLogger(t))
	ecs.Register(s, ecs.Spec[cell]{
		Name:    "Cell",
		Dense:   true,
		Tracked: true,
		Index:   func(c *cell) any { return *c },
		Equal:   ecs.Comparable[cell](),
	})
	ecs.Register(s, ecs.Spec[mass]{Name: "Mass", Equal: ecs.Comparable[mass]()})
	ecs.Register(s, ecs.Spec[label]{Name: "Label"})
	ecs.Register(s, ecs.Spec[actor]{Name: "Actor", Tracked: true})
	return s
}

// --- Tests ---

func TestCreateObjAttachesAllComponents(t *testing.T) {
	s := newStore(t)
	id := s.CreateObj(cell{1, 2}, mass{5})

	if id.IsZero() {
		t.Fatal("CreateObj returned the null entity")
	}
	if id.Index() < ecs.ReservedIDs {
		t.Fatalf("dynamic entity %v allocated inside the reserved range", id)
	}
	c, ok := ecs.Get[cell](s, id)
	if !ok || *c != (cell{1, 2}) {
		t.Fatalf("Get[cell] = %v, %v; want {1 2}, true", c, ok)
	}
	if !s.Mask(id).Has(kindMass) || s.Mask(id).Has(kindLabel) {
		t.Fatalf("mask = %v, want cell+mass only", s.Mask(id).Kinds())
	}
	if _, ok := ecs.Get[label](s, id); ok {
		t.Fatal("Get[label] found a component that was never added")
	}
	s.Verify()
}

func TestAddOverwritesAndReindexes(t *testing.T) {
	s := newStore(t)
	id := s.CreateObj(cell{0, 0})
	ecs.Add(s, id, cell{3, 3})

	if got := ecs.GetAllByIndex[cell](s, cell{0, 0}); len(got) != 0 {
		t.Fatalf("old index entry still present: %v", got)
	}
	got := ecs.GetAllByIndex[cell](s, cell{3, 3})
	if len(got) != 1 || got[0] != id {
		t.Fatalf("GetAllByIndex = %v, want [%v]", got, id)
	}
	s.Verify()
}

func TestRemoveIsNoOpWhenAbsent(t *testing.T) {
	s := newStore(t)
	id := s.CreateObj(mass{1})
	ecs.Remove[label](s, id)
	ecs.Remove[mass](s, id)
	ecs.Remove[mass](s, id)
	if ecs.Has[mass](s, id) || s.Mask(id).Has(kindMass) {
		t.Fatal("mass still attached after Remove")
	}
	s.Verify()
}

func TestIndexSnapshotSurvivesMutation(t *testing.T) {
	s := newStore(t)
	a := s.CreateObj(cell{1, 1})
	b := s.CreateObj(cell{1, 1})

	ids := ecs.GetAllByIndex[cell](s, cell{1, 1})
	for _, id := range ids {
		ecs.Remove[cell](s, id)
	}
	if len(ids) != 2 || ids[0] != a || ids[1] != b {
		t.Fatalf("snapshot = %v, want [%v %v]", ids, a, b)
	}
	if left := ecs.GetAllByIndex[cell](s, cell{1, 1}); len(left) != 0 {
		t.Fatalf("index not emptied: %v", left)
	}
}

func TestNewSetProtocol(t *testing.T) {
	s := newStore(t)
	a := s.CreateObj(cell{0, 0}, actor{10})
	b := s.CreateObj(cell{0, 1})

	if got := ecs.GetAllNew[cell](s); len(got) != 2 {
		t.Fatalf("new cells = %v, want 2 entries", got)
	}
	// A second reader sees the same set until the owner clears it.
	if got := ecs.GetAllNew[cell](s); len(got) != 2 {
		t.Fatalf("second read = %v, want 2 entries", got)
	}
	ecs.ClearNew[cell](s)
	if got := ecs.GetAllNew[cell](s); len(got) != 0 {
		t.Fatalf("after ClearNew = %v", got)
	}
	if got := ecs.GetAllNew[actor](s); len(got) != 1 || got[0] != a {
		t.Fatalf("actor new set = %v, want [%v]", got, a)
	}

	ecs.Add(s, b, cell{5, 5})
	if got := ecs.GetAllNew[cell](s); len(got) != 1 || got[0] != b {
		t.Fatalf("relocated entity not new: %v", got)
	}
	ecs.ClearNew[cell](s)
	ecs.MarkNew[cell](s, a)
	if got := ecs.GetAllNew[cell](s); len(got) != 1 || got[0] != a {
		t.Fatalf("MarkNew: %v", got)
	}
}

func TestDestroyReleasesEverything(t *testing.T) {
	s := newStore(t)
	id := s.CreateObj(cell{2, 2}, mass{3}, label{"rock"})

	var removed []cell
	ecs.OnRemove(s, func(_ ecs.EntityID, old cell) { removed = append(removed, old) })

	s.Destroy(id)
	if s.Alive(id) {
		t.Fatal("entity alive after Destroy")
	}
	if len(ecs.GetAllByIndex[cell](s, cell{2, 2})) != 0 {
		t.Fatal("index entry left behind")
	}
	if len(removed) != 1 || removed[0] != (cell{2, 2}) {
		t.Fatalf("OnRemove saw %v", removed)
	}
	s.Destroy(id) // stale reference
	s.Verify()

	next := s.CreateObj(mass{1})
	if next.Index() != id.Index() || next.Generation() == id.Generation() {
		t.Fatalf("recycled id = %v, want index %d with a new generation", next, id.Index())
	}
	if _, ok := ecs.Get[mass](s, id); ok {
		t.Fatal("stale id resolved to the recycled entity")
	}
}

func TestDestroyQueue(t *testing.T) {
	s := newStore(t)
	id := s.CreateObj(mass{1})
	s.MarkForDestruction(id)
	s.MarkForDestruction(id)
	if !s.Alive(id) {
		t.Fatal("entity destroyed before flush")
	}
	if n := s.FlushDestroyQueue(); n != 1 {
		t.Fatalf("flushed %d, want 1", n)
	}
	if s.Alive(id) {
		t.Fatal("entity alive after flush")
	}
}

func TestRegisterSpecial(t *testing.T) {
	s := newStore(t)
	special := ecs.SpecialID(1)
	s.RegisterSpecial(special, label{"player"})
	if !s.Alive(special) {
		t.Fatal("special not alive")
	}
	s.RegisterSpecial(special, mass{70})
	if l, ok := ecs.Get[label](s, special); !ok || l.Text != "player" {
		t.Fatal("re-registering dropped existing components")
	}

	defer func() {
		if recover() == nil {
			t.Fatal("RegisterSpecial accepted an id outside the reserved range")
		}
	}()
	s.RegisterSpecial(ecs.NewEntityID(ecs.ReservedIDs+5, 0), label{"bad"})
}

func TestCloneAndSameComponents(t *testing.T) {
	s := newStore(t)
	a := s.CreateObj(cell{1, 1}, mass{4}, label{"coin"})
	b := s.Clone(a)

	if !s.SameComponents(a, b) {
		t.Fatal("clone differs from source")
	}
	ecs.Add(s, b, cell{9, 9})
	if s.SameComponents(a, b) {
		t.Fatal("different cells compared equal")
	}
	if !s.SameComponents(a, b, kindCell) {
		t.Fatal("ignored kind still compared")
	}
	ecs.Add(s, b, label{"gem"})
	if s.SameComponents(a, b, kindCell) {
		t.Fatal("labels compared via saved form should differ")
	}
	ecs.Remove[label](s, b)
	if s.SameComponents(a, b, kindCell) {
		t.Fatal("different masks compared equal")
	}
}

func TestEach2Ordered(t *testing.T) {
	s := newStore(t)
	var want []ecs.EntityID
	for i := 0; i < 5; i++ {
		id := s.CreateObj(cell{i, 0})
		if i%2 == 0 {
			ecs.Add(s, id, mass{i})
			want = append(want, id)
		}
	}
	var got []ecs.EntityID
	ecs.Each2(s, func(id ecs.EntityID, _ *cell, _ *mass) { got = append(got, id) })
	if len(got) != len(want) {
		t.Fatalf("Each2 visited %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("Each2 visited %v, want %v", got, want)
		}
	}
}

func TestVerifyDetectsAddToDeadEntity(t *testing.T) {
	s := newStore(t)
	id := s.CreateObj()
	s.Destroy(id)
	defer func() {
		if recover() == nil {
			t.Fatal("Add to a dead entity did not panic")
		}
	}()
	ecs.Add(s, id, mass{1})
}

func TestSaveLoadRoundTrip(t *testing.T) {
	src := newStore(t)
	player := ecs.SpecialID(1)
	src.RegisterSpecial(player, label{"player"}, cell{0, 0})
	a := src.CreateObj(cell{1, 2}, mass{3})
	ecs.ClearNew[cell](src)
	b := src.CreateObj(cell{4, 4}, actor{7})
	dead := src.CreateObj(mass{9})
	src.Destroy(dead)

	enc := save.NewEncoder()
	src.Save(enc)

	var warnings []string
	dec, err := save.NewDecoder(enc.Node(), func(path, key string) { warnings = append(warnings, path+"."+key) })
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	dst := newStore(t)
	dst.Load(dec)
	if err := dec.Finish(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	dst.Verify()

	if !dst.Alive(player) || !dst.Alive(a) || !dst.Alive(b) || dst.Alive(dead) {
		t.Fatal("liveness not restored")
	}
	if m, ok := ecs.Get[mass](dst, a); !ok || m.Value != 3 {
		t.Fatalf("mass of %v = %v", a, m)
	}
	if got := ecs.GetAllByIndex[cell](dst, cell{4, 4}); len(got) != 1 || got[0] != b {
		t.Fatalf("index not rebuilt: %v", got)
	}
	if got := ecs.GetAllNew[cell](dst); len(got) != 1 || got[0] != b {
		t.Fatalf("new set not restored: %v", got)
	}
	// The recycled slot must come back with the bumped generation.
	next := dst.CreateObj()
	if next.Index() != dead.Index() || next == dead {
		t.Fatalf("allocator state lost: got %v after destroying %v", next, dead)
	}
}

func TestLoadSkipsUnknownKinds(t *testing.T) {
	src := newStore(t)
	id := src.CreateObj(mass{2})
	enc := save.NewEncoder()
	src.Save(enc)

	// A store that never registered Mass reads the same document.
	dst := ecs.NewStore(zaptest.NewLogger(t))
	ecs.Register(dst, ecs.Spec[cell]{Name: "Cell", Tracked: true, Index: func(c *cell) any { return *c }})
	dec, err := save.NewDecoder(enc.Node(), nil)
	if err != nil {
		t.Fatal(err)
	}
	dst.Load(dec)
	if err := dec.Finish(); err != nil {
		t.Fatalf("Load failed on unknown kind: %v", err)
	}
	if !dst.Alive(id) || !dst.Mask(id).IsEmpty() {
		t.Fatalf("entity %v should be alive with no components", id)
	}
}
