package component

import (
	"fmt"
	"strings"

	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/save"
	"github.com/tetrarogue/sim/internal/geom"
)

// Pos is an entity's cell. Indexed: the store answers "who is at v".
type Pos struct {
	V geom.Vec
}

func (Pos) Kind() ecs.Kind { return KindPos }

func (p Pos) Save(e *save.Encoder) { e.Ints("v", p.V[:]) }

func (p *Pos) Load(d *save.Decoder) {
	var xs []int
	d.Ints("v", &xs)
	v, err := geom.FromSlice(xs)
	if err != nil {
		d.Fail("v", err)
		return
	}
	p.V = v
}

// Weight makes an entity subject to gravity unless it also has NoGravity.
type Weight struct {
	Value int
}

func (Weight) Kind() ecs.Kind          { return KindWeight }
func (w Weight) Save(e *save.Encoder)  { e.Int("value", w.Value) }
func (w *Weight) Load(d *save.Decoder) { d.Int("value", &w.Value) }

// NoGravity exempts a weighted entity from support resolution.
type NoGravity struct{}

func (NoGravity) Kind() ecs.Kind      { return KindNoGravity }
func (NoGravity) Save(*save.Encoder)  {}
func (*NoGravity) Load(*save.Decoder) {}

// SupportType says which occupants a support bears: those sharing its cell
// (Within, e.g. ladders and water) or those in the cell above (Above, e.g.
// floors).
type SupportType uint8

const (
	SupportWithin SupportType = iota
	SupportAbove
)

var supportTypeNames = []string{"within", "above"}

func (t SupportType) String() string { return enumName(supportTypeNames, int(t)) }

func ParseSupportType(s string) (SupportType, error) {
	i, err := parseEnum(supportTypeNames, s, "support type")
	return SupportType(i), err
}

// SupportCond gates which movers a support actually holds.
type SupportCond uint8

const (
	CondAlways SupportCond = iota
	CondPermanent
	CondClimbing
	CondBuoyant
)

var supportCondNames = []string{"always", "permanent", "climbing", "buoyant"}

func (c SupportCond) String() string { return enumName(supportCondNames, int(c)) }

func ParseSupportCond(s string) (SupportCond, error) {
	i, err := parseEnum(supportCondNames, s, "support condition")
	return SupportCond(i), err
}

type SupportsWeight struct {
	Type SupportType
	Cond SupportCond
}

func (SupportsWeight) Kind() ecs.Kind { return KindSupportsWeight }

func (s SupportsWeight) Save(e *save.Encoder) {
	e.String("type", s.Type.String())
	e.String("cond", s.Cond.String())
}

func (s *SupportsWeight) Load(d *save.Decoder) {
	var typ, cond string
	d.String("type", &typ)
	d.String("cond", &cond)
	var err error
	if typ != "" {
		if s.Type, err = ParseSupportType(typ); err != nil {
			d.Fail("type", err)
		}
	}
	if cond != "" {
		if s.Cond, err = ParseSupportCond(cond); err != nil {
			d.Fail("cond", err)
		}
	}
}

// MoveBits is a mover's capability set.
type MoveBits uint8

const (
	MoveWalk MoveBits = 1 << iota
	MoveClimb
	MoveJump
	MoveSwim
)

var moveBitNames = []string{"walk", "climb", "jump", "swim"}

func (b MoveBits) Has(o MoveBits) bool { return b&o == o }

func (b MoveBits) String() string {
	var parts []string
	for i, name := range moveBitNames {
		if b&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseMoveBits reads a "walk|climb" style list. Empty means no capability.
func ParseMoveBits(s string) (MoveBits, error) {
	var b MoveBits
	if s == "" {
		return 0, nil
	}
	for _, part := range strings.Split(s, "|") {
		i, err := parseEnum(moveBitNames, strings.TrimSpace(part), "move capability")
		if err != nil {
			return 0, err
		}
		b |= 1 << i
	}
	return b, nil
}

type CanMove struct {
	Bits MoveBits
}

func (CanMove) Kind() ecs.Kind         { return KindCanMove }
func (c CanMove) Save(e *save.Encoder) { e.String("bits", c.Bits.String()) }

func (c *CanMove) Load(d *save.Decoder) {
	var s string
	d.String("bits", &s)
	bits, err := ParseMoveBits(s)
	if err != nil {
		d.Fail("bits", err)
		return
	}
	c.Bits = bits
}

// BlocksMovement marks an obstacle: nothing may enter its cell.
type BlocksMovement struct{}

func (BlocksMovement) Kind() ecs.Kind      { return KindBlocksMovement }
func (BlocksMovement) Save(*save.Encoder)  {}
func (*BlocksMovement) Load(*save.Decoder) {}

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return fmt.Sprintf("unknown(%d)", i)
	}
	return names[i]
}

func parseEnum(names []string, s, what string) (int, error) {
	for i, name := range names {
		if name == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, s)
}
