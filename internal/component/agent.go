package component

import (
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/save"
)

// Agent marks an independently acting entity. Type selects the behavior the
// scheduler consults; TicksPerTurn is the cost of one ordinary action.
type Agent struct {
	Type         string
	TicksPerTurn int
}

func (Agent) Kind() ecs.Kind { return KindAgent }

func (a Agent) Save(e *save.Encoder) {
	e.String("type", a.Type)
	e.Int("ticks_per_turn", a.TicksPerTurn)
}

func (a *Agent) Load(d *save.Decoder) {
	d.String("type", &a.Type)
	d.Int("ticks_per_turn", &a.TicksPerTurn)
}

// Mortal can take damage. HP ≤ 0 means dead.
type Mortal struct {
	HP    int
	MaxHP int
}

func (Mortal) Kind() ecs.Kind { return KindMortal }

func (m Mortal) Save(e *save.Encoder) {
	e.Int("hp", m.HP)
	e.Int("max_hp", m.MaxHP)
}

func (m *Mortal) Load(d *save.Decoder) {
	d.Int("hp", &m.HP)
	d.Int("max_hp", &m.MaxHP)
}

type Name struct {
	Name string
}

func (Name) Kind() ecs.Kind          { return KindName }
func (n Name) Save(e *save.Encoder)  { e.String("name", n.Name) }
func (n *Name) Load(d *save.Decoder) { d.String("name", &n.Name) }

// Message is shown to observers when something enters its cell.
type Message struct {
	Text string
}

func (Message) Kind() ecs.Kind          { return KindMessage }
func (m Message) Save(e *save.Encoder)  { e.String("text", m.Text) }
func (m *Message) Load(d *save.Decoder) { d.String("text", &m.Text) }
