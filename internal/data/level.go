package data

import (
	"fmt"
	"os"

	"github.com/tetrarogue/sim/internal/component"
	"github.com/tetrarogue/sim/internal/core/ecs"
	"github.com/tetrarogue/sim/internal/core/save"
	"github.com/tetrarogue/sim/internal/geom"
	"github.com/tetrarogue/sim/internal/world"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Level is a hand-authored starting world: bounds, named component templates
// and where to put them.
type Level struct {
	Name       string               `yaml:"name"`
	Bounds     Box                  `yaml:"bounds"`
	Templates  map[string]yaml.Node `yaml:"templates"`
	Placements []Placement          `yaml:"placements"`
	Specials   []Special            `yaml:"specials"`
}

// Box is an inclusive cell range. Short coordinate lists are zero-padded.
type Box struct {
	Min []int `yaml:"min"`
	Max []int `yaml:"max"`
}

func (b Box) region() (geom.Region, error) {
	lo, err := geom.FromSlice(b.Min)
	if err != nil {
		return geom.Region{}, err
	}
	hi, err := geom.FromSlice(b.Max)
	if err != nil {
		return geom.Region{}, err
	}
	return geom.Region{Min: lo, Max: hi}, nil
}

// Placement stamps a template at one cell (At) or at every cell of Box.
type Placement struct {
	Template string `yaml:"template"`
	At       []int  `yaml:"at"`
	Box      *Box   `yaml:"box"`
}

// Special places a template on a reserved entity slot, such as the player.
type Special struct {
	Slot     uint32 `yaml:"slot"`
	Template string `yaml:"template"`
	At       []int  `yaml:"at"`
}

// LoadLevel reads a level from YAML and checks its template references.
func LoadLevel(path string) (*Level, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("level: read %s: %w", path, err)
	}
	lv, err := ParseLevel(raw)
	if err != nil {
		return nil, fmt.Errorf("level: %s: %w", path, err)
	}
	return lv, nil
}

func ParseLevel(raw []byte) (*Level, error) {
	var lv Level
	if err := yaml.Unmarshal(raw, &lv); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	for i, p := range lv.Placements {
		if _, ok := lv.Templates[p.Template]; !ok {
			return nil, fmt.Errorf("placement %d: unknown template %q", i, p.Template)
		}
		if (p.At == nil) == (p.Box == nil) {
			return nil, fmt.Errorf("placement %d: exactly one of at and box is required", i)
		}
	}
	for i, s := range lv.Specials {
		if _, ok := lv.Templates[s.Template]; !ok {
			return nil, fmt.Errorf("special %d: unknown template %q", i, s.Template)
		}
		if s.Slot == 0 || s.Slot >= ecs.ReservedIDs {
			return nil, fmt.Errorf("special %d: slot %d out of range", i, s.Slot)
		}
	}
	return &lv, nil
}

// Spawn sets the world bounds and creates every entity the level describes:
// specials first, then placements in file order. It returns the number of
// entities created.
func (lv *Level) Spawn(w *world.World, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	bounds, err := lv.Bounds.region()
	if err != nil {
		return 0, fmt.Errorf("level: bounds: %w", err)
	}
	w.SetBounds(bounds)

	n := 0
	for i, s := range lv.Specials {
		id := ecs.SpecialID(s.Slot)
		w.Store.RegisterSpecial(id)
		if err := lv.stamp(w, id, s.Template, s.At, log); err != nil {
			return n, fmt.Errorf("level: special %d: %w", i, err)
		}
		n++
	}

	for i, p := range lv.Placements {
		var cells []geom.Vec
		if p.Box != nil {
			r, err := p.Box.region()
			if err != nil {
				return n, fmt.Errorf("level: placement %d: %w", i, err)
			}
			r.Each(func(v geom.Vec) { cells = append(cells, v) })
		} else {
			v, err := geom.FromSlice(p.At)
			if err != nil {
				return n, fmt.Errorf("level: placement %d: %w", i, err)
			}
			cells = append(cells, v)
		}
		for _, v := range cells {
			if !w.InBounds(v) {
				return n, fmt.Errorf("level: placement %d: %v outside bounds", i, v)
			}
			id := w.Store.CreateObj()
			if err := lv.stamp(w, id, p.Template, v[:], log); err != nil {
				return n, fmt.Errorf("level: placement %d: %w", i, err)
			}
			n++
		}
	}
	log.Info("level spawned", zap.String("name", lv.Name), zap.Int("entities", n))
	return n, nil
}

// stamp decodes template onto id and positions it at at, when given.
func (lv *Level) stamp(w *world.World, id ecs.EntityID, template string, at []int, log *zap.Logger) error {
	node := lv.Templates[template]
	d, err := save.NewDecoder(&node, func(path, key string) {
		log.Warn("unknown template field", zap.String("template", template), zap.String("path", path), zap.String("key", key))
	})
	if err != nil {
		return fmt.Errorf("template %q: %w", template, err)
	}
	w.Store.Decode(id, d)
	if err := d.Finish(); err != nil {
		return fmt.Errorf("template %q: %w", template, err)
	}
	if at != nil {
		v, err := geom.FromSlice(at)
		if err != nil {
			return err
		}
		ecs.Add(w.Store, id, component.Pos{V: v})
	}
	return nil
}
