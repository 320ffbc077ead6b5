package geom

import (
	"fmt"
	"strconv"
	"strings"
)

// Dim is the number of spatial dimensions. Axis 0 is vertical; increasing
// values point down.
const Dim = 4

// Vec is an integer position or displacement in Dim dimensions.
type Vec [Dim]int

var (
	Up   = Vec{-1}
	Down = Vec{1}
)

func (v Vec) Add(o Vec) Vec {
	for i := range v {
		v[i] += o[i]
	}
	return v
}

func (v Vec) Sub(o Vec) Vec {
	for i := range v {
		v[i] -= o[i]
	}
	return v
}

func (v Vec) IsZero() bool { return v == Vec{} }

func (v Vec) String() string {
	parts := make([]string, Dim)
	for i, c := range v {
		parts[i] = strconv.Itoa(c)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Lateral returns the unit vectors along every non-vertical axis, in a fixed
// order (+1 before -1, lower axes first).
func Lateral() []Vec {
	dirs := make([]Vec, 0, 2*(Dim-1))
	for axis := 1; axis < Dim; axis++ {
		var plus, minus Vec
		plus[axis] = 1
		minus[axis] = -1
		dirs = append(dirs, plus, minus)
	}
	return dirs
}

// FromSlice converts a loaded coordinate list. Missing trailing axes are zero.
func FromSlice(xs []int) (Vec, error) {
	var v Vec
	if len(xs) > Dim {
		return v, fmt.Errorf("vector has %d components, max %d", len(xs), Dim)
	}
	copy(v[:], xs)
	return v, nil
}

// Region is an axis-aligned box, inclusive on both corners.
type Region struct {
	Min Vec
	Max Vec
}

func (r Region) Contains(v Vec) bool {
	for i := range v {
		if v[i] < r.Min[i] || v[i] > r.Max[i] {
			return false
		}
	}
	return true
}

// Empty reports whether the region is the zero value, which callers treat as
// unbounded.
func (r Region) Empty() bool { return r.Min.IsZero() && r.Max.IsZero() }

// Each visits every cell of the region in lexicographic order.
func (r Region) Each(fn func(Vec)) {
	for i := range r.Min {
		if r.Min[i] > r.Max[i] {
			return
		}
	}
	cur := r.Min
	for {
		fn(cur)
		axis := Dim - 1
		for axis >= 0 {
			cur[axis]++
			if cur[axis] <= r.Max[axis] {
				break
			}
			cur[axis] = r.Min[axis]
			axis--
		}
		if axis < 0 {
			return
		}
	}
}
