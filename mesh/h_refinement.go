package mesh

import (
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/hprbs/element"
)

// HRefKind selects how an element is split.
type HRefKind uint8

const (
	KindT HRefKind = iota // isotropic, 4 children
	KindU                 // split along the u-axis, 2 children
	KindV                 // split along the v-axis, 2 children
)

// HRef describes an h-refinement. U and V refinements may carry an extension
// index naming the child that is immediately split again in the other axis.
type HRef struct {
	Kind HRefKind
	ext  int // extension child index + 1, zero when absent
}

// The plain refinements.
var (
	HRefT = HRef{Kind: KindT}
	HRefU = HRef{Kind: KindU}
	HRefV = HRef{Kind: KindV}
)

// UExtended returns a U refinement whose child is then split along v.
func UExtended(child int) (HRef, error) {
	if child < 0 || child > 1 {
		return HRef{}, fmt.Errorf("child index %d: %w", child, ErrBisectionIdxExceeded)
	}
	return HRef{Kind: KindU, ext: child + 1}, nil
}

// VExtended returns a V refinement whose child is then split along u.
func VExtended(child int) (HRef, error) {
	if child < 0 || child > 1 {
		return HRef{}, fmt.Errorf("child index %d: %w", child, ErrBisectionIdxExceeded)
	}
	return HRef{Kind: KindV, ext: child + 1}, nil
}

// ParseHRef parses "T", "U", "V", "U0", "U1", "V0" or "V1".
func ParseHRef(s string) (HRef, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "T":
		return HRefT, nil
	case "U":
		return HRefU, nil
	case "V":
		return HRefV, nil
	case "U0", "U1":
		return UExtended(int(s[1] - '0'))
	case "V0", "V1":
		return VExtended(int(s[1] - '0'))
	}
	return HRef{}, fmt.Errorf("unknown h-refinement %q", s)
}

// Extension returns the index of the child that is split again, if any.
func (r HRef) Extension() (int, bool) {
	return r.ext - 1, r.ext != 0
}

// NumChildren returns the number of direct children the refinement creates.
func (r HRef) NumChildren() int {
	if r.Kind == KindT {
		return 4
	}
	return 2
}

// Add merges two refinements requested for the same element. Anything
// combined with T, or a U with a V, gives T. Two U (or two V) requests merge
// unless they name different extension children.
func (r HRef) Add(o HRef) (HRef, error) {
	switch {
	case r.Kind == KindT || o.Kind == KindT:
		return HRefT, nil
	case r.Kind != o.Kind:
		return HRefT, nil
	case r.ext != 0 && o.ext != 0 && r.ext != o.ext:
		return HRef{}, ErrDoubleRefinement
	case r.ext == 0:
		return o, nil
	default:
		return r, nil
	}
}

// Loc returns the location of child idx within its parent.
func (r HRef) Loc(idx int) HRefLoc {
	switch r.Kind {
	case KindT:
		return [4]HRefLoc{SW, SE, NW, NE}[idx]
	case KindU:
		return [2]HRefLoc{W, E}[idx]
	default:
		return [2]HRefLoc{S, N}[idx]
	}
}

func (r HRef) String() string {
	name := [...]string{"T", "U", "V"}[r.Kind]
	if idx, ok := r.Extension(); ok {
		return fmt.Sprintf("%s(%d)", name, idx)
	}
	return name
}

// HRefLoc is the position of a child element within its parent.
type HRefLoc uint8

const (
	SW HRefLoc = iota
	SE
	NW
	NE
	W
	E
	S
	N
)

// Index returns the child index for the location.
func (l HRefLoc) Index() int {
	switch l {
	case SW, W, S:
		return 0
	case SE, E, N:
		return 1
	case NW:
		return 2
	default:
		return 3
	}
}

// SubRange returns the part of r covered by a child at this location.
func (l HRefLoc) SubRange(r element.ParametricRange) element.ParametricRange {
	switch l {
	case SW:
		return r.Half(element.U, false).Half(element.V, false)
	case SE:
		return r.Half(element.U, true).Half(element.V, false)
	case NW:
		return r.Half(element.U, false).Half(element.V, true)
	case NE:
		return r.Half(element.U, true).Half(element.V, true)
	case W:
		return r.Half(element.U, false)
	case E:
		return r.Half(element.U, true)
	case S:
		return r.Half(element.V, false)
	default:
		return r.Half(element.V, true)
	}
}

func (l HRefLoc) String() string {
	return [...]string{"SW", "SE", "NW", "NE", "W", "E", "S", "N"}[l]
}

// HLevels counts how many times an element's ancestry was split in each axis.
type HLevels struct {
	U, V int
}

// Refined returns the levels of a child created by r.
func (h HLevels) Refined(r HRef) HLevels {
	switch r.Kind {
	case KindT:
		return HLevels{U: h.U + 1, V: h.V + 1}
	case KindU:
		return HLevels{U: h.U + 1, V: h.V}
	default:
		return HLevels{U: h.U, V: h.V + 1}
	}
}

// EdgeRanking orders the elements attached to one side of an edge with
// direction dir; deeper elements rank higher.
func (h HLevels) EdgeRanking(dir element.ParaDir) [2]int {
	if dir == element.U {
		return [2]int{h.V, h.U}
	}
	return [2]int{h.U, h.V}
}

// HRefRequest pairs an element with the refinement to apply to it.
type HRefRequest struct {
	ElemID int
	Ref    HRef
}

var (
	ErrElemDoesntExist      = errors.New("elem does not exist")
	ErrElemHasChildren      = errors.New("elem already has children")
	ErrMinEdgeLength        = errors.New("refinement would produce an edge below the minimum length")
	ErrEdgeHasChildren      = errors.New("edge already has children")
	ErrEdgeOnEqualPoints    = errors.New("cannot create an edge between equal points")
	ErrBisectionIdxExceeded = errors.New("extension child index must be 0 or 1")
	ErrDoubleRefinement     = errors.New("conflicting refinements requested for the same elem")
)

// HRefError reports an h-refinement that could not be applied. The mesh is
// left unchanged when an HRefError is returned.
type HRefError struct {
	Op     string
	ElemID int
	Err    error
}

func (e *HRefError) Error() string {
	if e.ElemID == NoID {
		return fmt.Sprintf("h-refinement %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("h-refinement %s of elem %d: %v", e.Op, e.ElemID, e.Err)
}

func (e *HRefError) Unwrap() error { return e.Err }
