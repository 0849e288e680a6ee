// Package ghosting implements N-key-rollover simulation and ghosting
// prevention over a simulated key matrix.
//
// Keyboards that scan a row/column matrix can report a phantom fourth
// key when three pressed keys form a rectangle in the grid. The Matrix
// here reproduces that geometry over a simplified mapping so the engine
// can refuse presses that would ghost on real hardware.
package ghosting

import (
	"sort"
	"sync"

	"github.com/dshills/keyrush/internal/input/key"
)

// Default matrix dimensions.
const (
	DefaultRows = 6
	DefaultCols = 22
)

// Position is a key's row/column coordinate in the matrix.
type Position struct {
	Row int
	Col int
}

// Triple is an unordered set of three keys reported in sorted order.
type Triple [3]string

// Matrix is a fixed-size boolean scan grid with a key-to-position
// mapping. A cell is true iff the mapped key is currently pressed.
type Matrix struct {
	mu      sync.RWMutex
	rows    int
	cols    int
	cells   [][]bool
	mapping map[string]Position
}

// NewMatrix creates a matrix with the default key mapping: the common
// key list assigned row-major across the grid.
func NewMatrix(rows, cols int) *Matrix {
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}

	mapping := make(map[string]Position)
	for i, name := range key.Common() {
		if i >= rows*cols {
			break
		}
		mapping[name] = Position{Row: i / cols, Col: i % cols}
	}
	return NewMatrixWithMapping(rows, cols, mapping)
}

// NewMatrixWithMapping creates a matrix with an explicit key mapping.
// Positions outside the grid are dropped.
func NewMatrixWithMapping(rows, cols int, mapping map[string]Position) *Matrix {
	cells := make([][]bool, rows)
	for r := range cells {
		cells[r] = make([]bool, cols)
	}

	valid := make(map[string]Position, len(mapping))
	for name, pos := range mapping {
		if pos.Row >= 0 && pos.Row < rows && pos.Col >= 0 && pos.Col < cols {
			valid[name] = pos
		}
	}

	return &Matrix{
		rows:    rows,
		cols:    cols,
		cells:   cells,
		mapping: valid,
	}
}

// SetKeyState sets or clears the cell for a key. It returns false when
// the key has no matrix mapping; callers treat unmapped keys as
// "allow through, skip ghosting analysis".
func (m *Matrix) SetKeyState(name string, pressed bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.mapping[name]
	if !ok {
		return false
	}
	m.cells[pos.Row][pos.Col] = pressed
	return true
}

// Position returns the matrix coordinate for a key.
func (m *Matrix) Position(name string) (Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pos, ok := m.mapping[name]
	return pos, ok
}

// Mapped reports whether the key has a matrix position.
func (m *Matrix) Mapped(name string) bool {
	_, ok := m.Position(name)
	return ok
}

// Clear releases every cell in the grid.
func (m *Matrix) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for r := range m.cells {
		for c := range m.cells[r] {
			m.cells[r][c] = false
		}
	}
}

// DetectGhosting examines every unordered triple of the given pressed
// keys and returns those whose positions form a ghosting rectangle:
// all three keys mapped, with rows and columns pairwise distinct, so a
// fourth corner would read as pressed on real hardware. Triples with
// an unmapped member are skipped.
func (m *Matrix) DetectGhosting(pressed map[string]struct{}) []Triple {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(pressed))
	for name := range pressed {
		keys = append(keys, name)
	}
	sort.Strings(keys)

	var conflicts []Triple
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			for k := j + 1; k < len(keys); k++ {
				if m.ghostPattern(keys[i], keys[j], keys[k]) {
					conflicts = append(conflicts, Triple{keys[i], keys[j], keys[k]})
				}
			}
		}
	}
	return conflicts
}

// ghostPattern reports whether three keys occupy mutually distinct rows
// and columns. Callers must hold at least the read lock.
func (m *Matrix) ghostPattern(a, b, c string) bool {
	pa, okA := m.mapping[a]
	pb, okB := m.mapping[b]
	pc, okC := m.mapping[c]
	if !okA || !okB || !okC {
		return false
	}

	return pa.Row != pb.Row && pa.Col != pb.Col &&
		pb.Row != pc.Row && pb.Col != pc.Col &&
		pa.Row != pc.Row && pa.Col != pc.Col
}
