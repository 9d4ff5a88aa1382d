package collaboration

// DefaultPalette is the ordered set of presence colors handed out to room members
var DefaultPalette = []string{
	"#FF0000",
	"#1E90FF",
	"#2ECC40",
	"#FF851B",
	"#B10DC9",
	"#FFDC00",
	"#F012BE",
	"#39CCCC",
	"#01FF70",
	"#85144B",
}

// ColorAllocator hands out presence colors for one room.
// It is not safe for concurrent use; the registry calls it under its lock.
type ColorAllocator struct {
	palette      []string
	seq          uint64
	lastAssigned map[string]uint64
}

// NewColorAllocator creates an allocator over palette, or DefaultPalette when empty
func NewColorAllocator(palette []string) *ColorAllocator {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	return &ColorAllocator{
		palette:      palette,
		lastAssigned: make(map[string]uint64, len(palette)),
	}
}

// Allocate picks the first palette color not in inUse. Once every color is taken
// the least recently assigned one is reused; sharing a color is accepted.
func (a *ColorAllocator) Allocate(inUse map[string]bool) string {
	a.seq++

	chosen := ""
	for _, c := range a.palette {
		if !inUse[c] {
			chosen = c
			break
		}
	}

	if chosen == "" {
		chosen = a.palette[0]
		for _, c := range a.palette[1:] {
			if a.lastAssigned[c] < a.lastAssigned[chosen] {
				chosen = c
			}
		}
	}

	a.lastAssigned[chosen] = a.seq
	return chosen
}
