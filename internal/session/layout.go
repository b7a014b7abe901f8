package session

const (
	DefaultSlots  = 5
	DefaultStep   = 30
	DefaultWidth  = 950
	DefaultHeight = 550
)

// Offset is a session's displacement from the centred window position.
type Offset struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// OffsetFor staggers concurrent sessions: ((id-1) mod slots) * step.
func OffsetFor(id int64, slots, step int) Offset {
	if slots <= 0 {
		slots = DefaultSlots
	}
	if id < 1 {
		id = 1
	}
	d := int((id-1)%int64(slots)) * step
	return Offset{X: d, Y: d}
}

// Geometry is where a session's window sits.
type Geometry struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Offset Offset `json:"offset"`
}
