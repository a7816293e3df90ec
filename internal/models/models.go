package models

// Interaction record kinds emitted by a visualization surface.
const (
	KindMouseEnter = "mouseenter"
	KindMouseLeave = "mouseleave"
	KindBrushStart = "brushStart"
	KindBrushEnd   = "brushEnd"
	KindBrush      = "brush"

	// KindMouse tags pointer-position samples in the mouse log.
	KindMouse = "mouse"
)

// DefaultLogFields and DefaultMouseLogFields describe the serialization
// schema of each record kind to the collection endpoint.
var (
	DefaultLogFields      = []string{"view", "name", "timestamp", "brushStart", "brushEnd", "pixBrushStart", "pixBrushEnd"}
	DefaultMouseLogFields = []string{"name", "timestamp", "pageX", "pageY"}
)

// InteractionRecord is one captured surface interaction. Timestamp is epoch
// milliseconds, assigned when the record is appended to the buffer. The four
// brush fields are either all present or all absent; they are absent for
// mouseenter/mouseleave.
type InteractionRecord struct {
	View          string   `json:"view"`
	Name          string   `json:"name"`
	Timestamp     int64    `json:"timestamp"`
	BrushStart    *float64 `json:"brushStart,omitempty"`
	BrushEnd      *float64 `json:"brushEnd,omitempty"`
	PixBrushStart *float64 `json:"pixBrushStart,omitempty"`
	PixBrushEnd   *float64 `json:"pixBrushEnd,omitempty"`
}

// HasBrush reports whether all four brush range fields are set.
func (r InteractionRecord) HasBrush() bool {
	return r.BrushStart != nil && r.BrushEnd != nil && r.PixBrushStart != nil && r.PixBrushEnd != nil
}

// PointerRecord is one rate-limited pointer-position sample. Name is always
// KindMouse. PageX/PageY are page-relative pixel coordinates.
type PointerRecord struct {
	Name      string  `json:"name"`
	Timestamp int64   `json:"timestamp"`
	PageX     float64 `json:"pageX"`
	PageY     float64 `json:"pageY"`
}

// Batch is the wire envelope POSTed to the collection endpoint.
type Batch struct {
	UserID         string              `json:"userid,omitempty"`
	TaskID         string              `json:"taskid,omitempty"`
	Log            []InteractionRecord `json:"log"`
	LogFields      []string            `json:"logFields"`
	MouseLog       []PointerRecord     `json:"mouseLog"`
	MouseLogFields []string            `json:"mouseLogFields"`
}

// Empty reports whether the batch carries no records at all.
func (b Batch) Empty() bool {
	return len(b.Log) == 0 && len(b.MouseLog) == 0
}
