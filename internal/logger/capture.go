package logger

import (
	"github.com/vislab/vislog/internal/models"
	"github.com/vislab/vislog/internal/throttle"
)

// PointerEvent carries the page-relative coordinates of a pointer event.
// Hover events ignore it.
type PointerEvent struct {
	PageX float64
	PageY float64
}

// Surface is the capability the logger consumes from a visualization
// component: event subscription, signal subscription, and synchronous signal
// reads. The concrete surface is injected at Attach time.
type Surface interface {
	AddEventListener(kind string, handler func(ev PointerEvent))
	AddSignalListener(name string, handler func(name string, value any))
	Signal(name string) any
}

// gesturePhaseStart is the gesture-state signal value the surface documents
// as "brush gesture started". Any other non-zero value ends the gesture;
// zero is out of scope and filtered.
const gesturePhaseStart = 2

// Attach registers capture handlers on a surface. Records captured from it
// are tagged with the given view identifier. Multiple surfaces may be
// attached to one logger; each attachment is independent.
func (l *Logger) Attach(view string, surface Surface) {
	surface.AddEventListener(models.KindMouseEnter, func(PointerEvent) {
		l.appendInteraction(models.InteractionRecord{View: view, Name: models.KindMouseEnter})
	})
	surface.AddEventListener(models.KindMouseLeave, func(PointerEvent) {
		l.appendInteraction(models.InteractionRecord{View: view, Name: models.KindMouseLeave})
	})

	lim := throttle.New(l.clock, l.mouseInterval, func(ev PointerEvent) {
		l.appendPointer(ev.PageX, ev.PageY)
	})
	l.mu.Lock()
	l.limiters = append(l.limiters, lim)
	l.mu.Unlock()
	surface.AddEventListener("mousemove", lim.Call)

	surface.AddSignalListener(l.gestureSignal, func(_ string, value any) {
		phase, ok := asNumber(value)
		if !ok || phase == 0 {
			return
		}
		name := models.KindBrushEnd
		if phase == gesturePhaseStart {
			name = models.KindBrushStart
		}
		l.appendBrush(view, surface, name)
	})
	surface.AddSignalListener(l.pixelBrushSignal, func(string, any) {
		l.appendBrush(view, surface, models.KindBrush)
	})
}

// appendBrush reads both coordinate-space ranges from the surface at the
// moment of the event and buffers a brush interaction record. The four
// brush fields are set together or not at all.
func (l *Logger) appendBrush(view string, surface Surface, name string) {
	rec := models.InteractionRecord{View: view, Name: name}
	lo, hi, okData := asRange(surface.Signal(l.brushSignal))
	pixLo, pixHi, okPix := asRange(surface.Signal(l.pixelBrushSignal))
	if okData && okPix {
		rec.BrushStart, rec.BrushEnd = &lo, &hi
		rec.PixBrushStart, rec.PixBrushEnd = &pixLo, &pixHi
	}
	l.appendInteraction(rec)
}

// asNumber coerces the opaque gesture-state signal value to a float64.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// asRange coerces a signal value to a [lo, hi] pair. Surfaces expose ranges
// as two-element numeric slices.
func asRange(v any) (lo, hi float64, ok bool) {
	switch r := v.(type) {
	case []float64:
		if len(r) == 2 {
			return r[0], r[1], true
		}
	case [2]float64:
		return r[0], r[1], true
	case []any:
		if len(r) == 2 {
			lo, okLo := asNumber(r[0])
			hi, okHi := asNumber(r[1])
			if okLo && okHi {
				return lo, hi, true
			}
		}
	}
	return 0, 0, false
}
