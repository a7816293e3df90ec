// vislog-sim drives the interaction logging pipeline with synthetic hover,
// brush and pointer traffic against a running collection agent. It exists
// so the full logger → transport → agent path can be exercised without a
// browser in front of it.
package main

import (
	"flag"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vislab/vislog/internal/logger"
)

// scriptedSurface is a minimal in-process stand-in for a visualization
// surface: it records the handlers the logger registers and lets the script
// fire events and mutate signals.
type scriptedSurface struct {
	mu             sync.Mutex
	eventHandlers  map[string][]func(logger.PointerEvent)
	signalHandlers map[string][]func(string, any)
	signals        map[string]any
}

func newScriptedSurface() *scriptedSurface {
	return &scriptedSurface{
		eventHandlers:  make(map[string][]func(logger.PointerEvent)),
		signalHandlers: make(map[string][]func(string, any)),
		signals:        make(map[string]any),
	}
}

func (s *scriptedSurface) AddEventListener(kind string, handler func(logger.PointerEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventHandlers[kind] = append(s.eventHandlers[kind], handler)
}

func (s *scriptedSurface) AddSignalListener(name string, handler func(string, any)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signalHandlers[name] = append(s.signalHandlers[name], handler)
}

func (s *scriptedSurface) Signal(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signals[name]
}

func (s *scriptedSurface) fire(kind string, ev logger.PointerEvent) {
	s.mu.Lock()
	handlers := s.eventHandlers[kind]
	s.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

func (s *scriptedSurface) setSignal(name string, value any) {
	s.mu.Lock()
	s.signals[name] = value
	handlers := s.signalHandlers[name]
	s.mu.Unlock()
	for _, h := range handlers {
		h(name, value)
	}
}

func main() {
	var (
		url      = flag.String("url", logger.DefaultURL, "collection endpoint to post batches to")
		userID   = flag.String("user", "", "user identifier (default: random)")
		taskID   = flag.String("task", "sim", "task identifier")
		flush    = flag.Duration("flush", 2*time.Second, "flush interval")
		duration = flag.Duration("duration", 10*time.Second, "how long to generate traffic")
	)
	flag.Parse()

	if *userID == "" {
		*userID = uuid.NewString()
	}

	l := logger.New(logger.Options{
		UserID:        *userID,
		TaskID:        *taskID,
		URL:           *url,
		FlushInterval: *flush,
	})
	defer l.Close()

	surface := newScriptedSurface()
	surface.setSignal(logger.DefaultBrushSignal, []float64{0, 0})
	surface.setSignal(logger.DefaultPixelBrushSignal, []float64{0, 0})
	l.Attach("chart1", surface)

	log.Printf("simulating interactions as user %s against %s", *userID, *url)
	deadline := time.Now().Add(*duration)
	for time.Now().Before(deadline) {
		surface.fire("mouseenter", logger.PointerEvent{})

		// pointer jitter, far faster than the sampling interval
		x, y := rand.Float64()*800, rand.Float64()*600
		for i := 0; i < 40; i++ {
			x += rand.Float64()*10 - 5
			y += rand.Float64()*10 - 5
			surface.fire("mousemove", logger.PointerEvent{PageX: x, PageY: y})
			time.Sleep(5 * time.Millisecond)
		}

		// one brush gesture: start, a few extent changes, end
		lo := rand.Float64() * 50
		surface.setSignal(logger.DefaultGestureSignal, 2)
		for i := 1; i <= 5; i++ {
			hi := lo + float64(i*10)
			surface.setSignal(logger.DefaultBrushSignal, []float64{lo, hi})
			surface.setSignal(logger.DefaultPixelBrushSignal, []float64{lo * 8, hi * 8})
			time.Sleep(30 * time.Millisecond)
		}
		surface.setSignal(logger.DefaultGestureSignal, 1)

		surface.fire("mouseleave", logger.PointerEvent{})
		time.Sleep(500 * time.Millisecond)
	}

	if l.HasUnsentData() {
		log.Println("exiting with undelivered records (agent down or pipeline halted)")
	} else {
		log.Println("all records delivered")
	}
}
