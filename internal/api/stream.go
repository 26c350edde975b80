package api

import (
	"net/http"

	"github.com/starford/historian/internal/historian"
	"github.com/starford/historian/internal/layout"
	"github.com/starford/historian/internal/sse"
)

// SchedulerFactory returns a frame scheduler and a function releasing it.
type SchedulerFactory func() (layout.FrameScheduler, func())

// TickerSchedulers returns a factory for fps-rate ticker schedulers.
func TickerSchedulers(fps int) SchedulerFactory {
	return func() (layout.FrameScheduler, func()) {
		s := layout.NewTickerScheduler(fps)
		return s, s.Stop
	}
}

// LayoutStreamHandler streams live layout frames over SSE. Each request owns
// one engine; disconnecting disposes it.
type LayoutStreamHandler struct {
	svc        *historian.Service
	schedulers SchedulerFactory
}

// NewLayoutStreamHandler creates the handler.
func NewLayoutStreamHandler(svc *historian.Service, schedulers SchedulerFactory) *LayoutStreamHandler {
	return &LayoutStreamHandler{svc: svc, schedulers: schedulers}
}

// ServeHTTP handles GET /api/graph/layout/stream.
//
//	@Summary		Stream force-directed positions frame by frame
//	@Tags			graph
//	@Produce		text/event-stream
//	@Param			limit	query	int		false	"Max events"
//	@Param			width	query	number	false	"Viewport width"
//	@Param			height	query	number	false	"Viewport height"
//	@Success		200		{string}	string	"graph, positions and settled events"
//	@Failure		503		{object}	errResponse
//	@Router			/graph/layout/stream [get]
func (h *LayoutStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	req := layoutRequest(r)
	req.Width = historian.Dimension(req.Width, historian.DefaultLayoutWidth)
	req.Height = historian.Dimension(req.Height, historian.DefaultLayoutHeight)

	ctx := r.Context()
	g, err := h.svc.Graph(ctx, req.Limit)
	if err != nil {
		writeError(w, "layout stream", err)
		return
	}

	sched, release := h.schedulers()
	defer release()
	eng := layout.NewEngine(layout.NewSimulation(req.Width, req.Height), sched, layout.WithSettle(true))
	defer eng.Dispose()

	// Keep only the newest frame for a slow client.
	latest := make(chan layout.Snapshot, 1)
	eng.Subscribe(func(s layout.Snapshot) {
		select {
		case <-latest:
		default:
		}
		select {
		case latest <- s:
		default:
		}
	})

	sse.WriteHeaders(w)
	if !writeEvent(w, sse.Event{Type: "graph", Data: g}) {
		return
	}
	flusher.Flush()

	eng.GraphChanged(layout.Inputs(g))
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-latest:
			if !writeEvent(w, sse.Event{Type: "positions", Data: snap}) {
				return
			}
			if eng.State() == layout.Stopped {
				// The settling frame may have replaced snap in latest.
				final := eng.Last()
				if final.Frame > snap.Frame {
					if !writeEvent(w, sse.Event{Type: "positions", Data: final}) {
						return
					}
				}
				writeEvent(w, sse.Event{Type: "settled", Data: map[string]uint64{"frame": final.Frame}})
				flusher.Flush()
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev sse.Event) bool {
	raw, err := sse.Format(ev)
	if err != nil {
		return false
	}
	_, err = w.Write(raw)
	return err == nil
}
