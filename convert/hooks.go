package convert

import (
	"context"
	"sort"

	"github.com/whereissushi/zpravodaj-api/observability"
)

// Phase identifies one stage of a conversion.
type Phase int

const (
	PhaseOpen Phase = iota
	PhaseRasterize
	PhaseRecognize
	PhaseIndex
	PhaseAssemble
	PhaseVerify
)

func (p Phase) String() string {
	return []string{"Open", "Rasterize", "Recognize", "Index", "Assemble", "Verify"}[p]
}

// Event describes progress inside a conversion. Page is 0 for events
// that cover the whole document.
type Event struct {
	Phase Phase
	Page  int
	Total int
	Err   error
}

// Hook observes conversion progress. Hooks must not block; slow
// consumers should hand events off to their own goroutine.
type Hook interface {
	Name() string
	Priority() int
	OnEvent(ctx context.Context, ev Event)
}

// Hub fans events out to registered hooks in priority order.
type Hub struct {
	hooks []Hook
}

func NewHub() *Hub { return &Hub{} }

func (h *Hub) Register(hook Hook) {
	h.hooks = append(h.hooks, hook)
	sort.SliceStable(h.hooks, func(i, j int) bool { return h.hooks[i].Priority() < h.hooks[j].Priority() })
}

func (h *Hub) Emit(ctx context.Context, ev Event) {
	for _, hook := range h.hooks {
		hook.OnEvent(ctx, ev)
	}
}

// LogHook writes conversion progress to a logger. Per-page rasterize
// and recognize events log at debug so a large document does not flood
// the info stream.
type LogHook struct {
	logger observability.Logger
}

func NewLogHook(logger observability.Logger) *LogHook {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &LogHook{logger: logger}
}

func (h *LogHook) Name() string  { return "log" }
func (h *LogHook) Priority() int { return 100 }

func (h *LogHook) OnEvent(_ context.Context, ev Event) {
	fields := []observability.Field{
		observability.String("phase", ev.Phase.String()),
	}
	if ev.Page > 0 {
		fields = append(fields, observability.Int("page", ev.Page), observability.Int("total", ev.Total))
	}
	if ev.Err != nil {
		fields = append(fields, observability.Error("error", ev.Err))
		h.logger.Error("conversion phase failed", fields...)
		return
	}
	if ev.Page > 0 {
		h.logger.Debug("conversion progress", fields...)
		return
	}
	h.logger.Info("conversion phase done", fields...)
}
