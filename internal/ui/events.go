package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/muurk/fairbuds/internal/protocol"
	"github.com/muurk/fairbuds/internal/session"
)

// EventPrinter is a session.EventSink that writes one line per event.
type EventPrinter struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

// NewEventPrinter prints events to out.
func NewEventPrinter(out io.Writer) *EventPrinter {
	return &EventPrinter{out: out, now: time.Now}
}

// HandleEvent implements session.EventSink
func (p *EventPrinter) HandleEvent(ev protocol.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, FormatEvent(p.now(), ev))
}

// FormatEvent renders "15:04:05  device_info  left 80%, right 75%, "Fairbuds"".
func FormatEvent(at time.Time, ev protocol.Event) string {
	return EventTimeStyle.Render(at.Format("15:04:05")) + "  " +
		EventKindStyle.Render(fmt.Sprintf("%-11s", ev.Kind())) + "  " +
		describeEvent(ev)
}

func describeEvent(ev protocol.Event) string {
	switch e := ev.(type) {
	case *protocol.DeviceInfoEvent:
		s := fmt.Sprintf("left %s, right %s", e.Info.BatteryLeft, e.Info.BatteryRight)
		if e.Info.Name != "" {
			s += fmt.Sprintf(", %q", e.Info.Name)
		}
		return s
	case *protocol.AckEvent:
		return fmt.Sprintf("%s %s % x", protocol.CommandName(e.Command), protocol.TypeName(e.Type), e.Payload)
	case *session.LinkLostEvent:
		if e.Err != nil {
			return ErrorMessageStyle.Render("link lost: " + e.Err.Error())
		}
		return ErrorMessageStyle.Render("link lost")
	case *protocol.UnknownEvent:
		return fmt.Sprintf("% x", e.Raw)
	default:
		return ev.String()
	}
}

var _ session.EventSink = (*EventPrinter)(nil)
