// Package notify turns editor events into toasts and alerts and fans them
// out to the configured sinks.
package notify

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/captionkit/internal/platform"
)

// Event identifies a notification trigger.
type Event string

const (
	// EventAdd fires when an element is added to the canvas.
	EventAdd Event = "add"
	// EventExport fires when the composite has been exported.
	EventExport Event = "export"
	// EventLoad fires when the background image could not be loaded.
	EventLoad Event = "load"
	// EventError fires for other failed actions.
	EventError Event = "error"
	// EventSelect fires when an image is opened for annotation.
	EventSelect Event = "select"
	// EventBack fires when the editor is left for the search page.
	EventBack Event = "back"
)

// Events lists every event in configuration order.
func Events() []Event {
	return []Event{EventAdd, EventExport, EventLoad, EventError, EventSelect, EventBack}
}

// Level is the severity of a toast.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	// LevelAlert is a blocking message the user has to acknowledge.
	LevelAlert Level = "alert"
)

// Toast is one delivered notification.
type Toast struct {
	Level   Level     `json:"level"`
	Event   Event     `json:"event,omitempty"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// EventPreference describes formatting for a notification event. A
// template containing %s receives the event detail.
type EventPreference struct {
	Enabled  bool
	Template string
}

// Preferences describes notification behaviour loaded from configuration.
type Preferences struct {
	Title  string
	Events map[Event]EventPreference
}

// Default messages.
const (
	LoadAlert = "Failed to load image. Please try again."
)

// DefaultPreferences returns the default notification settings.
func DefaultPreferences() Preferences {
	return Preferences{
		Title: "captionkit",
		Events: map[Event]EventPreference{
			EventAdd:    {Enabled: true, Template: "%s added!"},
			EventExport: {Enabled: true, Template: "Image downloaded!"},
			EventLoad:   {Enabled: true, Template: "Failed to load image."},
			EventError:  {Enabled: true, Template: "%s"},
			EventSelect: {Enabled: true, Template: "Image selected!"},
			EventBack:   {Enabled: true, Template: "Back to search page!"},
		},
	}
}

// ApplyEnv overrides titles and templates from CAPTIONKIT_NOTIFY_* variables.
func (p Preferences) ApplyEnv(getenv func(string) string) Preferences {
	if getenv == nil {
		getenv = os.Getenv
	}
	out := p.clone()
	if v := strings.TrimSpace(getenv("CAPTIONKIT_NOTIFY_TITLE")); v != "" {
		out.Title = v
	}
	for _, ev := range Events() {
		key := "CAPTIONKIT_NOTIFY_" + strings.ToUpper(string(ev)) + "_TEXT"
		if v := strings.TrimSpace(getenv(key)); v != "" {
			pref := out.Events[ev]
			pref.Template = v
			out.Events[ev] = pref
		}
	}
	return out
}

func (p Preferences) clone() Preferences {
	out := Preferences{Title: p.Title, Events: make(map[Event]EventPreference, len(p.Events))}
	for k, v := range p.Events {
		out.Events[k] = v
	}
	return out
}

// Sink receives delivered toasts.
type Sink interface {
	Deliver(title string, t Toast) error
}

// Notifier formats events and hands them to every sink. The zero value and
// a nil *Notifier drop everything.
type Notifier struct {
	prefs Preferences
	sinks []Sink
	now   func() time.Time
}

// New creates a Notifier.
func New(prefs Preferences, sinks ...Sink) *Notifier {
	return &Notifier{prefs: prefs.clone(), sinks: sinks, now: time.Now}
}

// With returns a copy of n that also delivers to sinks.
func (n *Notifier) With(sinks ...Sink) *Notifier {
	if n == nil {
		return New(DefaultPreferences(), sinks...)
	}
	out := &Notifier{prefs: n.prefs.clone(), now: n.now}
	out.sinks = append(append([]Sink(nil), n.sinks...), sinks...)
	return out
}

// Enable toggles an event.
func (n *Notifier) Enable(event Event, enabled bool) {
	if n == nil {
		return
	}
	if n.prefs.Events == nil {
		n.prefs.Events = make(map[Event]EventPreference)
	}
	pref := n.prefs.Events[event]
	pref.Enabled = enabled
	n.prefs.Events[event] = pref
}

// Enabled reports whether event is delivered.
func (n *Notifier) Enabled(event Event) bool {
	if n == nil {
		return false
	}
	return n.prefs.Events[event].Enabled
}

// Added announces a new element; label is the capitalised kind name.
func (n *Notifier) Added(label string) { n.dispatch(EventAdd, LevelSuccess, label) }

// Exported announces a finished export.
func (n *Notifier) Exported(name string) { n.dispatch(EventExport, LevelSuccess, name) }

// LoadFailed raises the blocking alert and the error toast for a
// background that could not be loaded.
func (n *Notifier) LoadFailed() {
	if !n.Enabled(EventLoad) {
		return
	}
	n.deliver(Toast{Level: LevelAlert, Event: EventLoad, Message: LoadAlert})
	n.dispatch(EventLoad, LevelError, "")
}

// Failed reports a failed action.
func (n *Notifier) Failed(msg string) { n.dispatch(EventError, LevelError, msg) }

// Selected announces the image opened for annotation.
func (n *Notifier) Selected() { n.dispatch(EventSelect, LevelSuccess, "") }

// Returned announces the return to the search page.
func (n *Notifier) Returned() { n.dispatch(EventBack, LevelSuccess, "") }

func (n *Notifier) dispatch(event Event, level Level, detail string) {
	if !n.Enabled(event) {
		return
	}
	body := format(n.prefs.Events[event].Template, detail)
	if body == "" {
		return
	}
	n.deliver(Toast{Level: level, Event: event, Message: body})
}

func (n *Notifier) deliver(t Toast) {
	if n.now == nil {
		n.now = time.Now
	}
	t.Time = n.now()
	for _, s := range n.sinks {
		if err := s.Deliver(n.prefs.Title, t); err != nil {
			logrus.WithError(err).WithField("event", t.Event).Warn("notification delivery failed")
		}
	}
}

func format(template, detail string) string {
	template = strings.TrimSpace(template)
	if strings.Contains(template, "%s") {
		return strings.TrimSpace(fmt.Sprintf(template, strings.TrimSpace(detail)))
	}
	return template
}

// LogSink writes toasts to logrus.
type LogSink struct{}

func (LogSink) Deliver(_ string, t Toast) error {
	entry := logrus.WithFields(logrus.Fields{"event": t.Event, "level": t.Level})
	if t.Level == LevelSuccess {
		entry.Info(t.Message)
	} else {
		entry.Warn(t.Message)
	}
	return nil
}

// Recorder keeps toasts until drained.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Deliver(_ string, t Toast) error {
	r.mu.Lock()
	r.toasts = append(r.toasts, t)
	r.mu.Unlock()
	return nil
}

// Drain returns and forgets the recorded toasts.
func (r *Recorder) Drain() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.toasts
	r.toasts = nil
	return out
}

var platformNotify = platform.Notify

// DesktopSink shows toasts through the host notification service.
type DesktopSink struct {
	Timeout time.Duration
}

func (d DesktopSink) Deliver(title string, t Toast) error {
	opts := platform.Options{Urgency: platform.UrgencyNormal, Timeout: d.Timeout}
	switch t.Level {
	case LevelAlert:
		opts.Urgency = platform.UrgencyCritical
	case LevelSuccess:
		opts.Urgency = platform.UrgencyLow
	}
	return platformNotify(title, t.Message, opts)
}
