package logging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// RepositoryKey is the log field that scopes alert suppression.
const RepositoryKey = "repository"

// DefaultMaxAlerts bounds the buffered entries; later ones are only counted.
const DefaultMaxAlerts = 500

// Notifier delivers the collected alerts.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// NopNotifier discards alerts.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) error { return nil }

// Alerts buffers error-level entries for one run.
type Alerts struct {
	mu         sync.Mutex
	notifier   Notifier
	subject    string
	max        int
	entries    []string
	dropped    int
	suppressed map[string]int
}

func NewAlerts(n Notifier, subject string) *Alerts {
	if n == nil {
		n = NopNotifier{}
	}
	return &Alerts{
		notifier:   n,
		subject:    subject,
		max:        DefaultMaxAlerts,
		suppressed: make(map[string]int),
	}
}

// Suppress stops collecting entries logged for repository until the
// returned func is called. Calls nest.
func (a *Alerts) Suppress(repository string) (restore func()) {
	a.mu.Lock()
	a.suppressed[repository]++
	a.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			if a.suppressed[repository]--; a.suppressed[repository] <= 0 {
				delete(a.suppressed, repository)
			}
		})
	}
}

// Suppressed reports whether entries for repository are currently dropped.
func (a *Alerts) Suppressed(repository string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.suppressed[repository] > 0
}

// Len returns the number of collected entries, dropped ones included.
func (a *Alerts) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries) + a.dropped
}

// Flush sends everything collected so far and resets the buffer. Nothing is
// sent when no entry was collected.
func (a *Alerts) Flush(ctx context.Context) error {
	a.mu.Lock()
	entries, dropped := a.entries, a.dropped
	a.entries, a.dropped = nil, 0
	a.mu.Unlock()

	if len(entries) == 0 && dropped == 0 {
		return nil
	}
	body := strings.Join(entries, "\n")
	if dropped > 0 {
		body += fmt.Sprintf("\n... and %d more", dropped)
	}
	if err := a.notifier.Notify(ctx, a.subject, body+"\n"); err != nil {
		return fmt.Errorf("send alerts: %w", err)
	}
	return nil
}

func (a *Alerts) add(repository, line string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.suppressed[repository] > 0 {
		return
	}
	if len(a.entries) >= a.max {
		a.dropped++
		return
	}
	a.entries = append(a.entries, line)
}

// Core returns a zap core feeding a.
func (a *Alerts) Core() zapcore.Core {
	return &alertCore{alerts: a}
}

type alertCore struct {
	alerts *Alerts
	fields []zapcore.Field
}

func (c *alertCore) Enabled(l zapcore.Level) bool {
	return l >= zapcore.ErrorLevel
}

func (c *alertCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &alertCore{alerts: c.alerts, fields: merged}
}

func (c *alertCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c *alertCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	repository, _ := enc.Fields[RepositoryKey].(string)

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", e.Time.UTC().Format(time.RFC3339), e.Level.CapitalString(), e.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, enc.Fields[k])
	}
	c.alerts.add(repository, b.String())
	return nil
}

func (c *alertCore) Sync() error { return nil }
