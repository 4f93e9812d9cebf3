package logger

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

// lineWriter is satisfied by asyncWriter and by plain buffers in tests.
type lineWriter interface {
	Write(p []byte) error
}

type handlerConfig struct {
	level    slog.Leveler
	writer   lineWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as one flat JSON object or key=value line.
// Groups are flattened into dotted keys and durations become *_ms integers.
type structuredHandler struct {
	cfg    handlerConfig
	preset []slog.Attr
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if len(cfg.keyOrder) == 0 {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}

	rec := make(entry, 16)
	ts := r.Time.UTC()
	rec["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	rec["level"] = normalizeLevel(r.Level.String())

	for _, a := range h.preset {
		rec.put("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.put(h.prefix, a)
		return true
	})
	rec.fillFromContext(ctx)

	if rid, ok := rec.str("rid"); ok {
		if compact := CompactRID(rid); compact != rid {
			if h.cfg.format == formatJSON {
				rec.setDefault("rid_full", rid)
			}
			rec["rid"] = compact
		}
	}
	if ev, _ := rec.str("event"); ev == "" {
		rec["event"] = cmp.Or(r.Message, "unknown")
	}
	if c, _ := rec.str("component"); c == "" {
		rec["component"] = "app"
	}
	rec.normalizeEnums()
	rec.prune()

	var line []byte
	var err error
	if h.cfg.format == formatJSON {
		line, err = rec.json(h.cfg.keyOrder)
	} else {
		line = rec.kv(h.cfg.keyOrder)
	}
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.preset = slices.Clone(h.preset)
	// bound attrs keep the group prefix active at bind time
	for _, a := range attrs {
		clone.preset = append(clone.preset, slog.Attr{Key: joinKey(h.prefix, a.Key), Value: a.Value})
	}
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix += "." + name
	}
	return &clone
}

// entry is the flattened field set of a single log line.
type entry map[string]any

func (e entry) put(prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	key := joinKey(prefix, a.Key)
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			e.put(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, v, ok := normalizeValue(key, a.Value); ok {
		e[k] = v
	}
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

func (e entry) str(key string) (string, bool) {
	v, ok := e[key]
	if !ok {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

func (e entry) setDefault(key string, v any) {
	if _, ok := e[key]; !ok {
		e[key] = v
	}
}

func (e entry) fillFromContext(ctx context.Context) {
	meta, ok := metaFrom(ctx)
	if !ok {
		return
	}
	if meta.rid != "" {
		e.setDefault("rid", meta.rid)
	}
	if meta.updateID != 0 {
		e.setDefault("update_id", int64(meta.updateID))
	}
	if meta.userID != 0 {
		e.setDefault("user_id", meta.userID)
	}
	if meta.chatID != 0 {
		e.setDefault("chat_id", meta.chatID)
	}
	if meta.handler != "" {
		e.setDefault("handler", meta.handler)
	}
}

func (e entry) normalizeEnums() {
	if s, ok := e.str("status"); ok && s != "" {
		e["status"] = normalizeStatus(s)
	}
	if o, ok := e.str("outcome"); ok && o != "" {
		if v, valid := allowedOutcome[strings.ToLower(o)]; valid {
			e["outcome"] = v
		} else {
			delete(e, "outcome")
		}
	}
}

func (e entry) prune() {
	for k, v := range e {
		switch val := v.(type) {
		case nil:
			delete(e, k)
		case string:
			if val == "" {
				delete(e, k)
			}
		}
	}
}

// keys returns preferred keys first, then the rest alphabetically.
func (e entry) keys(order []string) []string {
	out := make([]string, 0, len(e))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if _, ok := e[k]; ok && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(e)-len(out))
	for k := range e {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func (e entry) json(order []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range e.keys(order) {
		data, err := json.Marshal(e[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e entry) kv(order []string) []byte {
	var buf bytes.Buffer
	for i, k := range e.keys(order) {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(e[k]))
	}
	return buf.Bytes()
}

func kvValue(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if strings.ContainsFunc(s, needsQuote) {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

func normalizeValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey maps "duration" to "duration_ms" and "x" to "x_ms".
func durationKey(key string) string {
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}
