// Package logging hands out one slog.Logger per subsystem. Each category has
// its own level, adjustable at runtime (see HandleOSCSetCategoryLevel).
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/hypebeast/go-osc/osc"
)

type Category string

const (
	META    Category = "meta" // logs about logging
	BRIDGE  Category = "bridge"
	BINDING Category = "binding"
	METER   Category = "meter"
	HOST    Category = "host"
	WEB     Category = "web"
	OSC     Category = "osc"
	AUDIO   Category = "audio"
	UI      Category = "ui"
)

var defaultLevels = map[Category]slog.Level{
	META:    slog.LevelInfo,
	BRIDGE:  slog.LevelInfo,
	BINDING: slog.LevelInfo,
	METER:   slog.LevelWarn,
	HOST:    slog.LevelInfo,
	WEB:     slog.LevelInfo,
	OSC:     slog.LevelWarn,
	AUDIO:   slog.LevelInfo,
	UI:      slog.LevelInfo,
}

// ParseCategory maps a name onto a known category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(s))
	_, ok := defaultLevels[c]
	return c, ok
}

var (
	mu      sync.RWMutex
	out     io.Writer = os.Stderr
	loggers           = map[Category]*slog.Logger{}
	levels            = map[Category]*slog.LevelVar{}
)

// SetOutput redirects every category logger. Loggers handed out earlier are
// rebuilt on their next Get call; callers should fetch loggers after
// configuring output. A nil writer restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	out = w
	loggers = map[Category]*slog.Logger{}
}

// Get returns the logger for category, tagged with a "category" attribute.
func Get(category Category) *slog.Logger {
	mu.RLock()
	l, ok := loggers[category]
	mu.RUnlock()
	if ok {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: levelVar(category)})
	l = slog.New(handler).With("category", string(category))
	loggers[category] = l
	return l
}

// levelVar must be called with mu held.
func levelVar(category Category) *slog.LevelVar {
	lv, ok := levels[category]
	if !ok {
		lv = new(slog.LevelVar)
		if def, known := defaultLevels[category]; known {
			lv.Set(def)
		}
		levels[category] = lv
	}
	return lv
}

// SetCategoryLevel changes the level of one category.
func SetCategoryLevel(category Category, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	levelVar(category).Set(level)
}

// SetAllLevels changes every known category, used by --debug.
func SetAllLevels(level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	for c := range defaultLevels {
		levelVar(c).Set(level)
	}
}

// CategoryLevel reports the current level of a category.
func CategoryLevel(category Category) slog.Level {
	mu.Lock()
	defer mu.Unlock()
	return levelVar(category).Level()
}

// HandleOSCSetCategoryLevel serves /meta/logging/{category}/level with an int32
// argument: -4 debug, 0 info, 4 warn, 8 error.
func HandleOSCSetCategoryLevel(msg *osc.Message) {
	segs := strings.Split(strings.TrimPrefix(msg.Address, "/"), "/")
	if len(segs) != 4 || segs[0] != "meta" || segs[1] != "logging" || segs[3] != "level" {
		return
	}
	cat, ok := ParseCategory(segs[2])
	if !ok {
		Get(META).Info("unrecognized log category in OSC message", "category", segs[2])
		return
	}
	if len(msg.Arguments) == 0 {
		Get(META).Error("missing level argument in OSC message", "address", msg.Address)
		return
	}
	level, ok := msg.Arguments[0].(int32)
	if !ok {
		Get(META).Error("invalid level type in OSC message", "expected", "int32", "got", fmt.Sprintf("%T", msg.Arguments[0]))
		return
	}
	Get(META).Info("setting category level via OSC", "category", cat, "level", level)
	SetCategoryLevel(cat, slog.Level(level))
}
