// Package config loads the shared KEY=VALUE configuration store.
// The store is read exactly once at startup; edits made while the loop is
// running take effect only on the next start.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"chatrelay/internal/domain"
)

// Config is the immutable per-run configuration.
// Constructed once at startup and passed by reference into every component;
// no component reads ambient state directly.
type Config struct {
	WindowTitle string
	WebhookURL  string
	PollSec     float64
	OCRLang     string

	CropRect *domain.Rect
	CropMode domain.CropMode

	OnlyOnChange        bool
	NormalizeWhitespace bool
	KeepNewlines        bool
	Preprocess          bool
	Invert              bool
	Sharpen             bool
	AddTimestamp        bool
	SaveScreenshot      bool
	SaveScreenshotOnce  bool
	SaveLayoutDump      bool
	SkipSimilarFrames   bool

	Threshold    int
	OCRScale     float64
	MedianRadius int
	PageSegMode  int
	HashDistance int

	ScreenshotDir string
	PIDFile       string
	StopFile      string
	StatusFile    string
	LogDir        string

	HeartbeatSec      float64
	LatestLogMaxChars int
	RecentLogMaxLines int
}

// Load reads the env file at path and resolves a Config. A missing file is
// not an error: defaults apply. Validation is separate so supervisor-side
// commands can read paths without requiring a webhook URL.
func Load(path string) *Config {
	kv, err := godotenv.Read(path)
	if err != nil {
		kv = map[string]string{}
	}

	get := func(key, def string) string {
		if v, ok := kv[key]; ok && v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		WindowTitle: get("WINDOW_TITLE", "LINE"),
		WebhookURL:  get("WEBHOOK_URL", ""),
		PollSec:     getFloat(kv, "POLL_SEC", 1.0),
		OCRLang:     get("OCR_LANG", "jpn+eng"),

		CropRect: ParseRect(get("CROP_RECT", "")),
		CropMode: parseCropMode(get("CROP_MODE", "client")),

		OnlyOnChange:        ParseBool(get("ONLY_ON_CHANGE", ""), true),
		NormalizeWhitespace: ParseBool(get("NORMALIZE_WHITESPACE", ""), true),
		KeepNewlines:        ParseBool(get("KEEP_NEWLINES", ""), false),
		Preprocess:          ParseBool(get("PREPROCESS", ""), false),
		Invert:              ParseBool(get("INVERT", ""), false),
		Sharpen:             ParseBool(get("SHARPEN", ""), false),
		AddTimestamp:        ParseBool(get("ADD_TIMESTAMP", ""), true),
		SaveScreenshot:      ParseBool(get("SAVE_SCREENSHOT", ""), false),
		SaveScreenshotOnce:  ParseBool(get("SAVE_SCREENSHOT_ONCE", ""), false),
		SaveLayoutDump:      ParseBool(get("SAVE_LAYOUT_DUMP", ""), false),
		SkipSimilarFrames:   ParseBool(get("SKIP_SIMILAR_FRAMES", ""), false),

		Threshold:    getInt(kv, "THRESHOLD", 160),
		OCRScale:     getFloat(kv, "OCR_SCALE", 1.0),
		MedianRadius: getInt(kv, "MEDIAN_RADIUS", 0),
		PageSegMode:  getInt(kv, "PSM", 6),
		HashDistance: getInt(kv, "HASH_DISTANCE", 5),

		ScreenshotDir: get("SCREENSHOT_DIR", "screenshots"),
		PIDFile:       get("PID_FILE", "ocr.pid"),
		StopFile:      get("STOP_FILE", "STOP"),
		StatusFile:    get("STATUS_FILE", "ocr.status"),
		LogDir:        get("LOG_DIR", "logs"),

		HeartbeatSec:      getFloat(kv, "HEARTBEAT_SEC", 5.0),
		LatestLogMaxChars: getInt(kv, "LATEST_LOG_MAX_CHARS", 4000),
		RecentLogMaxLines: getInt(kv, "RECENT_LOG_MAX_LINES", 200),
	}

	return cfg
}

// Validate checks the invariants the loop refuses to start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WebhookURL) == "" {
		return domain.ErrMissingEndpoint
	}
	if c.PollSec <= 0 {
		return fmt.Errorf("POLL_SEC must be > 0, got %v", c.PollSec)
	}
	if c.OCRScale < 1.0 {
		return fmt.Errorf("OCR_SCALE must be >= 1.0, got %v", c.OCRScale)
	}
	if c.HeartbeatSec <= 0 {
		return fmt.Errorf("HEARTBEAT_SEC must be > 0, got %v", c.HeartbeatSec)
	}
	if c.LatestLogMaxChars <= 0 || c.RecentLogMaxLines <= 0 {
		return fmt.Errorf("log limits must be > 0")
	}
	return nil
}

// PollInterval returns the poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollSec * float64(time.Second))
}

// HeartbeatInterval returns the heartbeat interval as a duration.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSec * float64(time.Second))
}

// ParseBool parses a textual boolean: {1,true,yes,on} case-insensitive are
// true, anything else falls back to def. Empty input always yields def.
func ParseBool(value string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// ParseRect parses "left,top,right,bottom". Returns nil on malformed input,
// which means no crop is configured.
func ParseRect(value string) *domain.Rect {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return nil
	}
	nums := make([]int, 4)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil
		}
		nums[i] = n
	}
	return &domain.Rect{Left: nums[0], Top: nums[1], Right: nums[2], Bottom: nums[3]}
}

func parseCropMode(value string) domain.CropMode {
	if strings.EqualFold(strings.TrimSpace(value), string(domain.CropScreen)) {
		return domain.CropScreen
	}
	return domain.CropClient
}

func getInt(kv map[string]string, key string, def int) int {
	if v, ok := kv[key]; ok && v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getFloat(kv map[string]string, key string, def float64) float64 {
	if v, ok := kv[key]; ok && v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}
