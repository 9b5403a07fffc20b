// Package daemon implements the capture-recognize-dispatch relay loop.
package daemon

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/corona10/goimagehash"
	"go.uber.org/zap"

	"chatrelay/internal/config"
	"chatrelay/internal/domain"
	"chatrelay/internal/imaging"
	"chatrelay/internal/message"
	"chatrelay/internal/window"
)

// layoutDumper is implemented by recognizers that can emit a per-word
// layout table for offline crop tuning.
type layoutDumper interface {
	DumpLayout(img image.Image, dir string) (string, error)
}

// Relay is the loop orchestrator. It owns all transient loop state; a single
// logical thread of control runs one poll cycle to completion before the
// next begins, so no locking is needed.
type Relay struct {
	cfg        *config.Config
	locator    domain.WindowLocator
	capturer   domain.FrameCapturer
	recognizer domain.Recognizer
	sender     domain.Sender
	control    domain.ControlChannel
	logger     *zap.Logger

	lastSent      string
	lastHeartbeat time.Time
	savedOnce     bool
	lastHash      *goimagehash.ImageHash
}

// New creates a relay loop.
func New(
	cfg *config.Config,
	locator domain.WindowLocator,
	capturer domain.FrameCapturer,
	recognizer domain.Recognizer,
	sender domain.Sender,
	control domain.ControlChannel,
	logger *zap.Logger,
) *Relay {
	return &Relay{
		cfg:        cfg,
		locator:    locator,
		capturer:   capturer,
		recognizer: recognizer,
		sender:     sender,
		control:    control,
		logger:     logger,
	}
}

// Run drives the loop until a stop record appears, the context is canceled,
// or a fatal error occurs. The control channel's End runs on every exit
// path, panics included. A nil return means a clean stop.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.cfg.Validate(); err != nil {
		// Fatal before any control file is touched.
		return err
	}

	if err := r.control.Begin(); err != nil {
		return fmt.Errorf("control channel startup: %w", err)
	}
	defer r.control.End()

	r.lastHeartbeat = time.Now()
	r.logger.Info("relay loop started",
		zap.Int("pid", os.Getpid()),
		zap.String("window", r.cfg.WindowTitle),
		zap.Float64("poll_sec", r.cfg.PollSec),
		zap.String("crop_mode", string(r.cfg.CropMode)))

	for {
		if ctx.Err() != nil {
			r.logger.Info("termination signal observed, stopping")
			return nil
		}
		if r.control.StopRequested() {
			r.logger.Info("stop record observed, stopping")
			return nil
		}

		if err := r.iterate(); err != nil {
			r.logger.Error("fatal loop error", zap.Error(err))
			return err
		}

		r.heartbeatIfDue()

		select {
		case <-ctx.Done():
		case <-time.After(r.cfg.PollInterval()):
		}
	}
}

// iterate runs one poll cycle. Transient failures are logged and absorbed
// here; only delivery failures propagate, stopping the loop.
func (r *Relay) iterate() error {
	var win *domain.Window
	if window.NeedsWindow(r.cfg) {
		w, err := r.locator.Locate(r.cfg.WindowTitle)
		if err != nil {
			r.transient("window lookup", err)
			return nil
		}
		win = w
	}

	rect, err := window.ResolveCaptureRect(r.cfg, win)
	if err != nil {
		r.transient("region resolution", err)
		return nil
	}

	frame, err := r.capturer.Grab(rect)
	if err != nil {
		r.transient("frame capture", err)
		return nil
	}

	if r.cfg.SkipSimilarFrames && r.similarToLast(frame) {
		// The gate skips processing and recognition only; save-always
		// persistence continues through static regions.
		r.persistScreenshots(win, frame)
		return nil
	}

	processed := imaging.Process(frame, imaging.Options{
		Scale:        r.cfg.OCRScale,
		MedianRadius: r.cfg.MedianRadius,
		Sharpen:      r.cfg.Sharpen,
		Preprocess:   r.cfg.Preprocess,
		Invert:       r.cfg.Invert,
		Threshold:    r.cfg.Threshold,
	})

	text, err := r.recognizer.Recognize(processed)
	if err != nil {
		// Transient: an iteration yielding no text is not fatal.
		r.logger.Warn("recognition failed", zap.Error(err))
		text = ""
	}
	if r.cfg.NormalizeWhitespace {
		text = message.Normalize(text, r.cfg.KeepNewlines)
	}

	r.persistArtifacts(win, frame, processed)

	if text != "" {
		r.control.WriteLatest(text)
	}

	if message.ShouldSend(text, r.lastSent, r.cfg.OnlyOnChange) {
		if err := r.dispatch(text); err != nil {
			return err
		}
		r.lastSent = text
	}

	return nil
}

// dispatch formats and sends the text. The delivery outcome is logged to
// the webhook record either way; a failed delivery is fatal so endpoint
// misconfiguration surfaces instead of looping silently.
func (r *Relay) dispatch(text string) error {
	outcome, err := r.sender.Send(message.Format(text, r.cfg.AddTimestamp))
	if outcome != nil {
		line := fmt.Sprintf("status=%d chars=%d truncated=%v", outcome.StatusCode, outcome.Chars, outcome.Truncated)
		if err != nil {
			line += " error=" + outcome.Body
		}
		r.control.AppendWebhook(line)
	}
	if err != nil {
		return err
	}
	r.control.AppendRecent(fmt.Sprintf("sent %d chars", len([]rune(text))))
	r.logger.Info("dispatched", zap.Int("chars", len([]rune(text))))
	return nil
}

// similarToLast gates OCR on perceptual hash distance to the previous
// frame, skipping iterations where the region visibly did not change.
func (r *Relay) similarToLast(frame image.Image) bool {
	hash, err := goimagehash.PerceptionHash(frame)
	if err != nil {
		return false
	}
	if r.lastHash == nil {
		r.lastHash = hash
		return false
	}
	dist, err := r.lastHash.Distance(hash)
	if err != nil {
		r.lastHash = hash
		return false
	}
	if dist <= r.cfg.HashDistance {
		return true
	}
	r.lastHash = hash
	return false
}

// persistArtifacts saves screenshots and the layout dump when configured.
// The save-once flag is satisfied after the first successful save; the
// save-always flag persists every iteration. Failures are swallowed with a
// notice since they must never take down the dispatch path.
func (r *Relay) persistArtifacts(win *domain.Window, frame, processed image.Image) {
	r.persistScreenshots(win, frame)

	if r.cfg.SaveLayoutDump {
		if dumper, ok := r.recognizer.(layoutDumper); ok {
			if path, err := dumper.DumpLayout(processed, r.cfg.ScreenshotDir); err != nil {
				r.logger.Warn("layout dump failed", zap.Error(err))
			} else {
				r.logger.Info("layout dump written", zap.String("path", path))
			}
		}
	}
}

// persistScreenshots saves the frame when the save-always flag is set or the
// save-once flag is not yet satisfied. Save-once is satisfied by the first
// successful save; failures are retried on the next iteration.
func (r *Relay) persistScreenshots(win *domain.Window, frame image.Image) {
	if !(r.cfg.SaveScreenshot || (r.cfg.SaveScreenshotOnce && !r.savedOnce)) {
		return
	}
	if err := r.saveScreenshots(win, frame); err != nil {
		r.logger.Warn("screenshot save failed", zap.Error(err))
	} else {
		r.savedOnce = true
	}
}

// saveScreenshots writes the cropped capture and, when a window was
// resolved, the full client area alongside it.
func (r *Relay) saveScreenshots(win *domain.Window, frame image.Image) error {
	if err := os.MkdirAll(r.cfg.ScreenshotDir, 0755); err != nil {
		return err
	}
	ts := time.Now().Format("20060102_150405")

	if err := writePNG(filepath.Join(r.cfg.ScreenshotDir, "crop_"+ts+".png"), frame); err != nil {
		return err
	}

	if win != nil {
		full, err := r.capturer.Grab(win.Client)
		if err != nil {
			return err
		}
		if err := writePNG(filepath.Join(r.cfg.ScreenshotDir, "full_"+ts+".png"), full); err != nil {
			return err
		}
	}
	r.logger.Info("screenshots saved", zap.String("dir", r.cfg.ScreenshotDir))
	return nil
}

// transient logs a recoverable per-iteration failure and records it in the
// rolling activity log; the loop stays in the running state.
func (r *Relay) transient(stage string, err error) {
	r.logger.Warn("iteration skipped", zap.String("stage", stage), zap.Error(err))
	r.control.AppendRecent(stage + " failed: " + err.Error() + " (retrying next poll)")
}

func (r *Relay) heartbeatIfDue() {
	if time.Since(r.lastHeartbeat) < r.cfg.HeartbeatInterval() {
		return
	}
	if err := r.control.Heartbeat(); err != nil {
		r.logger.Warn("heartbeat write failed", zap.Error(err))
		return
	}
	r.lastHeartbeat = time.Now()
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
