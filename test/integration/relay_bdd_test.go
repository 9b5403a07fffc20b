//go:build integration

package integration

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"chatrelay/internal/config"
	"chatrelay/internal/control"
	"chatrelay/internal/daemon"
	"chatrelay/internal/domain"
)

// fakeCapturer returns a fixed frame for any rectangle.
type fakeCapturer struct{ frame image.Image }

func (f *fakeCapturer) Grab(r domain.Rect) (image.Image, error) { return f.frame, nil }

// fakeLocator is unused in screen-crop mode but satisfies the interface.
type fakeLocator struct{}

func (f *fakeLocator) Locate(title string) (*domain.Window, error) {
	return nil, domain.ErrWindowNotFound
}

// scriptedRecognizer returns each text once, then repeats the last.
type scriptedRecognizer struct {
	mu    sync.Mutex
	texts []string
	calls int
}

func (s *scriptedRecognizer) Recognize(img image.Image) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	i := s.calls - 1
	if i >= len(s.texts) {
		i = len(s.texts) - 1
	}
	return s.texts[i], nil
}

// recordingSender records dispatched payloads and can fail on demand.
type recordingSender struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (r *recordingSender) Send(text string) (*domain.DeliveryOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if text == "" {
		return nil, nil
	}
	r.sent = append(r.sent, text)
	if r.fail {
		return &domain.DeliveryOutcome{StatusCode: 500, Body: "rejected", Chars: len([]rune(text))},
			domain.ErrDeliveryFailed
	}
	return &domain.DeliveryOutcome{StatusCode: 204, Chars: len([]rune(text))}, nil
}

func (r *recordingSender) sentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func uniformFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{200, 200, 200, 255})
		}
	}
	return img
}

var _ = Describe("Relay Loop", func() {
	var (
		tmpDir string
		cfg    *config.Config
		files  *control.Files
		sender *recordingSender
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()

		cfg = &config.Config{
			WindowTitle:       "LINE",
			WebhookURL:        "https://example.com/hook",
			PollSec:           0.02,
			CropMode:          domain.CropScreen,
			CropRect:          &domain.Rect{Left: 0, Top: 0, Right: 32, Bottom: 32},
			OnlyOnChange:      true,
			AddTimestamp:      false,
			OCRScale:          1.0,
			HeartbeatSec:      0.01,
			PIDFile:           filepath.Join(tmpDir, "ocr.pid"),
			StopFile:          filepath.Join(tmpDir, "STOP"),
			StatusFile:        filepath.Join(tmpDir, "ocr.status"),
			LogDir:            filepath.Join(tmpDir, "logs"),
			ScreenshotDir:     filepath.Join(tmpDir, "screenshots"),
			LatestLogMaxChars: 4000,
			RecentLogMaxLines: 200,
		}
		files = control.NewFiles(cfg.PIDFile, cfg.StopFile, cfg.StatusFile, cfg.LogDir,
			cfg.LatestLogMaxChars, cfg.RecentLogMaxLines, zap.NewNop())
		sender = &recordingSender{}
	})

	newRelay := func(rec domain.Recognizer) *daemon.Relay {
		return daemon.New(cfg, &fakeLocator{}, &fakeCapturer{frame: uniformFrame()},
			rec, sender, files, zap.NewNop())
	}

	Describe("supervised lifecycle", func() {
		It("runs, dispatches, and stops via the stop record", func() {
			relay := newRelay(&scriptedRecognizer{texts: []string{"hello from chat"}})

			done := make(chan error, 1)
			go func() { done <- relay.Run(context.Background()) }()

			// Supervisor view: pid and status records appear.
			Eventually(func() int {
				return control.ReadPID(cfg.PIDFile)
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(os.Getpid()))

			Eventually(func() string {
				state, _ := control.ReadStatus(cfg.StatusFile)
				return state
			}, 2*time.Second, 10*time.Millisecond).Should(Equal("running"))

			// The recognized text is dispatched exactly once despite polling.
			Eventually(sender.sentCount, 2*time.Second, 10*time.Millisecond).Should(Equal(1))
			Consistently(sender.sentCount, 200*time.Millisecond, 20*time.Millisecond).Should(Equal(1))

			Expect(control.RequestStop(cfg.StopFile)).To(Succeed())

			var runErr error
			Eventually(done, 2*time.Second).Should(Receive(&runErr))
			Expect(runErr).NotTo(HaveOccurred())

			// Clean shutdown: status stopped, pid record gone.
			state, _ := control.ReadStatus(cfg.StatusFile)
			Expect(state).To(Equal("stopped"))
			_, err := os.Stat(cfg.PIDFile)
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("refreshes the heartbeat timestamp while running", func() {
			relay := newRelay(&scriptedRecognizer{texts: []string{""}})

			done := make(chan error, 1)
			go func() { done <- relay.Run(context.Background()) }()

			Eventually(func() int64 {
				_, ts := control.ReadStatus(cfg.StatusFile)
				return ts
			}, 2*time.Second, 10*time.Millisecond).Should(BeNumerically(">", 0))

			Expect(control.RequestStop(cfg.StopFile)).To(Succeed())
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))
		})

		It("writes the rolling logs for the supervisor to tail", func() {
			relay := newRelay(&scriptedRecognizer{texts: []string{"latest chat text"}})

			done := make(chan error, 1)
			go func() { done <- relay.Run(context.Background()) }()

			Eventually(sender.sentCount, 2*time.Second, 10*time.Millisecond).Should(Equal(1))
			Expect(control.RequestStop(cfg.StopFile)).To(Succeed())
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))

			latest, err := os.ReadFile(filepath.Join(cfg.LogDir, control.LatestLogName))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(latest)).To(Equal("latest chat text"))

			webhook, err := os.ReadFile(filepath.Join(cfg.LogDir, control.WebhookLogName))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(webhook)).To(ContainSubstring("status=204"))

			recent, err := os.ReadFile(filepath.Join(cfg.LogDir, control.RecentLogName))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(recent)).To(ContainSubstring("sent 16 chars"))
		})
	})

	Describe("delivery failure", func() {
		It("stops the loop and leaves a stopped status behind", func() {
			sender.fail = true
			relay := newRelay(&scriptedRecognizer{texts: []string{"doomed message"}})

			err := relay.Run(context.Background())
			Expect(err).To(MatchError(domain.ErrDeliveryFailed))

			state, _ := control.ReadStatus(cfg.StatusFile)
			Expect(state).To(Equal("stopped"))

			webhook, readErr := os.ReadFile(filepath.Join(cfg.LogDir, control.WebhookLogName))
			Expect(readErr).NotTo(HaveOccurred())
			Expect(string(webhook)).To(ContainSubstring("status=500"))
			Expect(string(webhook)).To(ContainSubstring("error=rejected"))
		})
	})

	Describe("restart after a crash", func() {
		It("replaces a dead pid record on the next start", func() {
			Expect(os.WriteFile(cfg.PIDFile, []byte("999999"), 0644)).To(Succeed())

			relay := newRelay(&scriptedRecognizer{texts: []string{""}})

			done := make(chan error, 1)
			go func() { done <- relay.Run(context.Background()) }()

			Eventually(func() int {
				return control.ReadPID(cfg.PIDFile)
			}, 2*time.Second, 10*time.Millisecond).Should(Equal(os.Getpid()))

			Expect(control.RequestStop(cfg.StopFile)).To(Succeed())
			Eventually(done, 2*time.Second).Should(Receive(BeNil()))
		})
	})
})
