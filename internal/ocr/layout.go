package ocr

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"
)

// DumpLayout writes a per-word position/confidence table for the image to a
// timestamped TSV file under dir. A debug side channel for crop tuning; it
// never sits on the dispatch path, and failures are reported to the caller
// to swallow.
func (e *Engine) DumpLayout(img image.Image, dir string) (string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	if err := e.client.SetImageFromBytes(data); err != nil {
		return "", err
	}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("left\ttop\tright\tbottom\tconfidence\tword\n")
	for _, b := range boxes {
		fmt.Fprintf(&sb, "%d\t%d\t%d\t%d\t%.2f\t%s\n",
			b.Box.Min.X, b.Box.Min.Y, b.Box.Max.X, b.Box.Max.Y,
			b.Confidence, strings.TrimSpace(b.Word))
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "layout_"+time.Now().Format("20060102_150405")+".tsv")
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return "", err
	}
	return path, nil
}
