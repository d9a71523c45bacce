package ai

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

const (
	MimePDF  = "application/pdf"
	MimeJPEG = "image/jpeg"

	// MaxImageSide is the longest edge sent to the model. Larger photos are
	// downscaled before upload.
	MaxImageSide = 1600

	// maxDocumentChars bounds the PDF text included in a prompt.
	maxDocumentChars = 8000
)

// DetectMIME sniffs the content type of an uploaded receipt.
func DetectMIME(b []byte) string {
	return mimetype.Detect(b).String()
}

func IsPDF(b []byte) bool {
	return mimetype.Detect(b).Is(MimePDF)
}

// IsImage reports whether b sniffs as any image type.
func IsImage(b []byte) bool {
	for m := mimetype.Detect(b); m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

// ExtractPDFText returns the plain text of every non-empty page.
func ExtractPDFText(b []byte) (text string, err error) {
	// The PDF parser panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrInvalidDocument, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		page, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", i, err)
		}
		sb.WriteString(page)
		sb.WriteString("\n")
	}

	text = strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("%w: no text layer", ErrInvalidDocument)
	}
	if runes := []rune(text); len(runes) > maxDocumentChars {
		text = string(runes[:maxDocumentChars])
	}
	return text, nil
}

// PrepareImage downscales photos whose longest side exceeds MaxImageSide and
// re-encodes them as JPEG. Images that are already small, or that cannot be
// decoded locally, are returned unchanged with their detected MIME type.
func PrepareImage(b []byte) ([]byte, string) {
	mime := DetectMIME(b)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil || (cfg.Width <= MaxImageSide && cfg.Height <= MaxImageSide) {
		return b, mime
	}

	img, err := imaging.Decode(bytes.NewReader(b), imaging.AutoOrientation(true))
	if err != nil {
		return b, mime
	}
	img = imaging.Fit(img, MaxImageSide, MaxImageSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return b, mime
	}
	return buf.Bytes(), MimeJPEG
}
