// Package imaging processes uploaded issue images: content sniffing,
// dimension bounding, and JPEG normalization.
package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	// Register the WebP decoder; JPEG, PNG and GIF come with image.Decode.
	_ "golang.org/x/image/webp"

	"github.com/prn-tf/beacon-tracker/internal/config"
	"github.com/prn-tf/beacon-tracker/internal/domain"
)

// allowedMimeTypes are the input formats accepted for upload. The
// decision is made on sniffed content, never on the client-supplied
// Content-Type or filename.
var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Result holds a processed image ready for storage.
type Result struct {
	// Data is the normalized JPEG bytes.
	Data []byte

	// MimeType is the stored MIME type, always "image/jpeg".
	MimeType string

	// Size is len(Data).
	Size int64

	// Width and Height are the stored dimensions in pixels.
	Width  int
	Height int
}

// Processor validates and normalizes uploaded images.
type Processor struct {
	maxFileSize  int64
	maxDimension int
	quality      int
	logger       zerolog.Logger
}

// NewProcessor creates a processor from upload configuration.
func NewProcessor(cfg config.UploadsConfig, logger zerolog.Logger) *Processor {
	return &Processor{
		maxFileSize:  cfg.MaxFileSize,
		maxDimension: cfg.MaxDimension,
		quality:      cfg.JPEGQuality,
		logger:       logger.With().Str("component", "imaging").Logger(),
	}
}

// Validate checks size and sniffed content type without decoding.
// Returns the detected MIME type.
func (p *Processor) Validate(data []byte) (string, error) {
	if int64(len(data)) > p.maxFileSize {
		return "", domain.NewDomainError(domain.ErrPayloadTooLarge,
			fmt.Sprintf("file exceeds %d bytes", p.maxFileSize), "")
	}

	mtype := mimetype.Detect(data)
	if !allowedMimeTypes[mtype.String()] {
		return "", domain.NewDomainError(domain.ErrUnsupportedMediaType,
			fmt.Sprintf("unsupported content type %s", mtype.String()), "")
	}

	return mtype.String(), nil
}

// Process validates, decodes, bounds and re-encodes an uploaded image.
// Output is always JPEG; images already within the dimension bound are
// re-encoded but never upscaled.
func (p *Processor) Process(data []byte) (*Result, error) {
	if _, err := p.Validate(data); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrProcessingFailed, "failed to decode image", "")
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	// Fit scales down to the bounding box and never upscales.
	if origW > p.maxDimension || origH > p.maxDimension {
		img = imaging.Fit(img, p.maxDimension, p.maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, domain.NewDomainError(domain.ErrProcessingFailed, "failed to encode image", "")
	}

	outBounds := img.Bounds()
	result := &Result{
		Data:     buf.Bytes(),
		MimeType: "image/jpeg",
		Size:     int64(buf.Len()),
		Width:    outBounds.Dx(),
		Height:   outBounds.Dy(),
	}

	p.logger.Debug().
		Str("input_format", format).
		Int("input_width", origW).
		Int("input_height", origH).
		Int("output_width", result.Width).
		Int("output_height", result.Height).
		Int64("output_size", result.Size).
		Msg("image processed")

	return result, nil
}
