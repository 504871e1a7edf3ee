package textures

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	domain "github.com/bryanwahyu/texture-automaton/internal/domain/textures"
)

// ReadMetadata decodes the image header at path. Unreadable or undecodable
// files yield domain.UnknownMetadata so a single bad file never aborts a scan.
func ReadMetadata(path string) domain.Metadata {
	f, err := os.Open(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("metadata: open failed")
		return domain.UnknownMetadata()
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("metadata: decode failed")
		return domain.UnknownMetadata()
	}
	info, err := f.Stat()
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("metadata: stat failed")
		return domain.UnknownMetadata()
	}

	mode, channels := colorMode(cfg.ColorModel)
	if format == "png" && pngColorType(f) == pngGrayAlpha {
		// image/png widens gray+alpha to NRGBA.
		mode, channels = "LA", 2
	}
	return domain.Metadata{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Channels:  channels,
		Mode:      mode,
		Format:    strings.ToUpper(format),
		SizeBytes: info.Size(),
	}
}

// IHDR color type for 8 or 16 bit gray with alpha.
const pngGrayAlpha = 4

// pngColorType reads the IHDR color type byte, or returns -1.
func pngColorType(f *os.File) int {
	// 8 byte signature, chunk length, "IHDR", width, height, bit depth.
	var b [1]byte
	if _, err := f.ReadAt(b[:], 8+4+4+4+4+1); err != nil {
		return -1
	}
	return int(b[0])
}

// colorMode names the decoder's color model using the usual short mode names.
// PNG truecolor without alpha decodes to RGBA/RGBA64; the N-variants carry a
// real alpha channel.
func colorMode(m color.Model) (string, int) {
	if _, ok := m.(color.Palette); ok {
		return "P", 1
	}
	switch m {
	case color.GrayModel:
		return "L", 1
	case color.Gray16Model:
		return "I;16", 1
	case color.AlphaModel, color.Alpha16Model:
		return "A", 1
	case color.RGBAModel, color.RGBA64Model, color.YCbCrModel:
		return "RGB", 3
	case color.NRGBAModel, color.NRGBA64Model, color.NYCbCrAModel:
		return "RGBA", 4
	case color.CMYKModel:
		return "CMYK", 4
	default:
		return "unknown", 0
	}
}
