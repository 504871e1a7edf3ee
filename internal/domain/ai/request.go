package ai

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DescribeRequest asks the provider to describe the image stored at Path.
type DescribeRequest struct {
	Path        string
	Texture     bool
	Temperature float32
}

// GenerateRequest asks the provider for new image bytes.
//
// Width and Height are the target pixel size; adapters translate them into
// their own aspect-ratio and size vocabulary unless AspectRatio or ImageSize
// override it. In texture mode the prompt asks for a seamless, tileable
// surface and NegativePrompt is ignored.
type GenerateRequest struct {
	Prompt         string
	Width          int
	Height         int
	AspectRatio    string
	ImageSize      string
	GuidanceScale  *float64
	NegativePrompt string
	Texture        bool
}

// Validate reports whether the request can be sent at all.
func (r GenerateRequest) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, r.Width, r.Height)
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("ai: prompt is required")
	}
	return nil
}

// Ratio is one named aspect ratio a provider supports.
type Ratio struct {
	Name  string
	Value float64
}

// ClosestRatio returns the supported ratio nearest to width/height. Ties go to
// the earlier entry in options.
func ClosestRatio(width, height int, options []Ratio) Ratio {
	if len(options) == 0 {
		return Ratio{}
	}
	return NearestRatio(float64(width)/float64(height), options)
}

// NearestRatio returns the option whose value is closest to want.
func NearestRatio(want float64, options []Ratio) Ratio {
	if len(options) == 0 {
		return Ratio{}
	}
	best := options[0]
	for _, opt := range options[1:] {
		if math.Abs(opt.Value-want) < math.Abs(best.Value-want) {
			best = opt
		}
	}
	return best
}

// ParseRatio reads a "w:h" aspect ratio such as "16:9".
func ParseRatio(s string) (float64, bool) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, false
	}
	wf, err := strconv.ParseFloat(w, 64)
	if err != nil || wf <= 0 {
		return 0, false
	}
	hf, err := strconv.ParseFloat(h, 64)
	if err != nil || hf <= 0 {
		return 0, false
	}
	return wf / hf, true
}
