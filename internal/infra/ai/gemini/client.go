// Package gemini describes images with a Gemini model and renders new ones
// with Imagen, both through the google.golang.org/genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/bryanwahyu/texture-automaton/internal/domain/ai"
	"github.com/bryanwahyu/texture-automaton/internal/infra/ai/prompt"
)

const (
	DefaultModel      = "gemini-2.0-flash-lite"
	DefaultImageModel = "imagen-4.0-generate-001"
	apiVersion        = "v1beta"
)

// Imagen aspect ratios.
var aspectRatios = []ai.Ratio{
	{Name: "1:1", Value: 1},
	{Name: "3:4", Value: 0.75},
	{Name: "4:3", Value: 4.0 / 3.0},
	{Name: "9:16", Value: 9.0 / 16.0},
	{Name: "16:9", Value: 16.0 / 9.0},
}

// Client implements ai.Provider on the Gemini API backend.
type Client struct {
	genai      *genai.Client
	Model      string
	ImageModel string
}

var _ ai.Provider = (*Client)(nil)

// NewClient builds an SDK client. An empty baseURL uses the public endpoint;
// empty models fall back to the defaults.
func NewClient(ctx context.Context, apiKey, baseURL, model, imageModel string, timeout time.Duration) (*Client, error) {
	if model == "" {
		model = DefaultModel
	}
	if imageModel == "" {
		imageModel = DefaultImageModel
	}
	cfg := &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  &http.Client{Timeout: timeout},
		HTTPOptions: genai.HTTPOptions{APIVersion: apiVersion},
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = strings.TrimRight(baseURL, "/") + "/"
	}
	gc, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	return &Client{genai: gc, Model: model, ImageModel: imageModel}, nil
}

func (c *Client) Describe(ctx context.Context, in ai.DescribeRequest) (ai.Description, error) {
	mimeType, data, err := prompt.ReadImage(in.Path)
	if err != nil {
		return ai.Description{}, err
	}
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(prompt.GetDescribePrompt(in.Texture)),
		genai.NewPartFromBytes(data, mimeType),
	}, genai.RoleUser)}

	resp, err := c.genai.Models.GenerateContent(ctx, c.Model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(in.Temperature),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return ai.Description{}, mapError(err)
	}

	var texts []string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p == nil {
				continue
			}
			if t := strings.TrimSpace(p.Text); t != "" {
				texts = append(texts, t)
			}
		}
	}
	if len(texts) == 0 {
		return ai.Description{}, ai.ErrEmptyResponse
	}
	return prompt.ParseDescription(strings.Join(texts, "\n"))
}

func (c *Client) Generate(ctx context.Context, in ai.GenerateRequest) ([]byte, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    in.AspectRatio,
		ImageSize:      in.ImageSize,
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = ai.ClosestRatio(in.Width, in.Height, aspectRatios).Name
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = sizeBucket(in.Width, in.Height)
	}
	if in.GuidanceScale != nil {
		cfg.GuidanceScale = genai.Ptr(float32(*in.GuidanceScale))
	}

	text := prompt.GetGeneratePrompt(in.Prompt, in.Texture)
	// Texture renders never carry a negative prompt. The Gemini API rejects
	// the negativePrompt parameter, so scenes get it as prompt text.
	if !in.Texture && strings.TrimSpace(in.NegativePrompt) != "" {
		text += " Avoid: " + strings.TrimSpace(in.NegativePrompt) + "."
	}

	resp, err := c.genai.Models.GenerateImages(ctx, c.ImageModel, text, cfg)
	if err != nil {
		return nil, mapError(err)
	}
	for _, img := range resp.GeneratedImages {
		if img != nil && img.Image != nil && len(img.Image.ImageBytes) > 0 {
			return img.Image.ImageBytes, nil
		}
	}
	return nil, ai.ErrNoImage
}

func sizeBucket(w, h int) string {
	if max(w, h) <= 1024 {
		return "1K"
	}
	return "2K"
}

func mapError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var ptr *genai.APIError
		if !errors.As(err, &ptr) || ptr == nil {
			return fmt.Errorf("gemini: request failed: %w", err)
		}
		apiErr = *ptr
	}
	msg := fmt.Sprintf("%s: %s", apiErr.Status, apiErr.Message)
	if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
		return fmt.Errorf("%w: %s", ai.ErrQuotaExceeded, msg)
	}
	return fmt.Errorf("gemini: API error %d: %s", apiErr.Code, msg)
}
