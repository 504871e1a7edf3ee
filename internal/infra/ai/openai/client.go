package openai

import (
    "context"
    "encoding/base64"
    "errors"
    "fmt"
    "net/http"
    "strings"

    "github.com/sashabaranov/go-openai"

    "github.com/bryanwahyu/texture-automaton/internal/domain/ai"
    "github.com/bryanwahyu/texture-automaton/internal/infra/ai/prompt"
)

const (
    maxTokens         = 1024
    defaultModel      = "gpt-4o-mini"
    defaultImageModel = openai.CreateImageModelDallE3
)

// dall-e-3 only renders these three sizes.
var imageSizes = []ai.Ratio{
    {Name: openai.CreateImageSize1024x1024, Value: 1},
    {Name: openai.CreateImageSize1792x1024, Value: 1792.0 / 1024.0},
    {Name: openai.CreateImageSize1024x1792, Value: 1024.0 / 1792.0},
}

// Client implements ai.Provider on the OpenAI chat and image endpoints.
type Client struct {
    *openai.Client
    Model      string
    ImageModel string
}

var _ ai.Provider = (*Client)(nil)

// NewClient builds a client; an empty baseURL keeps the public endpoint.
func NewClient(apiKey, baseURL, model, imageModel string) *Client {
    cfg := openai.DefaultConfig(apiKey)
    if baseURL != "" {
        cfg.BaseURL = baseURL
    }
    return &Client{Client: openai.NewClientWithConfig(cfg), Model: model, ImageModel: imageModel}
}

func (c *Client) Describe(ctx context.Context, in ai.DescribeRequest) (ai.Description, error) {
    mimeType, data, err := prompt.ReadImage(in.Path)
    if err != nil {
        return ai.Description{}, err
    }
    model := c.Model
    if model == "" {
        model = defaultModel
    }
    dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
    req := openai.ChatCompletionRequest{
        Model: model,
        ResponseFormat: &openai.ChatCompletionResponseFormat{
            Type: openai.ChatCompletionResponseFormatTypeJSONObject,
        },
        Messages: []openai.ChatCompletionMessage{
            {
                Role: openai.ChatMessageRoleUser,
                MultiContent: []openai.ChatMessagePart{
                    {Type: openai.ChatMessagePartTypeText, Text: prompt.GetDescribePrompt(in.Texture)},
                    {Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
                        URL:    dataURL,
                        Detail: openai.ImageURLDetailAuto,
                    }},
                },
            },
        },
    }
    // Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens and reject a custom temperature
    if isReasoningModel(model) {
        req.MaxCompletionTokens = maxTokens
    } else {
        req.MaxTokens = maxTokens
        req.Temperature = in.Temperature
    }

    resp, err := c.CreateChatCompletion(ctx, req)
    if err != nil {
        return ai.Description{}, fmt.Errorf("failed to create chat completion: %w", mapError(err))
    }
    if len(resp.Choices) == 0 {
        return ai.Description{}, ai.ErrEmptyResponse
    }
    return prompt.ParseDescription(resp.Choices[0].Message.Content)
}

func (c *Client) Generate(ctx context.Context, in ai.GenerateRequest) ([]byte, error) {
    if err := in.Validate(); err != nil {
        return nil, err
    }
    model := c.ImageModel
    if model == "" {
        model = defaultImageModel
    }

    text := prompt.GetGeneratePrompt(in.Prompt, in.Texture)
    if !in.Texture && in.NegativePrompt != "" {
        text += " Avoid: " + in.NegativePrompt + "."
    }
    want := float64(in.Width) / float64(in.Height)
    if r, ok := ai.ParseRatio(in.AspectRatio); ok {
        want = r
    }
    quality := openai.CreateImageQualityStandard
    if in.ImageSize == "2K" || (in.ImageSize == "" && max(in.Width, in.Height) > 1024) {
        quality = openai.CreateImageQualityHD
    }

    resp, err := c.CreateImage(ctx, openai.ImageRequest{
        Prompt:         text,
        Model:          model,
        N:              1,
        Size:           ai.NearestRatio(want, imageSizes).Name,
        Quality:        quality,
        ResponseFormat: openai.CreateImageResponseFormatB64JSON,
    })
    if err != nil {
        return nil, fmt.Errorf("failed to create image: %w", mapError(err))
    }
    for _, d := range resp.Data {
        if d.B64JSON == "" {
            continue
        }
        img, err := base64.StdEncoding.DecodeString(d.B64JSON)
        if err != nil {
            return nil, fmt.Errorf("failed to decode image: %w", err)
        }
        if len(img) > 0 {
            return img, nil
        }
    }
    return nil, ai.ErrNoImage
}

func isReasoningModel(model string) bool {
    return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5")
}

// mapError tags rate-limit responses with ai.ErrQuotaExceeded.
func mapError(err error) error {
    var apiErr *openai.APIError
    if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
        return fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
    }
    var reqErr *openai.RequestError
    if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
        return fmt.Errorf("%w: %v", ai.ErrQuotaExceeded, err)
    }
    return err
}
