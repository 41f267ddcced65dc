// Package media covers image generation, speech synthesis and transcription,
// including the local files each produces.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/PauloHFS/llm-bootcamp/internal/httpclient"
	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/validator"
)

// ImageAPI is the images surface of llm.Client.
type ImageAPI interface {
	GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error)
	CreateImageVariation(ctx context.Context, req llm.ImageVariationRequest) (*llm.ImageResponse, error)
	EditImage(ctx context.Context, req llm.ImageEditRequest) (*llm.ImageResponse, error)
}

const (
	DefaultSize    = "1024x1024"
	DefaultQuality = "standard"
	DefaultStyle   = "vivid"

	// Variations and edits are only served by dall-e-2.
	EditModel = "dall-e-2"
)

var Sizes = []string{"256x256", "512x512", "1024x1024", "1792x1024", "1024x1792"}

type ImageParams struct {
	Prompt  string `validate:"required"`
	Size    string `validate:"oneof=256x256 512x512 1024x1024 1792x1024 1024x1792"`
	Quality string `validate:"omitempty,oneof=standard hd"`
	Style   string `validate:"omitempty,oneof=vivid natural"`
	N       int    `validate:"min=1,max=10"`
}

// NewImageParams fills the dall-e-3 defaults.
func NewImageParams(prompt string) ImageParams {
	return ImageParams{Prompt: prompt, Size: DefaultSize, Quality: DefaultQuality, Style: DefaultStyle, N: 1}
}

type sourceParams struct {
	Size string `validate:"oneof=256x256 512x512 1024x1024"`
	N    int    `validate:"min=1,max=10"`
}

type Images struct {
	Client ImageAPI
	Model  string
	HTTP   *httpclient.Client
}

func NewImages(client ImageAPI, model string) *Images {
	return &Images{
		Client: client,
		Model:  model,
		HTTP:   httpclient.New(httpclient.Config{Name: "image-download"}),
	}
}

func (im *Images) Generate(ctx context.Context, p ImageParams) ([]llm.ImageData, error) {
	if res := validator.Check(p); !res.Valid {
		return nil, fmt.Errorf("invalid image request: %s", res.Error())
	}
	resp, err := im.Client.GenerateImage(ctx, llm.ImageRequest{
		Model:   im.Model,
		Prompt:  p.Prompt,
		N:       p.N,
		Size:    p.Size,
		Quality: p.Quality,
		Style:   p.Style,
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	return resp.Data, nil
}

func openSource(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateImageUpload(path, info.Size()); err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Variation creates n variations of the PNG at path.
func (im *Images) Variation(ctx context.Context, path, size string, n int) ([]llm.ImageData, error) {
	if res := validator.Check(sourceParams{Size: size, N: n}); !res.Valid {
		return nil, fmt.Errorf("invalid variation request: %s", res.Error())
	}
	f, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	resp, err := im.Client.CreateImageVariation(ctx, llm.ImageVariationRequest{
		Model:     EditModel,
		Image:     f,
		ImageName: filepath.Base(path),
		N:         n,
		Size:      size,
	})
	if err != nil {
		return nil, fmt.Errorf("image variation failed: %w", err)
	}
	return resp.Data, nil
}

// Edit repaints the transparent area of mask (or of the image itself when
// maskPath is empty) according to prompt.
func (im *Images) Edit(ctx context.Context, path, maskPath, prompt, size string) ([]llm.ImageData, error) {
	if prompt == "" {
		return nil, fmt.Errorf("invalid edit request: Prompt is required")
	}
	if res := validator.Check(sourceParams{Size: size, N: 1}); !res.Valid {
		return nil, fmt.Errorf("invalid edit request: %s", res.Error())
	}
	f, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	req := llm.ImageEditRequest{
		Model:     EditModel,
		Image:     f,
		ImageName: filepath.Base(path),
		Prompt:    prompt,
		N:         1,
		Size:      size,
	}
	if maskPath != "" {
		m, err := openSource(maskPath)
		if err != nil {
			return nil, err
		}
		defer m.Close()
		req.Mask = m
		req.MaskName = filepath.Base(maskPath)
	}

	resp, err := im.Client.EditImage(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("image edit failed: %w", err)
	}
	return resp.Data, nil
}

type ImageInfo struct {
	Path       string
	Bytes      int64
	Width      int
	Height     int
	ColorModel string
}

// Save writes one generated image to path, fetching it when the API returned
// a URL, and reports its decoded dimensions.
func (im *Images) Save(ctx context.Context, data llm.ImageData, path string) (ImageInfo, error) {
	var buf bytes.Buffer
	switch {
	case data.B64JSON != "":
		raw, err := base64.StdEncoding.DecodeString(data.B64JSON)
		if err != nil {
			return ImageInfo{}, fmt.Errorf("failed to decode image: %w", err)
		}
		buf.Write(raw)
	case data.URL != "":
		if _, err := im.HTTP.Download(ctx, data.URL, &buf); err != nil {
			return ImageInfo{}, err
		}
	default:
		return ImageInfo{}, llm.ErrEmptyResponse
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("downloaded file is not an image: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ImageInfo{}, err
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return ImageInfo{}, fmt.Errorf("failed to save image: %w", err)
	}

	return ImageInfo{
		Path:       path,
		Bytes:      int64(buf.Len()),
		Width:      cfg.Width,
		Height:     cfg.Height,
		ColorModel: colorModelName(cfg.ColorModel),
	}, nil
}

func colorModelName(m color.Model) string {
	switch m {
	case color.RGBAModel:
		return "RGBA"
	case color.RGBA64Model:
		return "RGBA64"
	case color.NRGBAModel:
		return "NRGBA"
	case color.NRGBA64Model:
		return "NRGBA64"
	case color.GrayModel:
		return "Gray"
	case color.Gray16Model:
		return "Gray16"
	case color.YCbCrModel:
		return "YCbCr"
	case color.CMYKModel:
		return "CMYK"
	}
	if _, ok := m.(color.Palette); ok {
		return "Paletted"
	}
	return "unknown"
}

type Example struct {
	Prompt   string
	Filename string
	Params   ImageParams
}

const BasicPrompt = "A majestic dragon flying over a medieval castle at sunset"

var CreativeExamples = []Example{
	{Prompt: "A futuristic cityscape with flying cars and neon lights, digital art style", Filename: "futuristic_city.png"},
	{Prompt: "A serene mountain landscape at sunset with a crystal clear lake reflecting the sky", Filename: "mountain_sunset.png"},
	{Prompt: "A cute robot playing with a cat in a cozy living room, warm lighting", Filename: "robot_cat.png"},
	{Prompt: "An underwater scene with colorful coral reefs and tropical fish", Filename: "underwater_scene.png"},
}

// DemoExamples expands the creative set with the style and size comparisons.
func DemoExamples() []Example {
	var out []Example
	for _, e := range CreativeExamples {
		e.Params = NewImageParams(e.Prompt)
		out = append(out, e)
	}

	const garden = "A beautiful garden with flowers and butterflies"
	for _, style := range []string{"vivid", "natural"} {
		p := NewImageParams(garden)
		p.Style = style
		out = append(out, Example{Prompt: garden, Filename: "garden_" + style + ".png", Params: p})
	}

	const cup = "A minimalist coffee cup on a wooden table"
	for _, size := range []string{"1024x1024", "1792x1024", "1024x1792"} {
		p := NewImageParams(cup)
		p.Size = size
		name := "coffee_cup_" + strings.ReplaceAll(size, "x", "_") + ".png"
		out = append(out, Example{Prompt: cup, Filename: name, Params: p})
	}
	return out
}
