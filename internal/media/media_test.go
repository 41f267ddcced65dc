package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeImages struct {
	data      []llm.ImageData
	generated llm.ImageRequest
	variation llm.ImageVariationRequest
	edit      llm.ImageEditRequest
	hadMask   bool
}

func (f *fakeImages) GenerateImage(_ context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	f.generated = req
	return &llm.ImageResponse{Data: f.data}, nil
}

func (f *fakeImages) CreateImageVariation(_ context.Context, req llm.ImageVariationRequest) (*llm.ImageResponse, error) {
	f.variation = req
	return &llm.ImageResponse{Data: f.data}, nil
}

func (f *fakeImages) EditImage(_ context.Context, req llm.ImageEditRequest) (*llm.ImageResponse, error) {
	f.edit = req
	f.hadMask = req.Mask != nil
	return &llm.ImageResponse{Data: f.data}, nil
}

func TestGenerateAndSave(t *testing.T) {
	img := pngBytes(t, 4, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	}))
	defer srv.Close()

	fake := &fakeImages{data: []llm.ImageData{{URL: srv.URL + "/dragon.png", RevisedPrompt: "a dragon"}}}
	im := NewImages(fake, "dall-e-3")

	data, err := im.Generate(context.Background(), NewImageParams(BasicPrompt))
	require.NoError(t, err)
	assert.Equal(t, "1024x1024", fake.generated.Size)
	assert.Equal(t, "standard", fake.generated.Quality)
	assert.Equal(t, "vivid", fake.generated.Style)
	assert.Equal(t, 1, fake.generated.N)

	path := filepath.Join(t.TempDir(), "out", "dragon.png")
	info, err := im.Save(context.Background(), data[0], path)
	require.NoError(t, err)
	assert.Equal(t, 4, info.Width)
	assert.Equal(t, 3, info.Height)
	assert.Equal(t, "NRGBA", info.ColorModel)
	assert.Equal(t, int64(len(img)), info.Bytes)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, img, onDisk)
}

func TestSaveBase64(t *testing.T) {
	img := pngBytes(t, 2, 2)
	im := NewImages(&fakeImages{}, "dall-e-3")

	info, err := im.Save(context.Background(), llm.ImageData{B64JSON: base64.StdEncoding.EncodeToString(img)}, filepath.Join(t.TempDir(), "a.png"))
	require.NoError(t, err)
	assert.Equal(t, 2, info.Width)

	_, err = im.Save(context.Background(), llm.ImageData{B64JSON: base64.StdEncoding.EncodeToString([]byte("not an image"))}, filepath.Join(t.TempDir(), "b.png"))
	assert.ErrorContains(t, err, "not an image")

	_, err = im.Save(context.Background(), llm.ImageData{}, "c.png")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestGenerateRejectsInvalidParams(t *testing.T) {
	fake := &fakeImages{}
	im := NewImages(fake, "dall-e-3")

	tests := map[string]func(p *ImageParams){
		"size":    func(p *ImageParams) { p.Size = "800x600" },
		"quality": func(p *ImageParams) { p.Quality = "ultra" },
		"style":   func(p *ImageParams) { p.Style = "noir" },
		"prompt":  func(p *ImageParams) { p.Prompt = "" },
		"n":       func(p *ImageParams) { p.N = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := NewImageParams("a cat")
			mutate(&p)
			_, err := im.Generate(context.Background(), p)
			assert.ErrorContains(t, err, "invalid image request")
		})
	}
	assert.Empty(t, fake.generated.Prompt)
}

func TestVariationAndEdit(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "cat.png")
	mask := filepath.Join(dir, "mask.png")
	require.NoError(t, os.WriteFile(src, pngBytes(t, 8, 8), 0o644))
	require.NoError(t, os.WriteFile(mask, pngBytes(t, 8, 8), 0o644))

	fake := &fakeImages{data: []llm.ImageData{{URL: "http://example/1.png"}}}
	im := NewImages(fake, "dall-e-3")

	data, err := im.Variation(context.Background(), src, "512x512", 2)
	require.NoError(t, err)
	assert.Len(t, data, 1)
	assert.Equal(t, EditModel, fake.variation.Model)
	assert.Equal(t, "cat.png", fake.variation.ImageName)
	assert.Equal(t, 2, fake.variation.N)

	_, err = im.Variation(context.Background(), src, "1792x1024", 1)
	assert.ErrorContains(t, err, "invalid variation request")

	_, err = im.Edit(context.Background(), src, mask, "add a hat", "256x256")
	require.NoError(t, err)
	assert.True(t, fake.hadMask)
	assert.Equal(t, "mask.png", fake.edit.MaskName)

	_, err = im.Edit(context.Background(), src, "", "", "256x256")
	assert.Error(t, err)

	jpg := filepath.Join(dir, "cat.jpg")
	require.NoError(t, os.WriteFile(jpg, []byte("x"), 0o644))
	_, err = im.Variation(context.Background(), jpg, "256x256", 1)
	assert.ErrorContains(t, err, "unsupported image format")
}

func TestDemoExamples(t *testing.T) {
	examples := DemoExamples()
	require.Len(t, examples, 9)

	names := map[string]bool{}
	for _, e := range examples {
		names[e.Filename] = true
		assert.Equal(t, e.Prompt, e.Params.Prompt)
	}
	for _, want := range []string{"futuristic_city.png", "garden_natural.png", "coffee_cup_1792_1024.png", "coffee_cup_1024_1792.png"} {
		assert.True(t, names[want], want)
	}
}

type fakeSpeech struct {
	got llm.SpeechRequest
	err error
}

func (f *fakeSpeech) Speech(_ context.Context, req llm.SpeechRequest, w io.Writer) (int64, error) {
	f.got = req
	if f.err != nil {
		return 0, f.err
	}
	n, err := w.Write([]byte("ID3audio"))
	return int64(n), err
}

func TestSynthesize(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeSpeech{}
	s := NewSpeaker(fake, "gpt-4o-mini-tts", dir)

	path, err := s.Synthesize(context.Background(), SpeechOptions{Text: DefaultSpeechText, Instructions: "Speak cheerfully."})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Today_is_a_wonderful_day_to_bu.mp3"), path)
	assert.Equal(t, DefaultVoice, fake.got.Voice)
	assert.Equal(t, "mp3", fake.got.ResponseFormat)
	assert.Equal(t, "Speak cheerfully.", fake.got.Instructions)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID3audio", string(body))

	_, err = s.Synthesize(context.Background(), SpeechOptions{Text: "hi", Voice: "robot"})
	assert.ErrorContains(t, err, "unsupported voice")

	_, err = s.Synthesize(context.Background(), SpeechOptions{Text: " "})
	assert.Error(t, err)
}

func TestSynthesizeRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	s := NewSpeaker(&fakeSpeech{err: errors.New("quota")}, "m", dir)

	_, err := s.Synthesize(context.Background(), SpeechOptions{Text: "hello there", Voice: "onyx"})
	assert.ErrorContains(t, err, "speech synthesis failed: quota")

	_, statErr := os.Stat(filepath.Join(dir, "hello_there.mp3"))
	assert.True(t, os.IsNotExist(statErr))
}

type fakeTranscriber struct {
	got  llm.TranscriptionRequest
	body []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, req llm.TranscriptionRequest) (*llm.TranscriptionResponse, error) {
	f.got = req
	f.body, _ = io.ReadAll(req.File)
	return &llm.TranscriptionResponse{Text: "hello world", Language: "english"}, nil
}

func TestTranscribe(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "talk.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("fake mp3"), 0o644))

	fake := &fakeTranscriber{}
	tr := NewTranscriber(fake, "whisper-1")

	resp, err := tr.Transcribe(context.Background(), audio, TranscribeOptions{Language: "en", Format: llm.TranscriptionText})
	require.NoError(t, err)
	assert.Equal(t, "hello world", resp.Text)
	assert.Equal(t, "talk.mp3", fake.got.FileName)
	assert.Equal(t, "en", fake.got.Language)
	assert.Equal(t, "fake mp3", string(fake.body))

	out := filepath.Join(dir, "talk.txt")
	require.NoError(t, SaveTranscript(out, resp.Text))
	saved, _ := os.ReadFile(out)
	assert.Equal(t, "hello world", string(saved))

	placeholder := filepath.Join(dir, "sample_audio_placeholder.txt")
	require.NoError(t, os.WriteFile(placeholder, []byte("x"), 0o644))
	_, err = tr.Transcribe(context.Background(), placeholder, TranscribeOptions{})
	assert.ErrorContains(t, err, "unsupported audio format")

	_, err = tr.Transcribe(context.Background(), filepath.Join(dir, "missing.mp3"), TranscribeOptions{})
	assert.ErrorContains(t, err, "not found")
}
