package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/validator"
)

type SpeechAPI interface {
	Speech(ctx context.Context, req llm.SpeechRequest, w io.Writer) (int64, error)
}

type TranscriptionAPI interface {
	Transcribe(ctx context.Context, req llm.TranscriptionRequest) (*llm.TranscriptionResponse, error)
}

const (
	DefaultSpeechText = "Today is a wonderful day to build something people love!"
	DefaultVoice      = "coral"
)

var Voices = []string{"alloy", "ash", "ballad", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer", "verse"}

var speechFormats = []string{"mp3", "opus", "aac", "flac", "wav", "pcm"}

type SpeechOptions struct {
	Text         string
	Voice        string
	Instructions string
	Format       string
	// Output overrides the derived <dir>/<name>.<format> path.
	Output string
}

type Speaker struct {
	Client SpeechAPI
	Model  string
	Dir    string
}

func NewSpeaker(client SpeechAPI, model, dir string) *Speaker {
	return &Speaker{Client: client, Model: model, Dir: dir}
}

// SpeechPath derives the output file from the first characters of text.
func SpeechPath(dir, text, format string) string {
	name := validator.SafeName(text)
	if name == "" {
		name = "speech"
	}
	return filepath.Join(dir, name+"."+format)
}

// Synthesize writes the spoken text to disk and returns the file path. A
// failed request leaves no partial file behind.
func (s *Speaker) Synthesize(ctx context.Context, opts SpeechOptions) (string, error) {
	if strings.TrimSpace(opts.Text) == "" {
		return "", fmt.Errorf("text is required")
	}
	if opts.Voice == "" {
		opts.Voice = DefaultVoice
	}
	if !slices.Contains(Voices, opts.Voice) {
		return "", fmt.Errorf("unsupported voice %q (available: %s)", opts.Voice, strings.Join(Voices, ", "))
	}
	if opts.Format == "" {
		opts.Format = "mp3"
	}
	if !slices.Contains(speechFormats, opts.Format) {
		return "", fmt.Errorf("unsupported audio format %q", opts.Format)
	}

	path := opts.Output
	if path == "" {
		path = SpeechPath(s.Dir, opts.Text, opts.Format)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	_, err = s.Client.Speech(ctx, llm.SpeechRequest{
		Model:          s.Model,
		Input:          opts.Text,
		Voice:          opts.Voice,
		Instructions:   opts.Instructions,
		ResponseFormat: opts.Format,
	}, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("speech synthesis failed: %w", err)
	}
	return path, nil
}

type TranscribeOptions struct {
	Language    string
	Prompt      string
	Format      string
	Temperature float64
}

// ExampleLanguages are the ISO-639-1 hints shown by the transcription help.
var ExampleLanguages = map[string]string{"en": "English", "es": "Spanish", "fr": "French", "de": "German"}

type Transcriber struct {
	Client TranscriptionAPI
	Model  string
}

func NewTranscriber(client TranscriptionAPI, model string) *Transcriber {
	return &Transcriber{Client: client, Model: model}
}

func (t *Transcriber) Transcribe(ctx context.Context, path string, opts TranscribeOptions) (*llm.TranscriptionResponse, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}
	if err := validator.ValidateAudioFile(path, info.Size()); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	resp, err := t.Client.Transcribe(ctx, llm.TranscriptionRequest{
		Model:          t.Model,
		File:           f,
		FileName:       filepath.Base(path),
		Prompt:         opts.Prompt,
		Language:       opts.Language,
		ResponseFormat: opts.Format,
		Temperature:    opts.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}
	return resp, nil
}

func SaveTranscript(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}
