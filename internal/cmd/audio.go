package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/media"
	"github.com/PauloHFS/llm-bootcamp/internal/validator"
)

func newAudioCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audio",
		Short: "Speech to text",
	}

	var (
		opts media.TranscribeOptions
		save string
	)
	transcribe := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Long: fmt.Sprintf(`Transcribe an audio file with Whisper.

Supported formats: %s. Files up to 25MB.
Response formats: text, json, verbose_json, srt and vtt.`, strings.Join(validator.AudioFormats(), ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.openAI()
			if err != nil {
				return err
			}
			resp, err := media.NewTranscriber(client, a.cfg.Models.Transcription).Transcribe(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			header(a.out, "Transcription")
			fmt.Fprintln(a.out, strings.TrimSpace(resp.Text))
			if resp.Language != "" {
				label(a.out, "Language", resp.Language)
			}
			if resp.Duration > 0 {
				label(a.out, "Duration", fmt.Sprintf("%.2fs", resp.Duration))
			}
			for _, s := range resp.Segments {
				colorDim.Fprintf(a.out, "[%6.2f - %6.2f] ", s.Start, s.End)
				fmt.Fprintln(a.out, strings.TrimSpace(s.Text))
			}

			if save != "" {
				if err := media.SaveTranscript(save, resp.Text); err != nil {
					return err
				}
				success(a.out, "Transcript saved to %s", save)
			}
			return nil
		},
	}
	f := transcribe.Flags()
	f.StringVarP(&opts.Language, "language", "l", "", "ISO-639-1 language hint, e.g. en, es, fr, de")
	f.StringVarP(&opts.Prompt, "prompt", "p", "", "context to guide spelling and style")
	f.StringVarP(&opts.Format, "format", "f", llm.TranscriptionText, "response format")
	f.Float64Var(&opts.Temperature, "temperature", 0, "sampling temperature")
	f.StringVar(&save, "save", "", "write the transcript to this file")

	formats := &cobra.Command{
		Use:   "formats",
		Short: "List supported audio formats and language hints",
		Args:  cobra.NoArgs,
		// no API access needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			header(a.out, "Supported audio formats")
			fmt.Fprintln(a.out, strings.Join(validator.AudioFormats(), ", "))
			colorDim.Fprintf(a.out, "maximum file size: %d MB\n", validator.MaxAudioBytes>>20)

			header(a.out, "Language hints")
			codes := make([]string, 0, len(media.ExampleLanguages))
			for c := range media.ExampleLanguages {
				codes = append(codes, c)
			}
			sort.Strings(codes)
			for _, c := range codes {
				fmt.Fprintf(a.out, "  %s  %s\n", c, media.ExampleLanguages[c])
			}
		},
	}

	cmd.AddCommand(transcribe, formats)
	return cmd
}

func newSpeakCmd(a *app) *cobra.Command {
	var opts media.SpeechOptions
	var model string
	cmd := &cobra.Command{
		Use:   "speak",
		Short: "Turn text into speech",
		Long: fmt.Sprintf(`Synthesize speech and save it to the speech directory.

Voices: %s.`, strings.Join(media.Voices, ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.openAI()
			if err != nil {
				return err
			}
			if model == "" {
				model = a.cfg.Models.Speech
			}
			path, err := media.NewSpeaker(client, model, a.cfg.SpeechDir).Synthesize(cmd.Context(), opts)
			if err != nil {
				return err
			}
			success(a.out, "Audio saved to %s", path)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.Text, "text", "t", media.DefaultSpeechText, "text to speak")
	f.StringVarP(&model, "model", "m", "", "speech model (default from config)")
	f.StringVarP(&opts.Instructions, "instructions", "i", "", "tone and delivery instructions")
	f.StringVarP(&opts.Format, "format", "f", "mp3", "mp3, opus, aac, flac, wav or pcm")
	f.StringVar(&opts.Voice, "voice", media.DefaultVoice, "voice")
	f.StringVarP(&opts.Output, "output", "o", "", "output file (default derived from the text)")
	return cmd
}
