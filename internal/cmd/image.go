package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/media"
)

const defaultImageDir = "images"

func newImageCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Generate, vary and edit images",
	}
	cmd.PersistentFlags().StringVarP(&dir, "out", "o", defaultImageDir, "directory for saved images")

	images := func() (*media.Images, error) {
		client, err := a.openAI()
		if err != nil {
			return nil, err
		}
		return media.NewImages(client, a.cfg.Models.Image), nil
	}

	var p media.ImageParams
	gen := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Generate images from a prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			im, err := images()
			if err != nil {
				return err
			}
			p.Prompt = media.BasicPrompt
			if len(args) > 0 {
				p.Prompt = strings.Join(args, " ")
			}
			label(a.out, "Prompt", p.Prompt)
			data, err := im.Generate(cmd.Context(), p)
			if err != nil {
				return err
			}
			return saveImages(cmd.Context(), a, im, data, dir, "generated")
		},
	}
	def := media.NewImageParams("")
	gen.Flags().StringVar(&p.Size, "size", def.Size, "image size")
	gen.Flags().StringVar(&p.Quality, "quality", def.Quality, "standard or hd")
	gen.Flags().StringVar(&p.Style, "style", def.Style, "vivid or natural")
	gen.Flags().IntVarP(&p.N, "count", "n", def.N, "number of images")

	var (
		varSize string
		varN    int
	)
	variation := &cobra.Command{
		Use:   "variation <image.png>",
		Short: "Create variations of an existing PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			im, err := images()
			if err != nil {
				return err
			}
			data, err := im.Variation(cmd.Context(), args[0], varSize, varN)
			if err != nil {
				return err
			}
			return saveImages(cmd.Context(), a, im, data, dir, "variation")
		},
	}
	variation.Flags().StringVar(&varSize, "size", "1024x1024", "256x256, 512x512 or 1024x1024")
	variation.Flags().IntVarP(&varN, "count", "n", 2, "number of variations")

	var (
		mask, prompt, editSize string
	)
	edit := &cobra.Command{
		Use:   "edit <image.png>",
		Short: "Repaint the transparent area of a PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			im, err := images()
			if err != nil {
				return err
			}
			data, err := im.Edit(cmd.Context(), args[0], mask, prompt, editSize)
			if err != nil {
				return err
			}
			return saveImages(cmd.Context(), a, im, data, dir, "edited")
		},
	}
	edit.Flags().StringVar(&mask, "mask", "", "PNG whose transparent pixels mark the area to edit")
	edit.Flags().StringVarP(&prompt, "prompt", "p", "", "description of the full new image")
	edit.Flags().StringVar(&editSize, "size", "1024x1024", "256x256, 512x512 or 1024x1024")
	edit.MarkFlagRequired("prompt")

	demo := &cobra.Command{
		Use:   "demo",
		Short: "Generate the creative, style and size examples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			im, err := images()
			if err != nil {
				return err
			}
			failed := 0
			for i, e := range media.DemoExamples() {
				header(a.out, fmt.Sprintf("Example %d: %s", i+1, e.Filename))
				label(a.out, "Prompt", e.Prompt)
				data, err := im.Generate(cmd.Context(), e.Params)
				if err == nil && len(data) == 0 {
					err = llm.ErrEmptyResponse
				}
				if err != nil {
					if cmd.Context().Err() != nil {
						return err
					}
					warn(a.out, "skipped: %v", err)
					failed++
					continue
				}
				if err := saveImage(cmd.Context(), a, im, data[0], filepath.Join(dir, e.Filename)); err != nil {
					warn(a.out, "skipped: %v", err)
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d examples failed", failed)
			}
			return nil
		},
	}

	cmd.AddCommand(gen, variation, edit, demo)
	return cmd
}

func saveImages(ctx context.Context, a *app, im *media.Images, data []llm.ImageData, dir, prefix string) error {
	if len(data) == 0 {
		return llm.ErrEmptyResponse
	}
	for i, d := range data {
		name := fmt.Sprintf("%s_%d.png", prefix, i+1)
		if err := saveImage(ctx, a, im, d, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

func saveImage(ctx context.Context, a *app, im *media.Images, d llm.ImageData, path string) error {
	if d.RevisedPrompt != "" {
		label(a.out, "Revised prompt", d.RevisedPrompt)
	}
	info, err := im.Save(ctx, d, path)
	if err != nil {
		return err
	}
	success(a.out, "Saved %s (%dx%d %s, %d bytes)", info.Path, info.Width, info.Height, info.ColorModel, info.Bytes)
	return nil
}
