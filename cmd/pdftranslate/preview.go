package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"pdf-layout-translator/internal/fonts"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/pdf"
	"pdf-layout-translator/internal/pipeline"
)

func previewCmd(g *globalOptions) *cobra.Command {
	var outDir, fontName string
	var padded bool
	cmd := &cobra.Command{
		Use:   "preview <input.pdf>",
		Short: "Render detected layout boxes over each page as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(g)
			if err != nil {
				return err
			}
			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}

			det, err := pipeline.NewDetector(cfg, pdf.NewPdfcpuInspector(), log)
			if err != nil {
				return err
			}
			doc, err := det.Detect(cmd.Context(), src)
			if err != nil {
				return err
			}
			if padded {
				doc = layout.Pad(doc, layout.Padding{Small: cfg.Layout.SmallPadding, Large: cfg.Layout.LargePadding})
			}

			preset, err := fonts.Lookup(fontName)
			if err != nil {
				return err
			}
			set, err := fonts.NewRegistry(cfg.FontsDir).Load(preset)
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + "_layout"
			}
			if err := os.MkdirAll(outDir, 0755); err != nil {
				return err
			}
			r := pdf.NewPopplerRasterizer(cfg.Rasterizer.PdftoppmPath)
			err = pdf.PreviewLayout(cmd.Context(), r, src, doc, cfg.Rasterizer.Zoom, set.Regular.Face(14),
				func(index int, img image.Image) error {
					path := filepath.Join(outDir, fmt.Sprintf("page_%03d.png", index+1))
					if err := writePNG(path, img); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), path)
					return nil
				})
			if err != nil {
				return err
			}
			stats := doc.Stats()
			classes := make([]string, 0, len(stats))
			for c := range stats {
				classes = append(classes, string(c))
			}
			sort.Strings(classes)
			for _, c := range classes {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %d\n", c, stats[layout.BoxClass(c)])
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: <input>_layout)")
	cmd.Flags().StringVarP(&fontName, "font", "f", fonts.DefaultPreset, "font preset used for labels")
	cmd.Flags().BoolVar(&padded, "padded", true, "show boxes after padding")
	return cmd
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
