package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pdf-layout-translator/internal/fonts"
	"pdf-layout-translator/internal/jobs"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/pipeline"
)

type translateOptions struct {
	output string
	source string
	target string
	font   string
}

func (o *translateOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.source, "source", "s", jobs.DefaultSourceLang, "source language name")
	cmd.Flags().StringVarP(&o.target, "target", "t", jobs.DefaultTargetLang, "target language name")
	cmd.Flags().StringVarP(&o.font, "font", "f", fonts.DefaultPreset, "font preset name")
}

func translateCmd(g *globalOptions) *cobra.Command {
	opts := &translateOptions{}
	cmd := &cobra.Command{
		Use:   "translate <input.pdf>",
		Short: "Translate one PDF and write the result next to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(g)
			if err != nil {
				return err
			}
			input := args[0]
			output := opts.output
			if output == "" {
				output = translatedName(input, "")
			}

			p, err := pipeline.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			jobOpts := jobs.OptionsFromConfig(cfg)
			jobOpts.Workers = 1
			jobOpts.Log = log
			m := jobs.NewManager(p, jobOpts)
			m.Start()
			defer m.Shutdown(context.Background())

			req, err := readSubmitRequest(input, opts)
			if err != nil {
				return err
			}
			id, err := m.Submit(req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Input:  %s\nOutput: %s\nJob:    %s\n", input, output, id)

			st, err := m.Wait(cmd.Context(), id)
			if err != nil {
				return err
			}
			if st.State != jobs.StateSucceeded {
				return fmt.Errorf("translation failed (%s): %s", st.Code, st.Reason)
			}
			if err := os.WriteFile(output, st.Result, 0644); err != nil {
				return fmt.Errorf("failed to write output: %w", err)
			}
			printReport(cmd, st.Report)
			log.Info("translation written", logger.String("output", output))
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output path (default: <input>_translated.pdf)")
	return cmd
}

func readSubmitRequest(path string, opts *translateOptions) (jobs.SubmitRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return jobs.SubmitRequest{}, fmt.Errorf("failed to read input: %w", err)
	}
	return jobs.SubmitRequest{
		Filename:    filepath.Base(path),
		ContentType: contentType(data),
		Data:        data,
		SourceLang:  opts.source,
		TargetLang:  opts.target,
		FontName:    opts.font,
	}, nil
}

// contentType 按文件头嗅探，等同于上传时浏览器给出的类型
func contentType(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

func translatedName(input, dir string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + "_translated.pdf"
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, base)
}

func printReport(cmd *cobra.Command, r *pipeline.Report) {
	if r == nil {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pages=%d figures=%d units=%d inserted=%d blank=%d batches(structured=%d phrase=%d) elapsed=%s\n",
		r.Pages, r.Figures, r.Units, r.Inserted, r.Blank, r.Structured, r.Phrase, r.Elapsed.Round(time.Millisecond))
}
