package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"pdf-layout-translator/internal/failures"
	"pdf-layout-translator/internal/jobs"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/pipeline"
)

func serveJobsCmd(g *globalOptions) *cobra.Command {
	opts := &translateOptions{}
	var outDir, journalDir string
	var poll time.Duration
	cmd := &cobra.Command{
		Use:   "serve-jobs <dir>",
		Short: "Translate every PDF in a directory through the job queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(g)
			if err != nil {
				return err
			}
			inputs, err := filepath.Glob(filepath.Join(args[0], "*.pdf"))
			if err != nil {
				return err
			}
			sort.Strings(inputs)
			if len(inputs) == 0 {
				return fmt.Errorf("no PDF files in %s", args[0])
			}
			if outDir == "" {
				outDir = filepath.Join(args[0], "translated")
			}
			if err := os.MkdirAll(outDir, 0755); err != nil {
				return err
			}

			journal, err := failures.Open(journalDir)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			jobOpts := jobs.OptionsFromConfig(cfg)
			jobOpts.Journal = journal
			jobOpts.Log = log
			m := jobs.NewManager(p, jobOpts)
			m.Start()

			submitted := make(map[jobs.JobID]string)
			var order []jobs.JobID
			for _, in := range inputs {
				req, err := readSubmitRequest(in, opts)
				if err != nil {
					return err
				}
				id, err := m.Submit(req)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: rejected: %v\n", filepath.Base(in), err)
					continue
				}
				submitted[id] = in
				order = append(order, id)
			}

			failed := 0
			for _, id := range order {
				st := waitWithProgress(cmd, m, id, poll)
				in := submitted[id]
				if st.State != jobs.StateSucceeded {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s [%s] %s\n", filepath.Base(in), st.Code, st.Reason)
					continue
				}
				out := translatedName(in, outDir)
				if err := os.WriteFile(out, st.Result, 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK   %s -> %s\n", filepath.Base(in), out)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.Shutdown(ctx); err != nil {
				log.Warn("job manager shutdown timed out", logger.Err(err))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed, see %s", failed, len(order), journal.Path())
			}
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: <dir>/translated)")
	cmd.Flags().StringVar(&journalDir, "journal-dir", "", "failure journal directory (default: ~/.pdf-layout-translator)")
	cmd.Flags().DurationVar(&poll, "poll", 2*time.Second, "progress polling interval")
	return cmd
}

// waitWithProgress 轮询任务状态并打印阶段变化，直到终态
func waitWithProgress(cmd *cobra.Command, m *jobs.Manager, id jobs.JobID, poll time.Duration) jobs.Status {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	var last pipeline.Progress
	for {
		st, err := m.Status(id)
		if err != nil {
			return jobs.Status{ID: id, State: jobs.StateFailed, Reason: err.Error()}
		}
		if st.State.Terminal() {
			return st
		}
		if st.Progress != last {
			last = st.Progress
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s %s %d/%d\n", id, st.State, last.Phase, last.Done, last.Total)
		}
		select {
		case <-cmd.Context().Done():
			return jobs.Status{ID: id, State: jobs.StateFailed, Reason: cmd.Context().Err().Error()}
		case <-ticker.C:
		}
	}
}

func failuresCmd() *cobra.Command {
	var journalDir string
	var clearAll bool
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List documents whose last translation failed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			journal, err := failures.Open(journalDir)
			if err != nil {
				return err
			}
			if clearAll {
				return journal.Clear()
			}
			records := journal.List()
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no failures recorded")
				return nil
			}
			for _, r := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-28s %-10s %-16s attempts=%d  %s\n",
					r.Timestamp.Format(time.DateTime), r.Document, r.Phase, r.Code, r.Attempts, r.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&journalDir, "journal-dir", "", "failure journal directory (default: ~/.pdf-layout-translator)")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "remove all records")
	return cmd
}
