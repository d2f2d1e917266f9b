// File: cmd/logs.go
package cmd

import (
	"fmt"
	"io"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

// newLogsCmd creates the `logs` command, which prints or follows the JSON log file.
func newLogsCmd() *cobra.Command {
	var follow bool
	var minLevel, file string

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Print or follow the structured log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			path := file
			if path == "" {
				path = cfg.Logger().LogFile
			}
			if path == "" {
				return fmt.Errorf("no log file configured (logger.log_file)")
			}

			var level zapcore.Level
			if err := level.UnmarshalText([]byte(minLevel)); err != nil {
				return fmt.Errorf("invalid --level %q: %w", minLevel, err)
			}

			t, err := tail.TailFile(path, tail.Config{
				Follow:    follow,
				ReOpen:    follow,
				MustExist: !follow,
				Logger:    tail.DiscardingLogger,
			})
			if err != nil {
				return fmt.Errorf("failed to open log file %s: %w", path, err)
			}
			defer t.Cleanup()

			return streamLogs(cmd, t, level, cmd.OutOrStdout())
		},
	}

	logsCmd.Flags().BoolVarP(&follow, "follow", "F", false, "Keep printing new lines as they are written.")
	logsCmd.Flags().StringVar(&minLevel, "level", "debug", "Only print entries at or above this level.")
	logsCmd.Flags().StringVar(&file, "file", "", "Log file to read instead of logger.log_file.")
	return logsCmd
}

func streamLogs(cmd *cobra.Command, t *tail.Tail, min zapcore.Level, out io.Writer) error {
	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Wait()
			}
			if line.Err != nil {
				return fmt.Errorf("failed to read log line: %w", line.Err)
			}
			if keep(line.Text, min) {
				fmt.Fprintln(out, line.Text)
			}
		}
	}
}

// keep reports whether a JSON log line is at or above min. Lines that are
// not JSON log entries are always kept.
func keep(text string, min zapcore.Level) bool {
	var entry struct {
		Level string `json:"level"`
	}
	if err := json.UnmarshalFromString(text, &entry); err != nil || entry.Level == "" {
		return true
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(entry.Level)); err != nil {
		return true
	}
	return lvl >= min
}
