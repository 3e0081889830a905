package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/TFMV/filelist/internal/filelist"
	"github.com/TFMV/filelist/internal/walk"
)

// newWatchCmd represents the watch command
func newWatchCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [flags] [paths...]",
		Short: "Print the expansion, then keep printing new files",
		Long: `Expand the arguments like the root command (directories are always walked),
print the result, then watch the directory arguments and print every regular
file that appears below them until interrupted.

Examples:
  filelist watch src/
  filelist watch --max-depth 1 --print0 incoming/ | xargs -0 -n1 process`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, v, args)
		},
	}
}

func runWatch(cmd *cobra.Command, v *viper.Viper, tokens []string) error {
	v.Set("recursive", true)
	s, err := loadSettings(v)
	if err != nil {
		return err
	}
	defer s.logger.Sync()

	if s.output.Format != filelist.FormatText {
		return errors.New("watch only supports text output")
	}

	paths, expandErr := s.expand(cmd.Context(), tokens, cmd.InOrStdin())
	if expandErr != nil && !isPartial(expandErr) {
		return expandErr
	}

	w := filelist.NewWriter(cmd.OutOrStdout(), s.output)
	if err := w.WriteAll(paths); err != nil {
		return err
	}
	if expandErr != nil {
		s.logger.Warn("initial expansion was incomplete", zap.Error(expandErr))
	}

	roots := watchRoots(tokens)
	s.logger.Debug("starting watch", zap.Strings("roots", roots))
	return walk.Watch(cmd.Context(), roots, *s.walk, w.WritePath)
}

// watchRoots returns the positional arguments that are directories.
func watchRoots(tokens []string) []string {
	var roots []string
	for _, tok := range tokens {
		if tok == filelist.Sentinel {
			continue
		}
		if info, err := os.Stat(tok); err == nil && info.IsDir() {
			roots = append(roots, tok)
		}
	}
	return roots
}
