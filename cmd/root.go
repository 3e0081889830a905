package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/TFMV/filelist/internal/filelist"
	"github.com/TFMV/filelist/internal/logging"
	"github.com/TFMV/filelist/internal/walk"
)

// Execute builds the root command and runs it until completion or interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// newRootCmd constructs the root command with its own viper instance so that
// each invocation starts from clean configuration.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "filelist [flags] [paths...]",
		Short: "Expand paths, list files and directories into regular files",
		Long: `filelist resolves its arguments into a flat list of existing regular files.

Arguments are file paths, directories (walked with --recursive), or "-" to read
delimiter-separated paths from standard input at that position. List files
given with --from-file use the same format and are expanded first.

Examples:
  filelist a.txt b.txt
  find . -name '*.go' -print0 | filelist -d '\0' -
  filelist -r -s src/ docs/README.md
  filelist -r --max-depth 2 --hidden -0 . | xargs -0 wc -l
  filelist -f batch1.txt -f batch2.txt extra.txt`,
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFileList(cmd, v, args)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.filelist.yaml)")

	// Input
	flags.BoolP("recursive", "r", false, "Walk directory arguments")
	flags.BoolP("sorted", "s", false, "Sort entries within each directory (with --recursive)")
	flags.StringP("in-delimiter", "d", `\n`, `Delimiter for stdin and list files (single byte, \n, \t or \0)`)
	flags.StringSliceP("from-file", "f", nil, "File containing delimiter-separated paths (repeatable)")

	// Traversal
	flags.Uint("min-depth", 0, "Minimum depth to report (with --recursive)")
	flags.Int("max-depth", -1, "Maximum depth to descend, negative for unlimited (with --recursive)")
	flags.Bool("hidden", false, "Include hidden entries (with --recursive)")
	flags.BoolP("follow-links", "L", false, "Follow symbolic links (with --recursive)")
	flags.StringP("parallelism", "j", "default", `Directory readers: "default", "serial" or a count`)
	flags.String("error-mode", "stop", "Error handling mode (stop|skip|continue)")

	// Output
	flags.StringP("out-delimiter", "D", `\n`, "Delimiter written after each path")
	flags.BoolP("print0", "0", false, `Shorthand for --out-delimiter '\0'`)
	flags.String("format", "text", "Output format (text|json)")
	flags.Bool("nfc", false, "Normalize printed paths to Unicode NFC")
	flags.Bool("lossy", false, "Print paths that are not valid UTF-8 with replacement characters")

	// Logging
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	flags.Bool("silent", false, "Only log errors")

	// Bind flags to viper
	for _, name := range []string{
		"recursive", "sorted", "in-delimiter", "from-file",
		"min-depth", "max-depth", "hidden", "follow-links", "parallelism", "error-mode",
		"out-delimiter", "print0", "format", "nfc", "lossy",
		"verbose", "silent",
	} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	rootCmd.AddCommand(newWatchCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// initConfig reads in config file and ENV variables if set.
func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		// Use config file from the flag.
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		// Search config in home directory with name ".filelist" (without extension).
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".filelist")
	}

	v.SetEnvPrefix("FILELIST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv() // read in environment variables that match

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// settings is the validated configuration of one invocation.
type settings struct {
	delimiter filelist.Delimiter
	walk      *walk.Options
	listFiles []string
	output    filelist.OutputOptions
	logger    *zap.Logger
}

// loadSettings validates the configuration before any expansion begins.
func loadSettings(v *viper.Viper) (*settings, error) {
	s := &settings{
		listFiles: v.GetStringSlice("from-file"),
	}

	switch {
	case v.GetBool("verbose"):
		s.logger = logging.New(logging.LogLevelDebug)
	case v.GetBool("silent"):
		s.logger = logging.New(logging.LogLevelError)
	default:
		s.logger = logging.New(logging.LogLevelInfo)
	}

	delim, err := filelist.ParseDelimiter(v.GetString("in-delimiter"))
	if err != nil {
		return nil, fmt.Errorf("invalid in-delimiter: %w", err)
	}
	s.delimiter = delim

	outDelim := filelist.Newline
	if v.GetBool("print0") {
		outDelim = filelist.Null
	} else if outDelim, err = filelist.ParseDelimiter(v.GetString("out-delimiter")); err != nil {
		return nil, fmt.Errorf("invalid out-delimiter: %w", err)
	}

	format, err := filelist.ParseFormat(v.GetString("format"))
	if err != nil {
		return nil, err
	}
	s.output = filelist.OutputOptions{
		Format:    format,
		Delimiter: outDelim,
		NFC:       v.GetBool("nfc"),
		Lossy:     v.GetBool("lossy"),
	}

	parallelism, err := walk.ParseParallelism(v.GetString("parallelism"))
	if err != nil {
		return nil, err
	}
	errorMode, err := walk.ParseErrorHandling(v.GetString("error-mode"))
	if err != nil {
		return nil, err
	}

	if v.GetBool("recursive") {
		opts := walk.DefaultOptions()
		opts.Sort = v.GetBool("sorted")
		opts.MinDepth = v.GetUint("min-depth")
		if maxDepth := v.GetInt("max-depth"); maxDepth >= 0 {
			opts.MaxDepth = uint(maxDepth)
		} else {
			opts.MaxDepth = math.MaxUint
		}
		opts.SkipHidden = !v.GetBool("hidden")
		opts.FollowLinks = v.GetBool("follow-links")
		opts.Parallelism = parallelism
		opts.ErrorHandling = errorMode
		opts.Logger = s.logger
		s.walk = &opts
	}

	return s, nil
}

// expand runs the list files first, then the positional tokens.
func (s *settings) expand(ctx context.Context, tokens []string, stdin io.Reader) ([]string, error) {
	e := filelist.NewExpander(s.delimiter, s.walk, s.logger)

	var partial []error
	listed, err := e.ExpandListFiles(ctx, s.listFiles)
	if err != nil {
		if !isPartial(err) {
			return nil, err
		}
		partial = append(partial, err)
	}

	paths, err := e.ExpandTokens(ctx, tokens, stdin)
	if err != nil {
		if !isPartial(err) {
			return nil, err
		}
		partial = append(partial, err)
	}

	return append(listed, paths...), errors.Join(partial...)
}

func isPartial(err error) bool {
	var pe *filelist.PartialError
	return errors.As(err, &pe)
}

func runFileList(cmd *cobra.Command, v *viper.Viper, tokens []string) error {
	s, err := loadSettings(v)
	if err != nil {
		return err
	}
	defer s.logger.Sync()

	s.logger.Debug("expanding arguments",
		zap.Int("tokens", len(tokens)),
		zap.Strings("list_files", s.listFiles),
		zap.Stringer("delimiter", s.delimiter),
		zap.Bool("recursive", s.walk != nil),
	)

	paths, expandErr := s.expand(cmd.Context(), tokens, cmd.InOrStdin())
	if expandErr != nil && !isPartial(expandErr) {
		return expandErr
	}

	if err := filelist.NewWriter(cmd.OutOrStdout(), s.output).WriteAll(paths); err != nil {
		return err
	}
	return expandErr
}
