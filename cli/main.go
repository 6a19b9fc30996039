package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"dubber"
	"dubber/config"
	"dubber/i18n"
	"dubber/logging"
	"dubber/pipeline"
	"dubber/translate"
	"dubber/youtube"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app holds state shared by every command, filled in by the root's
// PersistentPreRunE.
type app struct {
	configPath string
	logLevel   string
	uiLang     string
	offline    bool
	source     string
	target     string
	apiKey     string

	cfg      *config.Config
	provider logging.LoggerProvider
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "dubber",
		Short: "Dub YouTube videos into another language",
		Long: `dubber downloads a video, transcribes it (captions or whisper.cpp),
translates the timed segments, speaks them with piper and muxes the new
audio track with ffmpeg.

Translation goes to a LibreTranslate-compatible endpoint with retries and a
persistent cache. When the endpoint is unreachable and offline mode is on,
a phrase dictionary, an idiom table and an "unavailable" marker take over.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Config file (default: dubber.yaml in . or ~/.config/dubber)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	flags.StringVar(&a.uiLang, "ui-lang", "", "Language of CLI messages (default: from LANG)")
	flags.BoolVar(&a.offline, "offline", true, "Fall back to dictionary/idioms/marker when the service is unavailable")
	flags.StringVarP(&a.source, "source", "s", "", "Source language (default from config)")
	flags.StringVarP(&a.target, "target", "t", "", "Target language (default from config)")
	flags.StringVar(&a.apiKey, "api-key", "", "Translation API key (or DUBBER_API_KEY)")

	root.AddCommand(
		newTranslateCmd(a),
		newBatchCmd(a),
		newSubtitlesCmd(a),
		newDubCmd(a),
		newDownloadCmd(a),
		newLanguagesCmd(a),
		newCacheCmd(a),
		newVersionCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	i18n.Init(a.uiLang)

	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("offline") {
		a.cfg.Translation.OfflineMode = a.offline
	}
	if a.source != "" {
		a.cfg.Translation.SourceLanguage = a.source
	}
	if a.target != "" {
		a.cfg.Translation.TargetLanguage = a.target
	}
	if a.apiKey != "" {
		a.cfg.Translation.APIKey = a.apiKey
	}
	if a.logLevel != "" {
		a.cfg.Log.Level = a.logLevel
	}

	provider, err := logging.NewProvider(logging.Config{Level: a.cfg.Log.Level, Format: a.cfg.Log.Format})
	if err != nil {
		return err
	}
	a.provider = provider
	return nil
}

func (a *app) translator(ctx context.Context) (*dubber.Translator, error) {
	return dubber.NewTranslator(ctx, a.cfg, a.provider)
}

func (a *app) options() translate.Options {
	return dubber.Options(a.cfg)
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd(a *app) *cobra.Command {
	var enhanced, asJSON bool
	cmd := &cobra.Command{
		Use:   "translate [flags] <text...>",
		Short: "Translate a text",
		Example: `  dubber translate "It's raining cats and dogs"
  dubber translate --enhanced -t tr "Let's wrap up the meeting"
  echo "good morning" | dubber translate -`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = strings.TrimSpace(string(data))
			}

			ctx := cmd.Context()
			tr, err := a.translator(ctx)
			if err != nil {
				return err
			}
			defer tr.Close()

			var res translate.Result
			if enhanced {
				res, err = tr.TranslateTextEnhanced(ctx, text, a.options(), nil)
			} else {
				res, err = tr.TranslateText(ctx, text, a.options())
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res, asJSON)
		},
	}
	cmd.Flags().BoolVar(&enhanced, "enhanced", false, "Run the full text transform pipeline (contractions, phrasal verbs, Turkish casing)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

func printResult(out, errOut io.Writer, res translate.Result, asJSON bool) error {
	if asJSON {
		return translate.WriteResult(out, res)
	}
	fmt.Fprintln(out, res.TranslatedText)
	if res.Origin.Degraded() {
		fmt.Fprintln(errOut, i18n.T("Translation service unreachable, using offline fallback"))
	}
	return nil
}

// ---------------------------------------------------------------------------
// batch
// ---------------------------------------------------------------------------

func newBatchCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "batch [flags] <file|->",
		Short: "Translate a file line by line",
		Long: `Translate every non-empty line of a file (or stdin with "-").
Reachability is checked once; unreachable endpoints send every line to the
offline fallback without further network calls.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			lines, err := readLines(in)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			tr, err := a.translator(ctx)
			if err != nil {
				return err
			}
			defer tr.Close()

			results, err := tr.TranslateTexts(ctx, lines, a.options())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, res := range results {
				if asJSON {
					if err := translate.WriteResult(out, res); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintln(out, res.TranslatedText)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON result per line")
	return cmd
}

// readLines returns the non-blank lines of r, trimmed.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// ---------------------------------------------------------------------------
// subtitles and dub (pipeline)
// ---------------------------------------------------------------------------

func newSubtitlesCmd(a *app) *cobra.Command {
	var autoCaptions, quiet bool
	cmd := &cobra.Command{
		Use:   "subtitles [flags] <video-url|video-id>",
		Short: "Translate a video's transcript into a timed JSON result",
		Example: `  dubber subtitles dQw4w9WgXcQ
  dubber subtitles --auto-captions -t de https://youtu.be/dQw4w9WgXcQ`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.runPipeline(cmd, args[0], pipeline.Options{
				SubtitlesOnly:     true,
				AutomaticCaptions: autoCaptions,
			}, quiet)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, seg := range job.Translation.Segments {
				fmt.Fprintf(out, "[%s +%s] %s\n",
					formatTimestamp(seg.StartTime),
					formatTimestamp(seg.EndTime-seg.StartTime),
					seg.TranslatedText)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), i18n.T("Job %s finished: %s", job.ID, job.ResultPath))
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoCaptions, "auto-captions", false, "Accept YouTube's automatic captions")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
	return cmd
}

func newDubCmd(a *app) *cobra.Command {
	var autoCaptions, quiet bool
	var outputDir string
	cmd := &cobra.Command{
		Use:   "dub [flags] <video-url|video-id>",
		Short: "Dub a video into the target language",
		Long: `Download, transcribe, translate, synthesize and remux a video.

Requires yt-dlp, ffmpeg and a piper voice (tools.piper_model or
DUBBER_PIPER_MODEL). Videos without captions also need a whisper model
(tools.whisper_model or DUBBER_WHISPER_MODEL).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := a.runPipeline(cmd, args[0], pipeline.Options{
				AutomaticCaptions: autoCaptions,
				OutputDir:         outputDir,
			}, quiet)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), job.OutputPath)
			fmt.Fprintln(cmd.ErrOrStderr(), i18n.T("Job %s finished: %s", job.ID, job.OutputPath))
			return nil
		},
	}
	cmd.Flags().BoolVar(&autoCaptions, "auto-captions", false, "Accept YouTube's automatic captions")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory for the dubbed video")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print progress")
	return cmd
}

func (a *app) runPipeline(cmd *cobra.Command, input string, opts pipeline.Options, quiet bool) (*pipeline.Job, error) {
	ctx := cmd.Context()
	tr, err := a.translator(ctx)
	if err != nil {
		return nil, err
	}
	defer tr.Close()

	var onEvent func(pipeline.Event)
	if !quiet {
		errOut := cmd.ErrOrStderr()
		onEvent = func(ev pipeline.Event) {
			if ev.Message != "" {
				fmt.Fprintf(errOut, "[%3.0f%%] %-10s %s\n", ev.Progress*100, ev.Stage, ev.Message)
			}
		}
	}
	runner, err := dubber.NewRunner(a.cfg, tr, a.provider, onEvent)
	if err != nil {
		return nil, err
	}

	base := a.options()
	opts.SourceLanguage = base.SourceLanguage
	opts.TargetLanguage = base.TargetLanguage
	opts.APIKey = base.APIKey
	return runner.Run(ctx, input, opts)
}

// ---------------------------------------------------------------------------
// download
// ---------------------------------------------------------------------------

func newDownloadCmd(a *app) *cobra.Command {
	var audioOnly, noMetadata bool
	var outputDir, format string
	cmd := &cobra.Command{
		Use:   "download [flags] <video-url|video-id>",
		Short: "Download a video with yt-dlp",
		Example: `  dubber download dQw4w9WgXcQ
  dubber download dQw4w9WgXcQ --audio-only
  dubber download dQw4w9WgXcQ --dir ~/Downloads`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := youtube.ParseVideoID(args[0])
			if err != nil {
				return err
			}
			d := &youtube.Downloader{
				YtdlpPath: a.cfg.Tools.YtdlpPath,
				Timeout:   a.cfg.Tools.YtdlpTimeout,
				Logger:    logging.Named(a.provider, "youtube"),
			}
			errOut := cmd.ErrOrStderr()
			fmt.Fprintf(errOut, "Downloading %s...\n", videoID)
			res, err := d.Download(cmd.Context(), videoID, &youtube.DownloadOptions{
				OutputDir:       outputDir,
				Format:          format,
				AudioOnly:       audioOnly,
				IncludeMetadata: !noMetadata,
				OnProgress:      func(line string) { fmt.Fprintln(errOut, line) },
			})
			if err != nil {
				return err
			}
			if res.Metadata != nil {
				fmt.Fprintf(errOut, "Title: %s (%s)\n", truncate(res.Metadata.Title, 60), formatTimestamp(res.Metadata.Duration))
			}
			if res.MetadataPath != "" {
				fmt.Fprintf(errOut, "Metadata saved to: %s\n", res.MetadataPath)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.VideoPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&audioOnly, "audio-only", false, "Extract audio only (WAV)")
	cmd.Flags().StringVar(&outputDir, "dir", ".", "Directory to save the video")
	cmd.Flags().StringVar(&format, "format", "best", "yt-dlp format selector")
	cmd.Flags().BoolVar(&noMetadata, "no-metadata", false, "Skip saving metadata JSON")
	return cmd
}

// ---------------------------------------------------------------------------
// languages
// ---------------------------------------------------------------------------

func newLanguagesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List languages supported by the translation endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			tr, err := a.translator(ctx)
			if err != nil {
				return err
			}
			defer tr.Close()

			langs, err := tr.SupportedLanguages(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, i18n.T("Supported languages:"))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tNAME\tTARGETS")
			for _, l := range langs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", l.Code, l.Name, truncate(strings.Join(l.Targets, ","), 50))
			}
			return w.Flush()
		},
	}
}

// ---------------------------------------------------------------------------
// cache
// ---------------------------------------------------------------------------

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the translation cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show cache size and language pairs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				tr, err := a.translator(cmd.Context())
				if err != nil {
					return err
				}
				defer tr.Close()
				s := tr.CacheStatistics()
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("Cache entries: %d, language pairs: %d, hits: %d, misses: %d",
					s.Entries, s.LanguagePairs, s.Hits, s.Misses))
				if s.Hits+s.Misses > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), i18n.T("Hit rate: %.1f%%", s.HitRate()*100))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every cached translation",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				tr, err := a.translator(cmd.Context())
				if err != nil {
					return err
				}
				defer tr.Close()
				tr.ClearCache(cmd.Context())
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("Translation cache cleared"))
				return nil
			},
		},
	)
	return cmd
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// Version needs no config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dubber version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func formatTimestamp(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
