package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chunkscribe/chunkscribe/internal/chunking"
	"github.com/chunkscribe/chunkscribe/internal/config"
	"github.com/chunkscribe/chunkscribe/internal/lang"
	"github.com/chunkscribe/chunkscribe/internal/pipeline"
)

// supportedFormats lists audio formats accepted by OpenAI's transcription API.
// Source: https://platform.openai.com/docs/guides/speech-to-text
var supportedFormats = map[string]bool{
	".ogg":  true,
	".oga":  true,
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".flac": true,
	".mp4":  true,
	".mpeg": true,
	".mpga": true,
	".webm": true,
}

// supportedFormatsList returns a sorted, comma-separated list for error messages.
func supportedFormatsList() string {
	formats := make([]string, 0, len(supportedFormats))
	for ext := range supportedFormats {
		formats = append(formats, strings.TrimPrefix(ext, "."))
	}
	slices.Sort(formats)
	return strings.Join(formats, ", ")
}

// clampParallel constrains the concurrent recording count to [1, MaxRecommendedParallel].
func clampParallel(n int) int {
	if n < 1 {
		return 1
	}
	if n > pipeline.MaxRecommendedParallel {
		return pipeline.MaxRecommendedParallel
	}
	return n
}

// deriveOutputPath converts an audio file path to a text output path.
// Example: "session.ogg" -> "session.txt"
func deriveOutputPath(inputPath string) string {
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + ".txt"
}

// transcribeFlags holds the flag values for the transcribe command.
type transcribeFlags struct {
	output       string
	diarize      bool
	language     string
	chunkLimit   string
	chunkOverlap int
	noChunking   bool
	minSpeakers  int
	maxSpeakers  int
	speakerNames []string
	parallel     int
}

// TranscribeCmd creates the transcribe command.
// The env parameter provides injectable dependencies for testing.
func TranscribeCmd(env *Env) *cobra.Command {
	var flags transcribeFlags

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>...",
		Short: "Transcribe one or more audio files",
		Long: `Transcribe audio files using OpenAI's transcription API.

Recordings longer than the provider's per-call limit are split into
overlapping chunks, transcribed sequentially, and merged back into one
transcript. With --diarize, speaker labels stay consistent across chunks
by passing a short voice sample of each speaker to later calls.

Supported formats: flac, m4a, mp3, mp4, mpeg, mpga, oga, ogg, wav, webm`,
		Example: `  chunkscribe transcribe meeting.mp3
  chunkscribe transcribe interview.wav --diarize -o interview.txt
  chunkscribe transcribe podcast.mp3 -l en --chunk-limit 15m --chunk-overlap 45
  chunkscribe transcribe ep1.mp3 ep2.mp3 ep3.mp3 -p 3
  chunkscribe transcribe panel.mp3 --diarize --max-speakers 4 --speaker-names Ana,Bruno`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, env, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Output file path (default: <input>.txt, single input only)")
	cmd.Flags().BoolVar(&flags.diarize, "diarize", false, "Enable speaker identification")
	cmd.Flags().StringVarP(&flags.language, "language", "l", "", "Audio language (ISO 639-1 code, e.g., en, fr, pt-BR)")
	cmd.Flags().StringVar(&flags.chunkLimit, "chunk-limit", "", "Chunk limit, e.g. 20MB, 900s, 15m")
	cmd.Flags().IntVar(&flags.chunkOverlap, "chunk-overlap", 0, "Overlap between chunks in seconds (default 30)")
	cmd.Flags().BoolVar(&flags.noChunking, "no-chunking", false, "Disable local chunking (provider limits still apply)")
	cmd.Flags().IntVar(&flags.minSpeakers, "min-speakers", 0, "Minimum number of speakers (requires --diarize)")
	cmd.Flags().IntVar(&flags.maxSpeakers, "max-speakers", 0, "Maximum number of speakers (requires --diarize)")
	cmd.Flags().StringSliceVar(&flags.speakerNames, "speaker-names", nil, "Known speaker names (requires --diarize)")
	cmd.Flags().IntVarP(&flags.parallel, "parallel", "p", 1, "Max recordings processed concurrently (1-10)")

	return cmd
}

// runTranscribe executes the transcription pipeline.
// Validation order: files exist -> format -> flags -> limit -> language -> API key
func runTranscribe(cmd *cobra.Command, env *Env, inputs []string, flags transcribeFlags) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	for _, input := range inputs {
		if _, err := os.Stat(input); err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrFileNotFound, input)
			}
			return fmt.Errorf("cannot access input file: %w", err)
		}

		ext := strings.ToLower(filepath.Ext(input))
		if !supportedFormats[ext] {
			return fmt.Errorf("unsupported format %q (supported: %s): %w",
				ext, supportedFormatsList(), ErrUnsupportedFormat)
		}
	}

	if flags.output != "" && len(inputs) > 1 {
		return ErrOutputAmbiguous
	}

	if flags.chunkLimit != "" {
		if _, _, err := chunking.ParseLimit(flags.chunkLimit); err != nil {
			return fmt.Errorf("invalid --chunk-limit: %w", err)
		}
	}

	if !flags.diarize && (flags.minSpeakers > 0 || flags.maxSpeakers > 0 || len(flags.speakerNames) > 0) {
		return fmt.Errorf("--min-speakers, --max-speakers and --speaker-names require --diarize")
	}

	if err := lang.Validate(flags.language); err != nil {
		return err
	}

	apiKey := env.Getenv(EnvOpenAIAPIKey)
	if apiKey == "" {
		return fmt.Errorf("%w (set it with: export %s=sk-...)", ErrAPIKeyMissing, EnvOpenAIAPIKey)
	}

	// === SETUP ===

	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		fmt.Fprintf(env.Stderr, "Warning: failed to load config: %v\n", err)
	}

	ffmpegPath, err := env.FFmpegResolver.Resolve(ctx)
	if err != nil {
		return err
	}
	env.FFmpegResolver.CheckVersion(ctx, ffmpegPath)

	proc, err := env.PipelineFactory.NewPipeline(apiKey, ffmpegPath,
		pipeline.WithWarnFunc(func(msg string) {
			fmt.Fprintln(env.Stderr, msg)
		}),
		pipeline.WithProgressFunc(func(done, total int) {
			fmt.Fprintf(env.Stderr, "Transcribed chunk %d/%d\n", done, total)
		}),
	)
	if err != nil {
		return err
	}

	// Flags override config file settings.
	settings := cfg.ChunkingSettings()
	if flags.chunkLimit != "" {
		settings.Limit = flags.chunkLimit
	}
	if flags.chunkOverlap > 0 {
		settings.OverlapSeconds = flags.chunkOverlap
	}
	if flags.noChunking {
		settings.Disabled = true
	}

	opts := pipeline.Options{
		Language:          lang.BaseCode(flags.language),
		Diarize:           flags.diarize,
		MinSpeakers:       flags.minSpeakers,
		MaxSpeakers:       flags.maxSpeakers,
		KnownSpeakerNames: flags.speakerNames,
		Chunking:          settings,
	}

	// === TRANSCRIPTION ===

	fmt.Fprintf(env.Stderr, "Transcribing %d file(s)...\n", len(inputs))
	results, err := proc.ProcessAll(ctx, inputs, opts, clampParallel(flags.parallel))
	if err != nil {
		return err
	}

	// === WRITE OUTPUT ===

	for _, result := range results {
		defaultOutput := deriveOutputPath(filepath.Base(result.Path))
		outputPath := config.ResolveOutputPath(flags.output, cfg.OutputDir, defaultOutput)

		if err := writeTranscript(outputPath, result.Transcript.Text); err != nil {
			return err
		}
		fmt.Fprintf(env.Stderr, "Done: %s\n", outputPath)
	}

	return nil
}

// writeTranscript writes the transcript atomically, refusing to overwrite.
func writeTranscript(path, text string) error {
	// O_EXCL atomically checks existence and creates the file.
	// #nosec G302 G304 -- user-specified output file with standard permissions
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrOutputExists)
		}
		return fmt.Errorf("cannot create output file: %w", err)
	}

	writeErr := func() error {
		defer func() { _ = f.Close() }()
		if _, err := f.WriteString(text); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}()

	if writeErr != nil {
		_ = os.Remove(path)
		return writeErr
	}
	return nil
}
