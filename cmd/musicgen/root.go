package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"musicd/internal/config"
	"musicd/internal/logging"
	"musicd/internal/manager"
	"musicd/internal/registry"
	"musicd/pkg/types"
)

const defaultPrompt = "A calming piano melody with gentle rain in the background"

// generator is the slice of the Manager the CLI needs.
type generator interface {
	Generate(ctx context.Context, req manager.GenerationRequest) (manager.GenerationResult, error)
	Close() error
}

type generatorFactory func(cfg cliConfig, log zerolog.Logger) (generator, error)

// cliConfig is the resolved CLI configuration.
type cliConfig struct {
	Prompt        string
	Model         string
	Output        string
	OutputDir     string
	MaxTokens     int
	BackendURL    string
	BackendAPIKey string
	Device        string
	LogLevel      string
	HFCache       string
	Variants      []types.Variant
}

func newRootCmd(stdout, stderr io.Writer, newGen generatorFactory) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "musicgen",
		Short: "Generate music from a text prompt",
		Long: `musicgen turns a text prompt into a WAV file using a MusicGen model
served by an inference worker (--backend-url or MUSICGEN_BACKEND_URL).

Every flag can also be set through the environment with the MUSICGEN_ prefix,
for example MUSICGEN_MAX_TOKENS=512. A .env file in the working directory is
loaded first.`,
		Example: `  musicgen --prompt "lofi hip hop beat" --model medium
  musicgen -p "ambient drone" --max-tokens 512 --output drone.wav`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(v)
			if err != nil {
				return err
			}
			log := logging.New(logging.Config{Level: cfg.LogLevel, Output: stderr})
			return runGenerate(cmd.Context(), stdout, cfg, newGen, log)
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "Path to a YAML/JSON/TOML config file")
	pf.String("backend-url", "", "Base URL of the inference worker")
	pf.String("backend-api-key", "", "Bearer token for the inference worker")
	pf.String("device", "auto", "Device preference: auto, mps, cuda or cpu")
	pf.String("log-level", "warn", "Log level: debug, info, warn, error")
	pf.String("hf-cache", "~/.cache/huggingface/hub", "Hugging Face hub cache directory")

	f := cmd.Flags()
	f.StringP("prompt", "p", defaultPrompt, "Text description of the music")
	f.StringP("model", "m", registry.DefaultVariant, "Model size: small or medium")
	f.StringP("output", "o", "", "Output file path (default music_<model>_<timestamp>.wav)")
	f.String("output-dir", ".", "Directory for the default output file name")
	f.Int("max-tokens", 0, "Tokens to generate (0 uses the model default: small 256, medium 512)")

	_ = v.BindPFlags(pf)
	_ = v.BindPFlags(f)
	v.SetEnvPrefix("MUSICGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	cmd.AddCommand(newVariantsCmd(v, stdout))
	return cmd
}

// loadConfig loads .env and the optional config file. File values sit below
// flags and environment variables.
func loadConfig(v *viper.Viper) error {
	_ = godotenv.Load()
	path := v.GetString("config")
	if path == "" {
		return nil
	}
	c, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	setDefault := func(key, val string) {
		if val != "" {
			v.SetDefault(key, val)
		}
	}
	setDefault("backend-url", c.BackendURL)
	setDefault("backend-api-key", c.BackendAPIKey)
	setDefault("device", c.Device)
	setDefault("output-dir", c.OutputDir)
	setDefault("log-level", c.LogLevel)
	v.Set("variants", c.Variants)
	return nil
}

func resolveConfig(v *viper.Viper) (cliConfig, error) {
	cfg := cliConfig{
		Prompt:        v.GetString("prompt"),
		Model:         v.GetString("model"),
		Output:        v.GetString("output"),
		OutputDir:     v.GetString("output-dir"),
		MaxTokens:     v.GetInt("max-tokens"),
		BackendURL:    v.GetString("backend-url"),
		BackendAPIKey: v.GetString("backend-api-key"),
		Device:        v.GetString("device"),
		LogLevel:      v.GetString("log-level"),
		HFCache:       v.GetString("hf-cache"),
	}
	extra, _ := v.Get("variants").([]types.Variant)
	variants, err := registry.Build(extra)
	if err != nil {
		return cfg, err
	}
	cfg.Variants = variants
	return cfg, nil
}

func runGenerate(ctx context.Context, out io.Writer, cfg cliConfig, newGen generatorFactory, log zerolog.Logger) error {
	gen, err := newGen(cfg, log)
	if err != nil {
		return err
	}
	defer gen.Close()

	fmt.Fprintf(out, "Generating music for: %q\n", cfg.Prompt)
	fmt.Fprintf(out, "Model: %s (the first run downloads and loads it, which can take a while)\n", cfg.Model)
	res, err := gen.Generate(ctx, manager.GenerationRequest{
		Prompt:    cfg.Prompt,
		Variant:   cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Output:    cfg.Output,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Device: %s\n", res.Device)
	fmt.Fprintf(out, "Saved to: %s\n", res.FilePath)
	fmt.Fprintf(out, "Duration: %.2fs at %d Hz (%d tokens), generated in %s\n",
		res.DurationSeconds, res.SampleRate, res.MaxTokens,
		(time.Duration(res.GenerationSeconds * float64(time.Second))).Round(100*time.Millisecond))
	return nil
}

// newManagerGenerator builds the production generator: a Manager writing
// deterministic names, backed by the configured worker.
func newManagerGenerator(cfg cliConfig, log zerolog.Logger) (generator, error) {
	var backend manager.Backend
	if cfg.BackendURL != "" {
		backend = manager.NewWorkerBackend(cfg.BackendURL, cfg.BackendAPIKey, 0, 5*time.Second)
	} else {
		backend = manager.NewUnavailableBackend("no inference worker configured (set --backend-url or MUSICGEN_BACKEND_URL)")
	}
	return manager.NewWithConfig(manager.ManagerConfig{
		Variants:  cfg.Variants,
		Backend:   backend,
		Device:    cfg.Device,
		OutputDir: cfg.OutputDir,
		Logger:    &log,
	}), nil
}
