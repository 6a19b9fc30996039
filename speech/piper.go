package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dubber/logging"
)

// Piper synthesizes speech with the piper CLI.
type Piper struct {
	// Path is the piper executable (default "piper").
	Path string
	// ModelPath is the .onnx voice; its .onnx.json config must sit next to it.
	ModelPath string
	Timeout   time.Duration
	Logger    logging.Logger
}

// Synthesize writes text spoken by the voice to outPath as WAV.
func (p *Piper) Synthesize(ctx context.Context, text, outPath string) error {
	if p.ModelPath == "" {
		return fmt.Errorf("synthesize: model path is required")
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("synthesize: empty text")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	args := []string{
		"--model", p.ModelPath,
		"--config", p.ModelPath + ".json",
		"--output_file", outPath,
	}
	if err := run(ctx, p.Path, "piper", p.Timeout, []byte(text), args); err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	logging.OrNoOp(p.Logger).Debug("synthesized", "path", outPath, "chars", len(text))
	return nil
}
