package providers

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/wind-harvest/internal/grid"
)

// Grib2JSON converts GRIB2 files to JSON by running the grib2json tool.
type Grib2JSON struct {
	bin     string
	timeout time.Duration
	log     *zap.Logger
}

// NewGrib2JSON implements forecast.Converter with the executable at bin.
// A zero timeout disables the per-conversion deadline.
func NewGrib2JSON(bin string, timeout time.Duration, log *zap.Logger) *Grib2JSON {
	if log == nil {
		log = zap.NewNop()
	}
	return &Grib2JSON{bin: bin, timeout: timeout, log: log.Named("grib2json")}
}

func (g *Grib2JSON) args(rawPath, outPath string) []string {
	return []string{"--data", "--output", outPath, "--names", "--compact", rawPath}
}

func (g *Grib2JSON) Convert(ctx context.Context, s grid.Stamp, rawPath, outPath string) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.bin, g.args(rawPath, outPath)...)
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%s %s: %w", g.bin, s, err)
		}
		return fmt.Errorf("%s %s: %w: %s", g.bin, s, err, msg)
	}
	g.log.Debug("converted", zap.Stringer("stamp", s), zap.Duration("took", time.Since(start)))
	return nil
}
