package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// DecodeToWAV converts a compressed audio file to mono 16kHz PCM WAV via
// ffmpeg and returns the output path. The caller owns both files.
func DecodeToWAV(ctx context.Context, srcPath, outDir string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	out := filepath.Join(outDir, base+"_16k.wav")

	// ffmpeg -y -i input -ac 1 -ar 16000 -f wav output
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y", "-i", srcPath,
		"-ac", "1", "-ar", "16000",
		"-f", "wav",
		out,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &DecodeError{Reason: fmt.Sprintf("ffmpeg failed: %v: %s", err, lastLine(stderr.String()))}
	}
	return out, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
