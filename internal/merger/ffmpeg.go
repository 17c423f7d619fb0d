package merger

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// EnsureFFmpeg resolves the encoder executable: an explicit path first, then
// PATH, then a binary shipped next to this executable.
func EnsureFFmpeg(path string) (string, error) {
	if path != "" {
		resolved, err := exec.LookPath(path)
		if err != nil {
			return "", fmt.Errorf("ffmpeg not usable at %s: %w", path, err)
		}
		return resolved, nil
	}
	if resolved, err := exec.LookPath("ffmpeg"); err == nil {
		return resolved, nil
	}
	execPath, err := os.Executable()
	if err == nil {
		ffmpegPath := filepath.Join(filepath.Dir(execPath), "ffmpeg")
		if runtime.GOOS == "windows" {
			ffmpegPath += ".exe"
		}
		if _, err := os.Stat(ffmpegPath); err == nil {
			return ffmpegPath, nil
		}
	}
	return "", fmt.Errorf("ffmpeg not found in PATH, please install manually")
}

// BuildArgs returns the encoder arguments that stream-copy the first video
// stream of video and the first audio stream of audio into output,
// overwriting it.
func BuildArgs(video, audio, output string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", video,
		"-i", audio,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "copy",
		"-y",
		output,
	}
}
