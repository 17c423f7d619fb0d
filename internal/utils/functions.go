package utils

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		parts := strings.SplitN(header, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

// ParseCookieArgs turns "name=value" flag values into cookies; malformed
// entries are dropped.
func ParseCookieArgs(cookies []string) []*http.Cookie {
	var result []*http.Cookie
	for _, raw := range cookies {
		name, value, ok := strings.Cut(raw, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		result = append(result, &http.Cookie{Name: name, Value: strings.TrimSpace(value)})
	}
	return result
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// SanitizeFileName replaces characters that are invalid in file names on
// common platforms with "_".
func SanitizeFileName(name string) string {
	cleaned := unsafeFileChars.ReplaceAllString(name, "_")
	cleaned = strings.Trim(cleaned, " .")
	if cleaned == "" {
		return "_"
	}
	return cleaned
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// PartPath is the temp file for segment index of outputPath.
func PartPath(outputPath string, index int) string {
	return fmt.Sprintf("%s.part%d", outputPath, index)
}

// DirectPartPath is the temp file used by a whole-file download.
func DirectPartPath(outputPath string) string {
	return outputPath + ".part"
}

// AssemblyPath is the temp file the segments are concatenated into.
func AssemblyPath(outputPath string) string {
	return outputPath + ".assembling"
}

// MergeTempPath is the encoder's temp output. It keeps the extension so the
// container format is still inferred from the name.
func MergeTempPath(outputPath string) string {
	ext := filepath.Ext(outputPath)
	return strings.TrimSuffix(outputPath, ext) + ".merging" + ext
}

// SweepStaleParts removes part files in dir whose modification time is older
// than ttl and returns the removed paths. A missing dir is not an error.
func SweepStaleParts(dir string, ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-ttl)
	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !PartFileRegex.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		filePath := filepath.Join(dir, entry.Name())
		if err := os.Remove(filePath); err != nil {
			log.Warn().Str("op", "utils/functions").Err(err).Msgf("Could not remove stale part %s", filePath)
			continue
		}
		removed = append(removed, filePath)
	}
	log.Debug().Str("op", "utils/functions").Msgf("Swept %d stale part files from %s", len(removed), dir)
	return removed, nil
}
