package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const outputDirPrefix = "exported_sms_records_"

// AllocateOutputDir creates and returns a previously nonexistent directory
// named exported_sms_records_<N> under base, where N is one past the
// highest existing suffix (1 when none exist). Creation uses exclusive
// mkdir semantics, so two concurrent runs against the same base never
// share a directory; runs are never overwritten.
func AllocateOutputDir(base string) (string, error) {
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", fmt.Errorf("failed to create base directory %s: %w", base, err)
	}

	next := 1
	if entries, err := os.ReadDir(base); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			suffix, ok := strings.CutPrefix(entry.Name(), outputDirPrefix)
			if !ok {
				continue
			}
			n, err := strconv.Atoi(suffix)
			if err != nil || n < 1 {
				continue
			}
			if n >= next {
				next = n + 1
			}
		}
	}

	for {
		dir := filepath.Join(base, fmt.Sprintf("%s%d", outputDirPrefix, next))
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
		next++
	}
}
