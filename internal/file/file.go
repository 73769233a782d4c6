package file

import (
	"fmt"
	"os"
	"path"
	"strings"
)

// maxAttempts bounds the suffix search so a broken exists func cannot loop forever.
const maxAttempts = 1_000_000

// FirstFree returns name if exists reports it free, otherwise the first
// "stem(n).ext" with n counting from 1 that is free.
func FirstFree(name string, exists func(string) bool) (string, error) {
	if !exists(name) {
		return name, nil
	}

	dir, base := path.Split(name)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	for n := 1; n <= maxAttempts; n++ {
		candidate := fmt.Sprintf("%s%s(%d)%s", dir, stem, n, ext)
		if !exists(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no free name found for %q after %d attempts", name, maxAttempts)
}

// FirstMissingFile returns filename, or its first "(n)" variant, that does
// not exist on disk.
func FirstMissingFile(filename string) (string, error) {
	var statErr error
	free, err := FirstFree(filename, func(candidate string) bool {
		_, err := os.Stat(candidate)
		if err != nil && !os.IsNotExist(err) {
			// stop searching, the error is reported below
			statErr = fmt.Errorf("error checking %q: %w", candidate, err)
			return false
		}
		return err == nil
	})
	if statErr != nil {
		return "", statErr
	}

	return free, err
}
