package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CookieFile holds the session cookie of one account as plain text.
type CookieFile string

func CookieFileFrom(dir, account string) CookieFile {
	return CookieFile(filepath.Join(dir, account+".conf"))
}

// Read returns os.ErrNotExist when the file is missing.
func (f CookieFile) Read() (string, error) {
	b, err := os.ReadFile(f.Path())
	if nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return "", os.ErrNotExist
		}

		return "", fmt.Errorf("failed to read cookie file: %v", err)
	}

	return strings.TrimSpace(string(b)), nil
}

func (f CookieFile) Write(cookie string) (err error) {
	if err := os.MkdirAll(filepath.Dir(f.Path()), 0o0700); nil != err {
		return fmt.Errorf("failed to create cookie file directory: %v", err)
	}

	file, err := os.OpenFile(f.Path(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_SYNC, 0o0600)
	if nil != err {
		return fmt.Errorf("failed to open cookie file: %v", err)
	}
	defer func() {
		if closeErr := file.Close(); nil != closeErr {
			err = errors.Join(err, fmt.Errorf("failed to close cookie file: %v", closeErr))
		}
	}()

	if _, err := file.WriteString(cookie); nil != err {
		return fmt.Errorf("failed to write cookie file: %v", err)
	}

	return nil
}

func (f CookieFile) Path() string {
	return string(f)
}
