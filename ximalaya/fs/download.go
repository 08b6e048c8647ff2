package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const partSuffix = ".part"

var invalidNameChars = strings.NewReplacer(
	"/", " ",
	"\\", " ",
	":", " ",
	"*", " ",
	"?", " ",
	"\"", " ",
	"<", " ",
	">", " ",
	"|", " ",
)

// SanitizeName replaces characters that are not allowed in file names with
// spaces.
func SanitizeName(name string) string {
	return invalidNameChars.Replace(name)
}

type DownloadDir string

func DownloadDirFrom(d string) DownloadDir {
	return DownloadDir(d)
}

func (dir DownloadDir) Album(name string) Album {
	return Album{DirPath: filepath.Join(string(dir), SanitizeName(name))}
}

type Album struct {
	DirPath string
}

// Ensure creates the album directory with its parents if missing.
func (a Album) Ensure() error {
	if err := os.MkdirAll(a.DirPath, 0o0755); nil != err {
		return fmt.Errorf("failed to create album directory: %v", err)
	}

	return nil
}

func (a Album) Track(name, ext string) Track {
	return Track{Path: filepath.Join(a.DirPath, SanitizeName(name)+"."+ext)}
}

type Track struct {
	Path string
}

func (t Track) PartPath() string {
	return t.Path + partSuffix
}

func (t Track) Exists() (bool, error) {
	return fileExists(t.Path)
}

// Commit moves the fully written part file to its final path.
func (t Track) Commit() error {
	if err := os.Rename(t.PartPath(), t.Path); nil != err {
		return fmt.Errorf("failed to move part file to track file: %v", err)
	}

	return nil
}

// RemovePartial deletes the part file of a failed attempt, if any.
func (t Track) RemovePartial() error {
	if err := os.Remove(t.PartPath()); nil != err && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove track part file: %v", err)
	}

	return nil
}

func fileExists(path string) (bool, error) {
	if _, err := os.Stat(path); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to stat file: %v", err)
	}

	return true, nil
}
