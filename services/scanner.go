package services

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"sonora/logger"
	"sonora/types"
)

// audioExtensions is the allow-list of indexable file extensions.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".flac": true,
	".wav":  true,
	".aiff": true,
	".ogg":  true,
	".opus": true,
	".wma":  true,
	".aac":  true,
	".alac": true,
}

// progressBatchSize controls how often the progress callback fires during a
// walk.
const progressBatchSize = 100

// ScanProgress reports partial scan progress to a caller.
type ScanProgress struct {
	FilesFound int
	Done       bool
}

// FileScanner walks a directory tree collecting candidate audio files.
type FileScanner struct {
	// OnProgress, when set, is invoked every progressBatchSize discovered
	// files and once at completion.
	OnProgress func(ScanProgress)
}

// NewFileScanner creates a scanner with no progress callback.
func NewFileScanner() *FileScanner {
	return &FileScanner{}
}

// IsAudioFile reports whether the path's extension is on the allow-list.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// isHidden reports whether the final path segment is hidden.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// categorizeError maps an I/O error to a scan error kind.
func categorizeError(err error) types.ScanErrorKind {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return types.ScanErrorPermission
	case errors.Is(err, fs.ErrNotExist):
		return types.ScanErrorNotFound
	default:
		return types.ScanErrorUnknown
	}
}

// Scan walks rootPath recursively, classifying directories and files in a
// single pass. Hidden path segments are skipped, symbolic links are not
// followed, and I/O errors are collected rather than aborting the walk. A
// missing root yields an empty result carrying a single error entry.
func (s *FileScanner) Scan(rootPath string) types.ScanResult {
	result := types.ScanResult{}

	info, err := os.Stat(rootPath)
	if err != nil || !info.IsDir() {
		if err == nil {
			err = errors.New("not a directory")
		}
		logger.Warn("scan root unavailable",
			logger.String("root", rootPath),
			logger.ErrorField(err))
		result.Errors = append(result.Errors, types.ScanError{
			Path: rootPath,
			Kind: categorizeError(err),
			Err:  err.Error(),
		})
		result.RootUnavailable = true
		return result
	}

	walkErr := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			result.Errors = append(result.Errors, types.ScanError{
				Path: path,
				Kind: categorizeError(err),
				Err:  err.Error(),
			})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if isHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			result.DirCount++
			return nil
		}

		// WalkDir does not follow symlinks, but a symlink to an audio file
		// still shows up as a non-dir entry; skip those too.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if IsAudioFile(path) {
			result.Files = append(result.Files, path)
			if s.OnProgress != nil && len(result.Files)%progressBatchSize == 0 {
				s.OnProgress(ScanProgress{FilesFound: len(result.Files)})
			}
		}

		return nil
	})

	if walkErr != nil {
		result.Errors = append(result.Errors, types.ScanError{
			Path: rootPath,
			Kind: categorizeError(walkErr),
			Err:  walkErr.Error(),
		})
	}

	if s.OnProgress != nil {
		s.OnProgress(ScanProgress{FilesFound: len(result.Files), Done: true})
	}

	return result
}
