package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"sonora/logger"
	"sonora/types"
)

// TranscodeEntry is one cached transcoded rendition.
type TranscodeEntry struct {
	Path      string
	CreatedAt time.Time
	Size      int64
	inUse     int
}

// transcodeCall tracks one in-flight transcode so concurrent requests for the
// same (song, quality) converge on a single job.
type transcodeCall struct {
	done chan struct{}
	path string
	err  error
}

// TranscodingService produces quality-reduced renditions on demand and caches
// them keyed by (song ID, quality). When ffmpeg is unavailable the caller
// falls back to the original file.
type TranscodingService struct {
	ffmpegPath string
	cacheDir   string
	maxSize    int64
	maxAge     time.Duration
	available  bool

	mu      sync.Mutex
	entries map[string]*TranscodeEntry
	pending map[string]*transcodeCall
}

// NewTranscodingService creates the service and probes for ffmpeg once.
func NewTranscodingService(ffmpegPath, cacheDir string, maxSize int64, maxAge time.Duration) *TranscodingService {
	available := false
	if ffmpegPath != "" {
		if _, err := exec.LookPath(ffmpegPath); err == nil {
			available = true
		} else {
			logger.Warn("ffmpeg not found, transcoding disabled",
				logger.String("path", ffmpegPath),
				logger.ErrorField(err))
		}
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		logger.Warn("transcode cache dir unavailable, transcoding disabled",
			logger.String("dir", cacheDir),
			logger.ErrorField(err))
		available = false
	}

	return &TranscodingService{
		ffmpegPath: ffmpegPath,
		cacheDir:   cacheDir,
		maxSize:    maxSize,
		maxAge:     maxAge,
		available:  available,
		entries:    make(map[string]*TranscodeEntry),
		pending:    make(map[string]*transcodeCall),
	}
}

// Available reports whether transcoding can run at all.
func (t *TranscodingService) Available() bool {
	return t.available
}

func cacheKey(songID string, preset types.QualityPreset) string {
	return songID + ":" + string(preset.Quality)
}

// transcodeArgs builds the ffmpeg argument list for a preset.
func transcodeArgs(srcPath string, preset types.QualityPreset, out string) []string {
	return []string{
		"-i", srcPath,
		"-vn",
		"-c:a", preset.Codec,
		"-b:a", preset.Bitrate,
		"-f", "mp3",
		"-y",
		out,
	}
}

// AcquireCached returns the path to a complete transcoded file for
// (songID, quality), transcoding on demand, with the entry's in-use count
// already incremented under the same lock that resolved it. Eviction cannot
// remove the file between resolution and serving; the caller releases the
// hold once the bytes are written. Concurrent callers for a key with no
// cached output share one underlying job.
func (t *TranscodingService) AcquireCached(songID, srcPath string, preset types.QualityPreset) (string, func(), error) {
	if !preset.RequiresTranscoding {
		return srcPath, func() {}, nil
	}

	key := cacheKey(songID, preset)

	for {
		t.mu.Lock()
		if entry, ok := t.entries[key]; ok {
			entry.inUse++
			path := entry.Path
			t.mu.Unlock()
			return path, t.releaseFunc(key), nil
		}
		if !t.available {
			t.mu.Unlock()
			return "", nil, fmt.Errorf("transcoding unavailable")
		}
		if call, ok := t.pending[key]; ok {
			t.mu.Unlock()
			<-call.done
			if call.err != nil {
				return "", nil, call.err
			}
			// Re-resolve under the lock; the entry could have been evicted
			// again in the meantime.
			continue
		}
		call := &transcodeCall{done: make(chan struct{})}
		t.pending[key] = call
		t.mu.Unlock()

		outPath := filepath.Join(t.cacheDir, fmt.Sprintf("%s_%s.mp3", songID, preset.Quality))
		call.path, call.err = t.runTranscode(srcPath, preset, outPath)

		t.mu.Lock()
		delete(t.pending, key)
		if call.err == nil {
			size := int64(0)
			if info, err := os.Stat(outPath); err == nil {
				size = info.Size()
			}
			t.entries[key] = &TranscodeEntry{
				Path:      outPath,
				CreatedAt: time.Now(),
				Size:      size,
				inUse:     1,
			}
		}
		t.mu.Unlock()
		close(call.done)

		if call.err != nil {
			return "", nil, call.err
		}
		return call.path, t.releaseFunc(key), nil
	}
}

// releaseFunc builds the release for one acquisition. Releasing twice is
// harmless.
func (t *TranscodingService) releaseFunc(key string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			if entry, ok := t.entries[key]; ok && entry.inUse > 0 {
				entry.inUse--
			}
		})
	}
}

// CachedTranscode resolves or produces the cached rendition without holding
// it. Callers that go on to stream the file use AcquireCached instead.
func (t *TranscodingService) CachedTranscode(songID, srcPath string, preset types.QualityPreset) (string, error) {
	path, release, err := t.AcquireCached(songID, srcPath, preset)
	if err != nil {
		return "", err
	}
	release()
	return path, nil
}

// runTranscode executes ffmpeg to completion.
func (t *TranscodingService) runTranscode(srcPath string, preset types.QualityPreset, outPath string) (string, error) {
	cmd := exec.Command(t.ffmpegPath, transcodeArgs(srcPath, preset, outPath)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("ffmpeg failed for %s: %w: %s", srcPath, err, string(out))
	}
	return outPath, nil
}

// HasCached reports whether a complete cached rendition exists for the key.
func (t *TranscodingService) HasCached(songID string, preset types.QualityPreset) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[cacheKey(songID, preset)]
	return ok
}

// InUse reports the in-use count for a key. Used by tests and diagnostics.
func (t *TranscodingService) InUse(songID string, preset types.QualityPreset) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.entries[cacheKey(songID, preset)]; ok {
		return entry.inUse
	}
	return 0
}

// StreamTranscode starts a live pipe transcode and returns the process stdout
// so playback can begin before the full output exists. Closing the reader
// stops the process.
func (t *TranscodingService) StreamTranscode(ctx context.Context, srcPath string, preset types.QualityPreset) (io.ReadCloser, error) {
	if !t.available {
		return nil, fmt.Errorf("transcoding unavailable")
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, transcodeArgs(srcPath, preset, "pipe:1")...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	return &processReader{reader: stdout, cmd: cmd}, nil
}

// processReader couples a pipe with its producing process so Close reaps it.
type processReader struct {
	reader io.ReadCloser
	cmd    *exec.Cmd
}

func (p *processReader) Read(b []byte) (int, error) {
	return p.reader.Read(b)
}

func (p *processReader) Close() error {
	p.reader.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	return p.cmd.Wait()
}

// TranscodeForDownload writes an uncached temporary rendition for a one-off
// download. The caller removes the file when the response finishes.
func (t *TranscodingService) TranscodeForDownload(songID, srcPath string, preset types.QualityPreset) (string, error) {
	if !preset.RequiresTranscoding {
		return srcPath, nil
	}
	if !t.available {
		return "", fmt.Errorf("transcoding unavailable")
	}

	tempDir, err := os.MkdirTemp("", "sonora-download-")
	if err != nil {
		return "", fmt.Errorf("temp dir: %w", err)
	}

	outPath := filepath.Join(tempDir, fmt.Sprintf("%s_%s.mp3", songID, preset.Quality))
	if _, err := t.runTranscode(srcPath, preset, outPath); err != nil {
		os.RemoveAll(tempDir)
		return "", err
	}
	return outPath, nil
}

// CleanupDownload removes a download temp file produced by
// TranscodeForDownload, tolerating the untranscoded-original case.
func (t *TranscodingService) CleanupDownload(path, srcPath string) {
	if path == "" || path == srcPath {
		return
	}
	if err := os.RemoveAll(filepath.Dir(path)); err != nil {
		logger.Warn("failed to remove download temp",
			logger.String("path", path),
			logger.ErrorField(err))
	}
}

// Evict removes cached entries past the age limit, then the oldest entries
// until the cache fits the size limit. Entries with a non-zero in-use count
// are never removed.
func (t *TranscodingService) Evict() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	type keyed struct {
		key   string
		entry *TranscodeEntry
	}
	var all []keyed
	var total int64
	for key, entry := range t.entries {
		all = append(all, keyed{key, entry})
		total += entry.Size
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].entry.CreatedAt.Before(all[j].entry.CreatedAt)
	})

	removed := 0
	now := time.Now()
	for _, item := range all {
		expired := t.maxAge > 0 && now.Sub(item.entry.CreatedAt) > t.maxAge
		oversize := t.maxSize > 0 && total > t.maxSize
		if !expired && !oversize {
			continue
		}
		if item.entry.inUse > 0 {
			continue
		}

		if err := os.Remove(item.entry.Path); err != nil && !os.IsNotExist(err) {
			logger.Warn("failed to remove cached transcode",
				logger.String("path", item.entry.Path),
				logger.ErrorField(err))
			continue
		}
		delete(t.entries, item.key)
		total -= item.entry.Size
		removed++
	}

	if removed > 0 {
		logger.Info("evicted cached transcodes", logger.Int("count", removed))
	}
	return removed
}

// CacheSize reports the number of cached entries. Used by tests.
func (t *TranscodingService) CacheSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// seedEntry inserts a cache entry directly; test hook for eviction behavior.
func (t *TranscodingService) seedEntry(songID string, preset types.QualityPreset, entry *TranscodeEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[cacheKey(songID, preset)] = entry
}
