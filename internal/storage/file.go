package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"contextkeeper/internal/config"
	"contextkeeper/internal/editlog"
)

// HistoryFileName is the history file inside a task directory.
const HistoryFileName = "context_history.json"

const compressedSuffix = ".zst"

// zstd encoders and decoders are safe for concurrent use and reused across calls.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("storage: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("storage: zstd decoder initialization failed: " + err.Error())
	}
}

// FileStore keeps each task's history as a file in the task directory; the
// task key is the directory path.
type FileStore struct {
	compress bool
}

// NewFileStore creates a FileStore. With compress set, history is written
// zstd-compressed as context_history.json.zst.
func NewFileStore(compress bool) *FileStore {
	return &FileStore{compress: compress}
}

// Path returns the file Save writes for the task directory.
func (s *FileStore) Path(taskDir string) string {
	p := filepath.Join(taskDir, HistoryFileName)
	if s.compress {
		p += compressedSuffix
	}
	return p
}

// Load reads the task's history. The compressed file wins when both exist,
// so switching compression on keeps reading older plain files.
func (s *FileStore) Load(taskDir string) (*editlog.Log, error) {
	dir, err := expandTaskDir(taskDir)
	if err != nil {
		return nil, err
	}

	plain := filepath.Join(dir, HistoryFileName)
	candidates := []string{plain + compressedSuffix, plain}
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		if filepath.Ext(p) == compressedSuffix {
			data, err = zstdDecoder.DecodeAll(data, nil)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrCorruptHistory, p, err)
			}
		}
		return decodeLog(p, data)
	}
	return editlog.New(), nil
}

// Save writes the task's history through a temporary file and a rename.
func (s *FileStore) Save(taskDir string, log *editlog.Log) error {
	dir, err := expandTaskDir(taskDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create task directory: %w", err)
	}

	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if s.compress {
		data = zstdEncoder.EncodeAll(data, nil)
	}

	target := s.Path(dir)
	tmp, err := os.CreateTemp(dir, HistoryFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}

	// Drop the other encoding so Load never picks up a stale copy.
	stale := filepath.Join(dir, HistoryFileName)
	if !s.compress {
		stale += compressedSuffix
	}
	if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale history: %w", err)
	}
	return nil
}

func expandTaskDir(taskDir string) (string, error) {
	if taskDir == "" {
		return "", ErrEmptyTaskKey
	}
	return config.ExpandPath(taskDir)
}

func decodeLog(source string, data []byte) (*editlog.Log, error) {
	log := editlog.New()
	if err := json.Unmarshal(data, log); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptHistory, source, err)
	}
	return log, nil
}
