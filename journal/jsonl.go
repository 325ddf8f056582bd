package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// JSONL writes one zstd-compressed JSON-lines file per session:
// a session line, one line per tick, then an end line.
type JSONL struct {
	dir string

	mu    sync.Mutex
	files map[string]*sessionFile
}

type sessionFile struct {
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

type line struct {
	Type    string   `json:"type"`
	Session *Session `json:"session,omitempty"`
	Tick    *Tick    `json:"tick,omitempty"`
	End     *End     `json:"end,omitempty"`
}

func NewJSONL(dir string) *JSONL {
	return &JSONL{dir: dir, files: make(map[string]*sessionFile)}
}

// Path is where a session's log lives.
func (j *JSONL) Path(session string) string {
	return filepath.Join(j.dir, session+".jsonl.zst")
}

func (j *JSONL) StartSession(s Session) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.files[s.ID]; ok {
		return fmt.Errorf("session %s already open", s.ID)
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.Path(s.ID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	sf := &sessionFile{f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}
	j.files[s.ID] = sf
	return sf.write(line{Type: "session", Session: &s})
}

func (j *JSONL) RecordTick(t Tick) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	sf, ok := j.files[t.Session]
	if !ok {
		return fmt.Errorf("session %s not open", t.Session)
	}
	return sf.write(line{Type: "tick", Tick: &t})
}

func (j *JSONL) EndSession(e End) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	sf, ok := j.files[e.Session]
	if !ok {
		return fmt.Errorf("session %s not open", e.Session)
	}
	delete(j.files, e.Session)
	return errors.Join(sf.write(line{Type: "end", End: &e}), sf.close())
}

// Close finishes every session still open.
func (j *JSONL) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var errs []error
	for id, sf := range j.files {
		errs = append(errs, sf.close())
		delete(j.files, id)
	}
	return errors.Join(errs...)
}

func (sf *sessionFile) write(v line) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := sf.w.Write(b); err != nil {
		return err
	}
	return sf.w.WriteByte('\n')
}

func (sf *sessionFile) close() error {
	flushErr := sf.w.Flush()
	encErr := sf.enc.Close()
	fileErr := sf.f.Close()
	return errors.Join(flushErr, encErr, fileErr)
}
