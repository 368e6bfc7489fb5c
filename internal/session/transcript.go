// ABOUTME: Append-only JSONL transcript of prompts and completions across sessions
// ABOUTME: Each record carries a uuid, a session id, and a typed payload

package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RecordType identifies the type of transcript record.
type RecordType string

const (
	RecordSessionStart RecordType = "session_start"
	RecordPrompt       RecordType = "prompt"
	RecordCompletion   RecordType = "completion"
	RecordTitle        RecordType = "title"
	RecordSessionEnd   RecordType = "session_end"
)

// Record is the envelope for all JSONL entries.
type Record struct {
	Version int             `json:"v"`
	ID      string          `json:"id"`
	Type    RecordType      `json:"type"`
	TS      string          `json:"ts"`
	Session int             `json:"session"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// StartData holds session_start metadata.
type StartData struct {
	Mode        string `json:"mode"`
	Target      string `json:"target"`
	Instruction string `json:"instruction"`
	Model       string `json:"model"`
	Provider    string `json:"provider"`
}

// PromptData holds the full prompt sent to the back end.
type PromptData struct {
	Prompt string `json:"prompt"`
}

// CompletionData holds the text delivered by the back end.
type CompletionData struct {
	Completion string `json:"completion"`
}

// TitleData holds a generated title.
type TitleData struct {
	Title string `json:"title"`
}

// EndData holds the terminal status.
type EndData struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Log appends records to a transcript file. A nil *Log discards writes.
type Log struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenLog opens (creating if needed) the transcript at path.
func OpenLog(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating transcript dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	return &Log{path: path, file: f}, nil
}

// Path returns the transcript file path.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Write appends one record for session id.
func (l *Log) Write(recType RecordType, id int, data any) error {
	if l == nil {
		return nil
	}
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling record data: %w", err)
	}
	line, err := json.Marshal(Record{
		Version: 1,
		ID:      uuid.NewString(),
		Type:    recType,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Session: id,
		Data:    dataBytes,
	})
	if err != nil {
		return fmt.Errorf("marshaling record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

// Close closes the transcript file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// ReadRecords reads every record from a transcript. Malformed lines are
// skipped; a missing file yields no records.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening transcript: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 10*1024*1024) // 10MB max line
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("scanning transcript: %w", err)
	}
	return records, nil
}

// Decode unmarshals a record payload into v.
func (r Record) Decode(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decoding %s record: %w", r.Type, err)
	}
	return nil
}
