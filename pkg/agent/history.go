package agent

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/deckbot-ai/deckbot/pkg/domain"
)

// HistoryFile is the per-presentation conversation log.
const HistoryFile = "chat_history.jsonl"

// Log is the durable conversation log: append-only, one JSON object per
// line. The write format is also the only supported resume format, so a
// session's history is reconstructible exactly from the file.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog creates a log backed by path.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the backing file path.
func (l *Log) Path() string { return l.path }

// Append writes one turn as a JSON line.
func (l *Log) Append(turn domain.Turn) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshaling turn: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending turn: %w", err)
	}
	return nil
}

// Load reads every turn in file order. Replay order equals file order.
// Malformed lines are skipped rather than failing the whole load, so one
// bad append cannot brick a session.
func (l *Log) Load() ([]domain.Turn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	var turns []domain.Turn
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var turn domain.Turn
		if err := json.Unmarshal(line, &turn); err != nil {
			continue
		}
		turns = append(turns, turn)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning history: %w", err)
	}
	return turns, nil
}
