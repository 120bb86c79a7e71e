// Package ixgest holds the shared plumbing of the ingest commands: progress
// emitters for the terminal, for JSON consumers and for the daemon log.
package ixgest

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/teranos/softwaremap/logger"
	"github.com/teranos/softwaremap/pulse"
)

var (
	_ pulse.ProgressEmitter = (*CLIEmitter)(nil)
	_ pulse.ProgressEmitter = (*JSONEmitter)(nil)
	_ pulse.ProgressEmitter = (*LogEmitter)(nil)
)

// ProgressEvent is one JSON progress line
type ProgressEvent struct {
	Type      string                 `json:"type"` // stage, progress, complete, error, info
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// CLIEmitter outputs pretty-printed progress to terminal using pterm
type CLIEmitter struct {
	verbosity int
}

// NewCLIEmitter creates a CLI progress emitter for terminal output
func NewCLIEmitter(verbosity int) *CLIEmitter {
	return &CLIEmitter{verbosity: verbosity}
}

func (e *CLIEmitter) EmitStage(stage string, message string) {
	pterm.Printf("%s %s: %s\n", pterm.LightCyan("»"), pterm.LightCyan(stage), message)
}

func (e *CLIEmitter) EmitProgress(count int, metadata map[string]interface{}) {
	itemType, ok := metadata["type"].(string)
	if !ok {
		itemType = "items"
	}
	pterm.Printf("  processed %s %s\n", pterm.Green(fmt.Sprintf("%d", count)), itemType)
}

func (e *CLIEmitter) EmitComplete(summary map[string]interface{}) {
	pterm.Success.Println("Processing complete")
	if e.verbosity < 1 {
		return
	}
	for _, key := range sortedKeys(summary) {
		pterm.Printf("  %s: %v\n", key, summary[key])
	}
}

func (e *CLIEmitter) EmitError(stage string, err error) {
	pterm.Error.Printf("Error in %s: %v\n", stage, err)
}

func (e *CLIEmitter) EmitInfo(message string) {
	if e.verbosity >= 1 {
		pterm.Info.Println(message)
	}
}

// JSONEmitter writes one ProgressEvent per line
type JSONEmitter struct {
	mu      sync.Mutex
	encoder *json.Encoder
	now     func() time.Time
}

// NewJSONEmitter creates a JSON progress emitter writing to w
func NewJSONEmitter(w io.Writer) *JSONEmitter {
	return &JSONEmitter{encoder: json.NewEncoder(w), now: time.Now}
}

func (e *JSONEmitter) emit(kind string, data map[string]interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	// A consumer that went away must not fail the batch
	_ = e.encoder.Encode(ProgressEvent{Type: kind, Timestamp: e.now(), Data: data})
}

func (e *JSONEmitter) EmitStage(stage string, message string) {
	e.emit("stage", map[string]interface{}{"stage": stage, "message": message})
}

func (e *JSONEmitter) EmitProgress(count int, metadata map[string]interface{}) {
	data := map[string]interface{}{"count": count}
	for k, v := range metadata {
		data[k] = v
	}
	e.emit("progress", data)
}

func (e *JSONEmitter) EmitComplete(summary map[string]interface{}) {
	e.emit("complete", summary)
}

func (e *JSONEmitter) EmitError(stage string, err error) {
	e.emit("error", map[string]interface{}{"stage": stage, "error": err.Error()})
}

func (e *JSONEmitter) EmitInfo(message string) {
	e.emit("info", map[string]interface{}{"message": message})
}

// LogEmitter forwards progress to a zap logger; used by the pulse daemon
type LogEmitter struct {
	log *zap.SugaredLogger
}

// NewLogEmitter creates an emitter logging through log
func NewLogEmitter(log *zap.SugaredLogger) *LogEmitter {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LogEmitter{log: log}
}

func (e *LogEmitter) EmitStage(stage string, message string) {
	logger.IxInfow(e.log, message, "stage", stage)
}

func (e *LogEmitter) EmitProgress(count int, metadata map[string]interface{}) {
	kv := []interface{}{logger.FieldCount, count}
	for _, k := range sortedKeys(metadata) {
		kv = append(kv, k, metadata[k])
	}
	e.log.Debugw("Progress", kv...)
}

func (e *LogEmitter) EmitComplete(summary map[string]interface{}) {
	kv := make([]interface{}, 0, 2*len(summary))
	for _, k := range sortedKeys(summary) {
		kv = append(kv, k, summary[k])
	}
	logger.IxInfow(e.log, "Processing complete", kv...)
}

func (e *LogEmitter) EmitError(stage string, err error) {
	e.log.Errorw("Processing failed", "stage", stage, logger.FieldError, err)
}

func (e *LogEmitter) EmitInfo(message string) {
	e.log.Infow(message)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
