// Package state defines shared program state.
package state

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"tbc/archive"
	"tbc/config"
	"tbc/document"
	"tbc/dom"
	"tbc/dom/sgml"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place: configuration,
// debug report, logger and document settings given on command line.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	format     document.Format
	formatSet  bool
	charset    string
	charsetSet bool

	// inputs already stored in the report
	inputs    map[string]bool
	documents int

	start         time.Time
	restoreStdLog func()
}

func newLocalEnv() *LocalEnv {
	return &LocalEnv{start: time.Now(), inputs: make(map[string]bool)}
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

// SetFormat overrides configured document format.
func (e *LocalEnv) SetFormat(name string) error {
	f, err := document.ParseFormat(name)
	if err != nil {
		return err
	}
	e.format, e.formatSet = f, true
	return nil
}

// SetCharset overrides configured input encoding, empty label requests
// detection.
func (e *LocalEnv) SetCharset(label string) {
	e.charset, e.charsetSet = label, true
}

// Format returns document format in effect.
func (e *LocalEnv) Format() document.Format {
	if e.formatSet || e.Cfg == nil {
		return e.format
	}
	return e.Cfg.Document.Format
}

// Charset returns input encoding label in effect.
func (e *LocalEnv) Charset() string {
	if e.charsetSet || e.Cfg == nil {
		return e.charset
	}
	return e.Cfg.Document.Charset
}

// StackOptions returns document stack options for configured engine.
func (e *LocalEnv) StackOptions() []dom.Option {
	if e.Cfg == nil {
		return nil
	}
	return e.Cfg.Engine.StackOptions()
}

// StoreInput puts input file into debug report once, container entries are
// stored with the whole container.
func (e *LocalEnv) StoreInput(path string) {
	if container, _, ok := archive.Split(path); ok {
		path = container
	}
	if e.inputs == nil {
		e.inputs = make(map[string]bool)
	}
	if e.inputs[path] {
		return
	}
	e.inputs[path] = true
	e.Rpt.Store("input/"+filepath.Base(path), path)
}

// LoadDocument builds tree for the document at path using format and
// charset in effect.
func (e *LocalEnv) LoadDocument(path string) (*dom.Node, error) {
	e.StoreInput(path)
	doc, err := document.Load(path, e.Format(), e.Charset(), e.Log, sgml.WithStackOptions(e.StackOptions()...))
	if err != nil {
		return nil, err
	}
	e.documents++
	return doc, nil
}

// Documents returns number of documents loaded so far.
func (e *LocalEnv) Documents() int {
	return e.documents
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
		e.restoreStdLog = nil
	}
}
