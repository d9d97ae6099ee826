package state

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"tbc/config"
	"tbc/document"
)

func TestContextWithEnv(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))
	if env.start.IsZero() {
		t.Error("Environment start time not set")
	}
	if env.Uptime() < 0 || env.Uptime() > time.Second {
		t.Errorf("unexpected uptime %v", env.Uptime())
	}
}

func TestEnvFromContext_Missing(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when env not in context")
		}
	}()
	EnvFromContext(context.Background())
}

func TestLocalEnv_RedirectStdLog(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.AddSync(&buf), zap.DebugLevel)
	env := &LocalEnv{Log: zap.New(core)}

	for i := range 2 {
		env.RedirectStdLog()
		if env.restoreStdLog == nil {
			t.Fatalf("iteration %d: restoreStdLog not set", i)
		}
		log.Print("from std log")
		env.RestoreStdLog()
		if env.restoreStdLog != nil {
			t.Fatalf("iteration %d: restore must be reset", i)
		}
	}
	if strings.Count(buf.String(), "from std log") != 2 {
		t.Errorf("std log was not redirected:\n%s", buf.String())
	}

	// no logger, no redirect
	(&LocalEnv{}).RedirectStdLog()
	(&LocalEnv{}).RestoreStdLog()
}

func TestLocalEnv_DocumentOverrides(t *testing.T) {
	env := newLocalEnv()
	env.Cfg = &config.Config{}
	env.Cfg.Document.Format = document.FormatXML
	env.Cfg.Document.Charset = "koi8-r"

	if env.Format() != document.FormatXML || env.Charset() != "koi8-r" {
		t.Errorf("configured settings expected, got %v %q", env.Format(), env.Charset())
	}
	if err := env.SetFormat("sgml"); err != nil {
		t.Fatalf("SetFormat failed: %v", err)
	}
	env.SetCharset("")
	if env.Format() != document.FormatSGML || env.Charset() != "" {
		t.Errorf("overrides expected, got %v %q", env.Format(), env.Charset())
	}
	if err := env.SetFormat("pdf"); err == nil {
		t.Error("expected error for unknown format")
	}
	if env.Format() != document.FormatSGML {
		t.Errorf("failed override must keep format, got %v", env.Format())
	}

	if opts := (&LocalEnv{}).StackOptions(); opts != nil {
		t.Errorf("no stack options expected without configuration, got %d", len(opts))
	}
}

func TestLocalEnv_LoadDocument(t *testing.T) {
	name := filepath.Join(t.TempDir(), "list.txt")
	if err := os.WriteFile(name, []byte("<ul><li>A</li><li>B</li></ul>"), 0644); err != nil {
		t.Fatalf("Failed to create input: %v", err)
	}

	env := newLocalEnv()
	env.Log = zaptest.NewLogger(t)
	env.Cfg = &config.Config{}
	env.Cfg.Engine.MaxDepth = 16
	env.Cfg.Engine.FreeNodes = true
	if err := env.SetFormat("sgml"); err != nil {
		t.Fatalf("SetFormat failed: %v", err)
	}

	for i := range 2 {
		doc, err := env.LoadDocument(name)
		if err != nil {
			t.Fatalf("LoadDocument failed: %v", err)
		}
		if len(doc.Children) != 1 || doc.Children[0].Name != "ul" || len(doc.Children[0].Children) != 2 {
			t.Fatalf("iteration %d: unexpected tree %+v", i, doc.Children)
		}
	}
	if env.Documents() != 2 {
		t.Errorf("expected 2 loaded documents, got %d", env.Documents())
	}
	if len(env.inputs) != 1 || !env.inputs[name] {
		t.Errorf("input must be stored once, got %v", env.inputs)
	}

	if _, err := env.LoadDocument(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing document")
	}
	if env.Documents() != 2 {
		t.Errorf("failed load must not be counted, got %d", env.Documents())
	}
}
