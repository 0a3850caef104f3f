package openapi

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nimburion/providerdesk/pkg/sandbox"
)

func TestGenerateCommand_WritesYAML(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "nested", "openapi.yaml")
	var stdout bytes.Buffer

	cmd := NewCommand(CommandOptions{ServiceVersion: "1.2.3", Stdout: &stdout})
	cmd.SetArgs([]string{"generate", "--output", outputPath, "--scope", "provider"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute openapi generate: %v", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read generated spec: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "openapi: 3.0.3") {
		t.Fatalf("expected openapi version in generated file, got: %s", content)
	}
	if !strings.Contains(content, "/provider/rooms/{id}") {
		t.Fatalf("expected rooms item path in generated file, got: %s", content)
	}
	if !strings.Contains(stdout.String(), "OpenAPI spec generated at") {
		t.Fatalf("expected command output message, got: %q", stdout.String())
	}
}

func TestGenerateCommand_WritesJSON(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "openapi.json")

	cmd := NewCommand(CommandOptions{
		ServiceVersion: "0.1.0",
		Stdout:         &bytes.Buffer{},
		Resources: func() []sandbox.Resource {
			return []sandbox.Resource{{Name: "villas", Entity: "Villa"}}
		},
	})
	cmd.SetArgs([]string{"generate", "-o", outputPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute openapi generate: %v", err)
	}

	raw, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read generated spec: %v", err)
	}
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := doc.Paths["/{scope}/villas"]; !ok {
		t.Fatalf("paths = %v", doc.Paths)
	}
}

func TestGenerateCommand_RejectsUnknownExtension(t *testing.T) {
	cmd := NewCommand(CommandOptions{Stdout: &bytes.Buffer{}})
	cmd.SetArgs([]string{"generate", "-o", filepath.Join(t.TempDir(), "spec.txt")})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for .txt output")
	}
}
