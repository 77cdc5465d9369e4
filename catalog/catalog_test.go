package catalog

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"ember/model"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

const sampleCatalog = `
[[models]]
id = "llama3.2:3b"
backend = "session"
context_length = 8192
system_prompt = "You are concise."
source = "/models/llama3.2"

[[models]]
id = "qwen2.5-1.5b"
backend = "container"
context_length = 4096
source = "/models/qwen2.5.gguf"
`

func TestLoad(t *testing.T) {
	cat, err := Load(writeCatalog(t, sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}

	desc, ok := cat.Descriptor("llama3.2:3b")
	if !ok {
		t.Fatal("expected llama3.2:3b in the catalog")
	}
	want := model.ModelDescriptor{
		ID:            "llama3.2:3b",
		Kind:          model.BackendKindSession,
		ContextLength: 8192,
		SystemPrompt:  "You are concise.",
		Source:        "/models/llama3.2",
	}
	if desc != want {
		t.Errorf("descriptor = %+v, want %+v", desc, want)
	}

	desc, ok = cat.Descriptor("qwen2.5-1.5b")
	if !ok || desc.Kind != model.BackendKindContainer {
		t.Errorf("qwen descriptor = %+v ok=%v", desc, ok)
	}

	if _, ok := cat.Descriptor("gpt-4"); ok {
		t.Error("unknown model must not resolve")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeCatalog(t, `
[[models]]
id = "cloudy"
backend = "cloud"
context_length = 128000
source = "https://example.com"
`)
	if _, err := Load(path); err == nil {
		t.Error("expected unknown backend kinds to be rejected at parse time")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected an error for a missing catalog")
	}
}

func TestContextLength(t *testing.T) {
	cat, err := Load(writeCatalog(t, sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}

	if n, ok := cat.ContextLength("llama3.2:3b"); !ok || n != 8192 {
		t.Errorf("ContextLength = %d %v", n, ok)
	}
	if _, ok := cat.ContextLength("gpt-4"); ok {
		t.Error("unknown model must report no budget")
	}
}

func TestIDs(t *testing.T) {
	cat, err := Load(writeCatalog(t, sampleCatalog))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"llama3.2:3b", "qwen2.5-1.5b"}
	if got := cat.IDs(); !reflect.DeepEqual(got, want) {
		t.Errorf("IDs() = %v, want %v", got, want)
	}
}

func TestCreateDefaultCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.toml")
	if err := CreateDefaultCatalog(path); err != nil {
		t.Fatal(err)
	}

	// The template must itself be loadable.
	cat, err := Load(path)
	if err != nil {
		t.Fatalf("default catalog does not parse: %v", err)
	}
	if _, ok := cat.Descriptor("llama3.2:3b"); !ok {
		t.Error("default catalog is missing the sample model")
	}

	// Never clobber an existing catalog.
	custom := []byte("[[models]]\nid = \"mine\"\nbackend = \"session\"\nsource = \"/m\"\n")
	if err := os.WriteFile(path, custom, 0600); err != nil {
		t.Fatal(err)
	}
	if err := CreateDefaultCatalog(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(custom) {
		t.Error("existing catalog was overwritten")
	}
}
