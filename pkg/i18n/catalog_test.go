package i18n

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := Default()

	en := catalog.ForLocale("en-US")
	if got := en.T(CodeCreated, Params{"entity": "Accommodation"}); got != "Accommodation created." {
		t.Errorf("en created = %q", got)
	}
	it := catalog.ForLocale("it_IT")
	if got := it.T(CodeDeleted, "entity", "Evento", "id", 7); got != "Evento 7 eliminato." {
		t.Errorf("it deleted = %q", got)
	}
	fr := catalog.ForLocale("fr")
	if got := fr.T(CodeListSummary, Params{"count": 3}); got != "3 results" {
		t.Errorf("fallback to en = %q", got)
	}
	if got := en.T("unknown.code"); got != "unknown.code" {
		t.Errorf("unknown code = %q", got)
	}
}

func TestLoadCatalogFS(t *testing.T) {
	fsys := fstest.MapFS{
		"msgs/en.json":  {Data: []byte(`{"greeting":{"hello":"Hello {{name}}"}}`)},
		"msgs/de.yml":   {Data: []byte("greeting:\n  hello: Hallo {{name}}\n")},
		"msgs/notes.md": {Data: []byte("ignored")},
	}
	catalog, err := LoadCatalogFS(fsys, "msgs", "en", "base")
	if err != nil {
		t.Fatalf("LoadCatalogFS() error = %v", err)
	}
	if got := catalog.ForLocale("de-AT").T("greeting.hello", "name", "Anna"); got != "Hallo Anna" {
		t.Errorf("de-AT = %q", got)
	}
	if got := catalog.ForLocale("en").T("greeting.hello", "name", "Ann"); got != "Hello Ann" {
		t.Errorf("en = %q", got)
	}

	bad := fstest.MapFS{"msgs/en.json": {Data: []byte(`{`)}}
	if _, err := LoadCatalogFS(bad, "msgs", "en", "base"); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoadCatalogDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "en.yaml"), []byte("a: b\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	catalog, err := LoadCatalogDir(dir, "en", "")
	if err != nil {
		t.Fatalf("LoadCatalogDir() error = %v", err)
	}
	if got := catalog.ForLocale("en").T("a"); got != "b" {
		t.Errorf("T(a) = %q", got)
	}
	if _, err := LoadCatalogDir(filepath.Join(dir, "missing"), "en", ""); err == nil {
		t.Error("expected error for missing dir")
	}
}

func TestAppError(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewError(CodeTransport, nil, cause).WithMessage("network down").WithHTTPStatus(0)

	if !errors.Is(err, cause) {
		t.Error("AppError should unwrap to its cause")
	}
	if err.Error() != "network down: dial tcp: refused" {
		t.Errorf("Error() = %q", err.Error())
	}

	tr := Default().ForLocale("en")
	if got := err.Localize(tr); got != "Could not reach the server. Check your connection and try again." {
		t.Errorf("Localize() = %q", got)
	}

	custom := NewError("error.unmapped", nil, nil).WithMessage("Something odd happened")
	if got := custom.Localize(tr); got != "Something odd happened" {
		t.Errorf("fallback Localize() = %q", got)
	}

	msg := NewError(CodeNotFound, Params{"entity": "Booking", "id": "12"}, nil).Message()
	if got := msg.Localize(tr); got != "Booking 12 no longer exists." {
		t.Errorf("Message().Localize() = %q", got)
	}
	if got := CanonicalParams(msg.Params); len(got) != 2 || got[0] != "entity" || got[1] != "id" {
		t.Errorf("CanonicalParams() = %v", got)
	}
}
