package manifest

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	coreerrors "modgraph/internal/core/errors"
)

func writeManifest(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, DefaultFileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestProvider_Manifest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "sale", `
version = "17.0.1.2.0"
depends = ["base", "product", "base"]
`)
	writeManifest(t, root, "legacy", `
depends = ["base"]
installable = false
`)

	p, err := NewProvider(Options{Paths: []string{root}})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	m, err := p.Manifest(ctx, "sale")
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m == nil {
		t.Fatal("expected manifest for sale")
	}
	if m.Name != "sale" || m.Version != "17.0.1.2.0" || !m.Installable {
		t.Fatalf("unexpected manifest: %+v", m)
	}
	if !reflect.DeepEqual(m.Depends, []string{"base", "product"}) {
		t.Fatalf("expected deduplicated depends, got %v", m.Depends)
	}

	legacy, err := p.Manifest(ctx, "legacy")
	if err != nil {
		t.Fatal(err)
	}
	if legacy == nil || legacy.Installable {
		t.Fatalf("expected legacy to be not installable, got %+v", legacy)
	}

	missing, err := p.Manifest(ctx, "missing")
	if err != nil || missing != nil {
		t.Fatalf("expected nil manifest for missing module, got %+v, %v", missing, err)
	}
}

func TestProvider_FirstPathWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeManifest(t, first, "crm", `version = "2.0"`)
	writeManifest(t, second, "crm", `version = "1.0"`)
	writeManifest(t, second, "stock", `version = "1.0"`)

	p, err := NewProvider(Options{Paths: []string{first, second}})
	if err != nil {
		t.Fatal(err)
	}

	m, err := p.Manifest(context.Background(), "crm")
	if err != nil {
		t.Fatal(err)
	}
	if m.Version != "2.0" {
		t.Fatalf("expected version from first path, got %q", m.Version)
	}

	names, err := p.Names(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"crm", "stock"}) {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestProvider_ExcludeAndInvalidNames(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "website", `depends = ["base"]`)
	writeManifest(t, root, "legacy_pos", `depends = ["base"]`)

	p, err := NewProvider(Options{Paths: []string{root}, Exclude: []string{"legacy_*"}})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, name := range []string{"legacy_pos", "../website", "Website", ""} {
		m, err := p.Manifest(ctx, name)
		if err != nil || m != nil {
			t.Fatalf("expected %q to be reported as not found, got %+v, %v", name, m, err)
		}
	}

	names, err := p.Names(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"website"}) {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestProvider_AutoInstall(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "sale_crm", `
depends = ["sale", "crm"]
auto_install = true
`)
	writeManifest(t, root, "sale_stock", `
depends = ["sale", "stock", "base"]
auto_install = ["sale", "stock"]
`)
	writeManifest(t, root, "bad_auto", `
depends = ["sale"]
auto_install = ["crm"]
`)

	p, err := NewProvider(Options{Paths: []string{root}})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	m, err := p.Manifest(ctx, "sale_crm")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m.AutoInstall, []string{"sale", "crm"}) {
		t.Fatalf("expected every depend to trigger auto install, got %v", m.AutoInstall)
	}

	m, err = p.Manifest(ctx, "sale_stock")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m.AutoInstall, []string{"sale", "stock"}) {
		t.Fatalf("expected subset, got %v", m.AutoInstall)
	}

	_, err = p.Manifest(ctx, "bad_auto")
	if !coreerrors.IsCode(err, coreerrors.CodeValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProvider_DecodeError(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "broken", `depends = [`)

	p, err := NewProvider(Options{Paths: []string{root}})
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Manifest(context.Background(), "broken")
	if !coreerrors.IsCode(err, coreerrors.CodeValidationError) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestProvider_CacheAndInvalidate(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "crm", `version = "1.0"`)

	p, err := NewProvider(Options{Paths: []string{root}, CacheSize: 4})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if _, err := p.Manifest(ctx, "crm"); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, root, "crm", `version = "2.0"`)

	m, err := p.Manifest(ctx, "crm")
	if err != nil {
		t.Fatal(err)
	}
	if m.Version != "1.0" {
		t.Fatalf("expected cached version, got %q", m.Version)
	}

	p.Invalidate("crm")
	m, err = p.Manifest(ctx, "crm")
	if err != nil {
		t.Fatal(err)
	}
	if m.Version != "2.0" {
		t.Fatalf("expected reloaded version, got %q", m.Version)
	}

	m.Depends = append(m.Depends, "mutated")
	again, _ := p.Manifest(ctx, "crm")
	if len(again.Depends) != 0 {
		t.Fatalf("cached manifest must not be shared with callers, got %v", again.Depends)
	}
}

func TestProvider_ModuleForPath(t *testing.T) {
	root := t.TempDir()
	p, err := NewProvider(Options{Paths: []string{root}})
	if err != nil {
		t.Fatal(err)
	}

	name, ok := p.ModuleForPath(filepath.Join(root, "sale", "manifest.toml"))
	if !ok || name != "sale" {
		t.Fatalf("expected sale, got %q (ok=%v)", name, ok)
	}
	if _, ok := p.ModuleForPath(filepath.Join(t.TempDir(), "sale", "manifest.toml")); ok {
		t.Fatal("expected path outside addons paths to be rejected")
	}
}

func TestNewProvider_RequiresPaths(t *testing.T) {
	if _, err := NewProvider(Options{}); err == nil {
		t.Fatal("expected error without addons paths")
	}
	if _, err := NewProvider(Options{Paths: []string{" ", ""}}); err == nil {
		t.Fatal("expected error for blank addons paths")
	}
}
