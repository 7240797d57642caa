package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deckshot/deckshot/internal/config"
)

func TestAudit_Clean(t *testing.T) {
	cfg, path := setup(t, "https://s3.example.com", "$(S3_SECRET)", 0o600)
	if got := Audit(cfg, path); len(got) != 0 {
		t.Errorf("unexpected findings: %v", got)
	}
}

func TestAudit_PlainHTTPEndpoint(t *testing.T) {
	cfg, path := setup(t, "http://minio.local:9000", "$(S3_SECRET)", 0o600)
	expectFinding(t, Audit(cfg, path), "uploader.s3", "plain HTTP")
}

func TestAudit_LiteralSecretInReadableFile(t *testing.T) {
	cfg, path := setup(t, "https://s3.example.com", "hunter2", 0o644)
	expectFinding(t, Audit(cfg, path), "uploader.s3.secret_access_key", "literally")
}

func TestAudit_LiteralSecretInPrivateFile(t *testing.T) {
	cfg, path := setup(t, "https://s3.example.com", "hunter2", 0o600)
	if got := Audit(cfg, path); len(got) != 0 {
		t.Errorf("unexpected findings: %v", got)
	}
}

func TestAudit_LooseCredentialPermissions(t *testing.T) {
	cfg, path := setup(t, "https://s3.example.com", "$(S3_SECRET)", 0o600)

	dir := cfg.CredentialsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	tokenFile := filepath.Join(dir, "dropbox-token")
	if err := os.WriteFile(tokenFile, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(tokenFile, 0o644); err != nil {
		t.Fatal(err)
	}

	findings := Audit(cfg, path)
	expectFinding(t, findings, dir, "0755")
	expectFinding(t, findings, tokenFile, "0644")
}

// setup writes an S3 config to disk with the given mode and loads it.
func setup(t *testing.T, endpoint, secret string, mode os.FileMode) (*config.Config, string) {
	t.Helper()
	t.Setenv("S3_SECRET", "from-env")

	root := t.TempDir()
	path := filepath.Join(root, config.DefaultFileName)
	yaml := "deckshot_path: " + root + "\n" +
		"uploader:\n  kind: s3\n  s3:\n" +
		"    endpoint: \"" + endpoint + "\"\n" +
		"    access_key_id: AKIA\n" +
		"    secret_access_key: \"" + secret + "\"\n" +
		"    bucket: screenshots\n"
	if err := os.WriteFile(path, []byte(yaml), mode); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return cfg, path
}

func expectFinding(t *testing.T, findings []Finding, subject, fragment string) {
	t.Helper()
	for _, f := range findings {
		if f.Subject == subject && strings.Contains(f.Message, fragment) {
			return
		}
	}
	t.Errorf("no finding for %s mentioning %q in %v", subject, fragment, findings)
}
