package security

import (
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/deckshot/deckshot/internal/config"
)

// Finding is one problem found by Audit.
type Finding struct {
	Subject string
	Message string
}

func (f Finding) String() string { return f.Subject + ": " + f.Message }

// Audit checks cfg, loaded from configPath, for setups that leak
// screenshots or secrets. The raw file is consulted to tell literal
// secrets apart from $(VAR) references.
func Audit(cfg *config.Config, configPath string) []Finding {
	var findings []Finding
	add := func(subject, format string, args ...any) {
		findings = append(findings, Finding{Subject: subject, Message: fmt.Sprintf(format, args...)})
	}

	if ep := Endpoint(cfg.Uploader); ep != "" {
		if u, err := url.Parse(ep); err == nil && u.Scheme == "http" {
			add("uploader."+cfg.Uploader.Kind, "endpoint %s is plain HTTP, screenshots travel unencrypted", u.Host)
		}
	}

	if raw, err := os.ReadFile(configPath); err == nil {
		if info, err := os.Stat(configPath); err == nil && info.Mode().Perm()&0o044 != 0 {
			for name, v := range secrets(cfg) {
				if v != "" && strings.Contains(string(raw), v) {
					add(name, "secret is written literally in %s, which is readable by other users; use $(VAR) or chmod 600", configPath)
				}
			}
		}
	}

	dir := cfg.CredentialsDir()
	if info, err := os.Stat(dir); err == nil && info.Mode().Perm()&0o077 != 0 {
		add(dir, "credentials directory has mode %04o, want 0700", info.Mode().Perm())
	}
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().Perm()&0o077 != 0 {
			add(p, "credential file has mode %04o, want 0600", info.Mode().Perm())
		}
		return nil
	})

	return findings
}

// secrets returns the config values that must not be shared, keyed by
// their YAML path.
func secrets(cfg *config.Config) map[string]string {
	u := cfg.Uploader
	return map[string]string{
		"uploader.s3.secret_access_key":   u.S3.SecretAccessKey,
		"uploader.onedrive.client_secret": u.OneDrive.ClientSecret,
		"uploader.imgur.client_secret":    u.Imgur.ClientSecret,
		"uploader.discord.webhook_url":    u.Discord.WebhookURL,
	}
}
