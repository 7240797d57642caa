package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/deckshot/deckshot/internal/config"
	"github.com/deckshot/deckshot/internal/security"
)

// check prints the audit findings and the uploader certificate. It fails
// when the certificate cannot be trusted.
func check(ctx context.Context, configPath string, cfg *config.Config) error {
	findings := security.Audit(cfg, configPath)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Configuration")
	t.AppendHeader(table.Row{"Subject", "Finding"})
	for _, f := range findings {
		t.AppendRow(table.Row{f.Subject, f.Message})
	}
	if len(findings) == 0 {
		t.AppendRow(table.Row{configPath, "no problems found"})
	}
	t.Render()

	endpoint := security.Endpoint(cfg.Uploader)
	cs := security.Check(ctx, endpoint, nil)
	if cs == nil {
		fmt.Fprintf(os.Stdout, "uploader %q has no HTTPS endpoint to check\n", cfg.Uploader.Kind)
		return nil
	}

	ct := table.NewWriter()
	ct.SetOutputMirror(os.Stdout)
	ct.SetStyle(table.StyleLight)
	ct.SetTitle("Certificate")
	ct.AppendHeader(table.Row{"Endpoint", "Status", "Issuer", "Expires", "Days left"})
	row := table.Row{cs.Endpoint, cs.Status, cs.Issuer, "", ""}
	if !cs.NotAfter.IsZero() {
		row[3], row[4] = cs.NotAfter.Format("2006-01-02"), cs.DaysLeft
	}
	ct.AppendRow(row)
	ct.Render()

	switch cs.Status {
	case security.StatusUntrusted, security.StatusExpired, security.StatusUnreachable:
		return fmt.Errorf("certificate of %s is %s: %v", cs.Endpoint, cs.Status, cs.Err)
	}
	return nil
}
