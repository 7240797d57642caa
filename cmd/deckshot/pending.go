package main

import (
	"context"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/deckshot/deckshot/internal/config"
	"github.com/deckshot/deckshot/internal/screenshot"
)

// pending prints the retry queue in delivery order.
func pending(ctx context.Context, cfg *config.Config) error {
	q, err := openQueue(cfg)
	if err != nil {
		return err
	}
	defer q.Close()

	entries, err := q.List(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "App ID", "Path"})
	for i, e := range entries {
		t.AppendRow(table.Row{i + 1, screenshot.New(e).AppID, e})
	}
	t.AppendFooter(table.Row{"", "Total", len(entries)})
	t.Render()
	return nil
}
