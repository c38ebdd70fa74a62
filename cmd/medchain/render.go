package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/medchain/medchain/internal/model"
	"github.com/medchain/medchain/internal/service"
)

// renderContent dispatches on the classified kind. Text is printed inline;
// everything else is staged to a file for an external viewer. Spreadsheets
// are never rendered inline, only offered as a download.
func renderContent(rec model.RecordSummary, h *service.ContentHandle) {
	fmt.Printf("%s  %s  (%s, %d bytes)\n",
		rec.RecordType, rec.RecordedAtDisplay(), h.Content.DeclaredType, len(h.Content.Bytes))

	switch h.Content.Kind {
	case model.KindText:
		os.Stdout.Write(h.Content.Bytes)
		if n := len(h.Content.Bytes); n > 0 && h.Content.Bytes[n-1] != '\n' {
			fmt.Println()
		}
	case model.KindPDF, model.KindImage:
		fmt.Println("staged for viewing:", h.Path())
	case model.KindSpreadsheet:
		fmt.Println("spreadsheet available for download:", h.Path())
	default:
		fmt.Printf("unsupported content type %q; use -o to save the raw payload\n",
			h.Content.DeclaredType)
	}
}

func printTranscript(turns []model.Turn) {
	for _, t := range turns {
		marker := ""
		if t.Err {
			marker = " [error]"
		}
		fmt.Printf("%s%s: %s\n", t.Speaker, marker, t.Text)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
