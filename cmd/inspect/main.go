package main

import (
	"chat-signal/repositories"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/badger"`
	// INSPECT_PREFIX restricts the scan, e.g. "call:" or "msg:{conversation_id}:"
	Prefix string `envconfig:"INSPECT_PREFIX"`
	// INSPECT_COLOURS highlights record kinds in the table
	Colours bool `envconfig:"INSPECT_COLOURS" default:"true"`
}

var kindStyles = map[string]color.Style{
	repositories.KindMessage:      color.New(color.FgGreen),
	repositories.KindConversation: color.New(color.FgCyan),
	repositories.KindContact:      color.New(color.FgYellow),
	repositories.KindCall:         color.New(color.FgMagenta),
	repositories.KindUnknown:      color.New(color.FgRed),
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal("Error while reading config: ", err)
	}
	dbPath := flag.String("db", cfg.BadgerFilepath, "Path to badger DB")
	prefix := flag.String("prefix", cfg.Prefix, "Prefix to scan (empty scans everything)")
	withIndex := flag.Bool("index", false, "Show secondary index and sequence keys")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Owner", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	counts := map[string]int{}
	err = repositories.ScanRecords(db, *prefix, func(key string, view repositories.RecordView, err error) {
		if err != nil {
			fmt.Printf("Error decoding key %s: %v\n", key, err)
			return
		}
		if !*withIndex && (view.Kind == repositories.KindIndex || view.Kind == repositories.KindSequence) {
			return
		}
		counts[view.Kind]++

		timestamp := ""
		if !view.At.IsZero() {
			timestamp = view.At.Format("2006-01-02 15:04:05")
		}
		kind := view.Kind
		if style, ok := kindStyles[kind]; ok && cfg.Colours {
			kind = style.Render(kind)
		}
		table.Append([]string{key, kind, timestamp, view.Owner, view.Detail})
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Println(summary(counts))
}

func summary(counts map[string]int) string {
	if len(counts) == 0 {
		return "No record found"
	}
	parts := make([]string, 0, len(counts))
	for _, kind := range []string{
		repositories.KindMessage, repositories.KindConversation, repositories.KindContact,
		repositories.KindCall, repositories.KindIndex, repositories.KindSequence, repositories.KindUnknown,
	} {
		if n := counts[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", strings.ToLower(kind), n))
		}
	}
	return strings.Join(parts, " ")
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		// A crashed server leaves a vlog that needs truncation, which read-only mode refuses.
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).
				WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			_ = db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
