package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mototracker/internal"
	"mototracker/internal/config"
	"mototracker/internal/connectors"
	"mototracker/internal/listener"
	"mototracker/internal/logging"
	"mototracker/internal/pipeline"
	"mototracker/internal/portal"
	"mototracker/internal/storage"
	"mototracker/internal/tracker"
	"mototracker/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "run":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file path, - for stdin")
		inType := fs.String("type", "auto", "csv|xlsx|html|pdf|eml")
		output := fs.String("output", pipeline.DefaultCSVName, "output csv path")
		xlsxOut := fs.String("xlsx", "", "optional xlsx path")
		preview := fs.Bool("preview", false, "print the tracker")
		previewCols := fs.Int("preview-cols", 8, "most recent columns to preview, 0 for all")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}

		start := time.Now()
		rows, err := pipeline.ExtractRowsFromInput(*inType, *input)
		must(err)
		res := buildAndReport(db, "cli:"+*input, rows, pipeline.Outputs{CSVPath: *output, XLSXPath: *xlsxOut}, start, *preview, *previewCols)
		fmt.Printf("run done %s output=%s\n", pipeline.SummaryLine(res), *output)
	case "portal:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		from := fs.String("from", "", "first visit date dd/mm/yyyy (default: first of the month the last pull ended in)")
		to := fs.String("to", "", "last visit date dd/mm/yyyy (default: today)")
		output := fs.String("output", pipeline.DefaultCSVName, "output csv path")
		xlsxOut := fs.String("xlsx", "", "optional xlsx path")
		preview := fs.Bool("preview", false, "print the tracker")
		previewCols := fs.Int("preview-cols", 8, "most recent columns to preview, 0 for all")
		_ = fs.Parse(os.Args[2:])

		svc := portal.NewExportService(db, portal.NewClient(cfg))
		fromDate, toDate := time.Time{}, time.Now()
		if strings.TrimSpace(*from) != "" {
			fromDate = mustDate("--from", *from)
		} else {
			def, ok, err := svc.DefaultFrom()
			must(err)
			if !ok {
				must(fmt.Errorf("--from is required before the first pull"))
			}
			fromDate = def
		}
		if strings.TrimSpace(*to) != "" {
			toDate = mustDate("--to", *to)
		}
		if toDate.Before(fromDate) {
			must(fmt.Errorf("--to %s is before --from %s", util.FormatDayFirst(toDate), util.FormatDayFirst(fromDate)))
		}

		start := time.Now()
		rows, err := svc.Pull(context.Background(), fromDate, toDate)
		must(err)
		res := buildAndReport(db, "portal", rows, pipeline.Outputs{CSVPath: *output, XLSXPath: *xlsxOut}, start, *preview, *previewCols)
		fmt.Printf("portal fetch done %s output=%s\n", pipeline.SummaryLine(res), *output)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "imap", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := listener.MakeConnector(cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, conn)
		result, err := fetch.FetchAndStore(*label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d new=%d duplicates=%d\n", *provider, result.Fetched, result.Stored, result.New, result.Duplicates)
	case "mail:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "imap", "gmail|imap")
		messageID := fs.String("messageId", "", "specific message-id")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(os.Args[2:])
		processor := pipeline.NewProcessingService(db, cfg)
		if strings.TrimSpace(*messageID) != "" {
			res, err := processor.ProcessByProviderMessageID(*provider, *messageID)
			must(err)
			fmt.Printf("processed email id=%d status=%s rows=%d output=%s\n", res.EmailID, res.Status, res.Rows, res.Output)
			return
		}
		results, err := processor.ProcessPending(*batch, *provider)
		must(err)
		exported, failed := 0, 0
		for _, r := range results {
			switch r.Status {
			case pipeline.StatusExported:
				exported++
			case pipeline.StatusFailed:
				failed++
				fmt.Printf("failed email id=%d: %v\n", r.EmailID, r.Err)
			}
		}
		fmt.Printf("processed pending emails=%d exported=%d failed=%d\n", len(results), exported, failed)
	case "mail:listen":
		s := listener.NewService(db, cfg)
		must(s.Run(context.Background()))
	case "runs:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "how many runs")
		_ = fs.Parse(os.Args[2:])
		counts, err := db.CountEmailsByStatus()
		must(err)
		statuses := make([]string, 0, len(counts))
		for status, n := range counts {
			statuses = append(statuses, fmt.Sprintf("%s=%d", status, n))
		}
		sort.Strings(statuses)
		fmt.Printf("emails: %s\n", strings.Join(statuses, " "))

		runs, err := db.ListRuns(*limit)
		must(err)
		for _, r := range runs {
			fmt.Printf("%d\t%s\t%s\tvalid=%d filled=%d na=%d\t%s\t%s\n",
				r.ID, r.CreatedAt, r.Origin, r.Counts["valid"], r.Counts["filled"], r.Counts["sentinel"], r.Output, r.TraceID)
		}
	case "reimport":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", pipeline.DefaultCSVName, "tracker csv path")
		previewCols := fs.Int("preview-cols", 8, "most recent columns to preview, 0 for all")
		_ = fs.Parse(os.Args[2:])
		f, err := os.Open(*input)
		must(err)
		defer f.Close()
		table, err := pipeline.ReadTableCSV(f, time.Now())
		must(err)
		pipeline.RenderPreview(os.Stdout, table, *previewCols)
		fmt.Printf("reimport done sites=%d columns=%d\n", len(table.Sites()), len(table.Columns()))
	default:
		usage()
		os.Exit(1)
	}
}

// buildAndReport exits with status 2 when the input held no valid rows.
func buildAndReport(db *storage.DB, origin string, rows []internal.VisitRow, out pipeline.Outputs, start time.Time, preview bool, previewCols int) tracker.Result {
	res, err := pipeline.BuildAndExport(rows, time.Now, out)
	must(err)

	run := internal.RunRow{
		TraceID: uuid.NewString(),
		Origin:  origin,
		Timings: map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		Counts:  pipeline.StatsCounts(res.Stats),
	}
	if !res.Empty() {
		run.Output = out.CSVPath
	}
	if err := db.InsertRun(run); err != nil {
		fmt.Fprintf(os.Stderr, "warning: run not recorded: %v\n", err)
	}

	if res.Empty() {
		fmt.Fprintf(os.Stderr, "error: no valid rows (%s)\n", pipeline.SummaryLine(res))
		os.Exit(2)
	}
	if preview {
		pipeline.RenderPreview(os.Stdout, res.Table, previewCols)
	}
	return res
}

func mustDate(flagName, value string) time.Time {
	t, ok := util.ParseDayFirst(value)
	if !ok {
		must(fmt.Errorf("%s: %q is not a dd/mm/yyyy date", flagName, value))
	}
	return t
}

func usage() {
	fmt.Println("usage: mototracker <command>")
	fmt.Println("commands:")
	fmt.Println("  run --input=FILE --type=auto|csv|xlsx|html|pdf|eml [--output=FILE.csv] [--xlsx=FILE.xlsx] [--preview]")
	fmt.Println("  portal:fetch [--from=dd/mm/yyyy] [--to=dd/mm/yyyy] [--output=FILE.csv] [--xlsx=FILE.xlsx] [--preview]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:process --provider=gmail|imap [--messageId=...] [--batch=20]")
	fmt.Println("  mail:listen")
	fmt.Println("  runs:list [--limit=20]")
	fmt.Println("  reimport --input=FILE.csv")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
