package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	db2reader "github.com/agatho/go-db2reader"
)

var version = "0.1.0"

var (
	logLevel   string
	devMode    bool
	fieldsPath string
	limit      int
)

func main() {
	root := &cobra.Command{
		Use:   "db2dump",
		Short: "Inspect and decode DB2 game-data files",
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&devMode, "dev", false, "human-readable console logging")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("db2dump v%s\n", version)
		},
	})

	infoCmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Print header and section summary without decoding records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}
	root.AddCommand(infoCmd)

	dumpCmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Decode records to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args[0], 0, false)
		},
	}
	dumpCmd.Flags().StringVar(&fieldsPath, "fields", "", "JSON table definition mapping field indices to names")
	dumpCmd.Flags().IntVar(&limit, "limit", 0, "stop after this many records (0 = all)")
	root.AddCommand(dumpCmd)

	recordCmd := &cobra.Command{
		Use:   "record <file> <id>",
		Short: "Decode a single record by ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid record id %q: %w", args[1], err)
			}
			return runDump(args[0], uint32(id), true)
		},
	}
	recordCmd.Flags().StringVar(&fieldsPath, "fields", "", "JSON table definition mapping field indices to names")
	root.AddCommand(recordCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func newLoader() (*db2reader.Loader, error) {
	logger, err := db2reader.NewLogger(logLevel, devMode)
	if err != nil {
		return nil, err
	}
	return db2reader.NewLoader(logger), nil
}

func runInfo(path string) error {
	loader, err := newLoader()
	if err != nil {
		return err
	}
	src, err := db2reader.NewFileSource(path)
	if err != nil {
		return err
	}
	defer src.Close()
	if err := loader.LoadHeaders(src); err != nil {
		return err
	}
	h := loader.Header()
	fmt.Printf("signature:    0x%08x\n", h.Signature)
	fmt.Printf("records:      %d\n", h.RecordCount)
	fmt.Printf("fields:       %d (total %d)\n", h.FieldCount, h.TotalFieldCount)
	fmt.Printf("record size:  %d\n", h.RecordSize)
	fmt.Printf("table hash:   0x%08x\n", h.TableHash)
	fmt.Printf("layout hash:  0x%08x\n", h.LayoutHash)
	fmt.Printf("id range:     %d..%d\n", h.MinID, h.MaxID)
	fmt.Printf("locale:       0x%08x\n", h.Locale)
	fmt.Printf("sections:     %d\n", h.SectionCount)
	for i := 0; i < loader.SectionCount(); i++ {
		sec := loader.SectionHeader(i)
		mode := "dense"
		if sec.IsSparse() {
			mode = "sparse"
		}
		fmt.Printf("  section %d: %s, %d records, %d string bytes, %d copy entries\n",
			i, mode, sec.RecordCount, sec.StringTableSize, sec.CopyTableCount)
	}
	return nil
}

func runDump(path string, id uint32, single bool) error {
	loader, err := newLoader()
	if err != nil {
		return err
	}
	if err := loader.LoadFromFile(path); err != nil {
		return err
	}
	defer loader.Close()

	var def *db2reader.TableDef
	if fieldsPath != "" {
		data, err := os.ReadFile(fieldsPath)
		if err != nil {
			return err
		}
		def, err = db2reader.ParseTableDef(data)
		if err != nil {
			return err
		}
	}

	if single {
		view, err := loader.GetRecord(id)
		if err != nil {
			return err
		}
		result, err := projectRecord(loader, view, def)
		if err != nil {
			return err
		}
		fmt.Print(string(pretty.Pretty(result)))
		return nil
	}

	// ordinal files carry no ID index; walk them by position
	byIndex := loader.MinID() == loader.MaxID()
	ids := loader.RecordIDs()
	count := len(ids)
	if byIndex {
		count = int(loader.RecordCount())
	}
	var out bytes.Buffer
	out.WriteString(`[`)
	written := 0
	for i := 0; i < count; i++ {
		if limit > 0 && written >= limit {
			break
		}
		var view *db2reader.RecordView
		var err error
		if byIndex {
			view, err = loader.GetRecordByIndex(i)
		} else {
			view, err = loader.GetRecord(ids[i])
		}
		if err != nil {
			return err
		}
		result, err := projectRecord(loader, view, def)
		if err != nil {
			return err
		}
		if written > 0 {
			out.WriteString(`,`)
		}
		out.Write(result)
		written++
	}
	out.WriteString(`]`)
	fmt.Print(string(pretty.Pretty(out.Bytes())))

	stats := loader.Stats()
	if stats.SectionsSkipped > 0 || stats.TruncatedTables > 0 {
		logger, _ := db2reader.NewLogger(logLevel, devMode)
		logger.Warn("file decoded with recoverable skips",
			zap.Uint64("sections_skipped", stats.SectionsSkipped),
			zap.Uint64("truncated_tables", stats.TruncatedTables))
	}
	return nil
}

// projectRecord renders a record through the table definition when one
// is given, or as an anonymous uint32 field array otherwise.
func projectRecord(loader *db2reader.Loader, view *db2reader.RecordView, def *db2reader.TableDef) ([]byte, error) {
	if def != nil {
		return def.Project(view)
	}
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf(`{"id":%d,"fields":[`, view.GetID()))
	fieldCount := int(loader.Header().FieldCount)
	for i := 0; i < fieldCount; i++ {
		v, err := view.GetUint32(i, 0)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteString(`,`)
		}
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	buf.WriteString(`]}`)
	return buf.Bytes(), nil
}
