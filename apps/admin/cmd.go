package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/peterbourgon/ff/v3"

	"github.com/trezcool/outcomes/core"
	"github.com/trezcool/outcomes/core/attainment"
	"github.com/trezcool/outcomes/storage"
	"github.com/trezcool/outcomes/storage/database"
)

const envVarPrefix = "OUTCOMES"

var (
	migrateFunc = database.Migrate // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	out    io.Writer
	db     *sql.DB
	store  storage.Store
	mailer core.EmailService
	svc    *attainment.Service
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                              - run database migrations (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  import -file DATASET.json                           - import a JSON dataset into the store")
	_, _ = fmt.Fprintln(cli.out, "  recompute -course ID [-year YEAR]                   - compute and persist the CO attainment of a course")
	_, _ = fmt.Fprintln(cli.out, "  co-report -course ID [-year YEAR]                   - print the CO attainment of a course")
	_, _ = fmt.Fprintln(cli.out, "  po-report -course ID                                - print the PO attainment of a course")
	_, _ = fmt.Fprintln(cli.out, "  batch-report -batch ID [-year YEAR] [-status STATUS] [-json] [-mail]")
	_, _ = fmt.Fprintln(cli.out, "                                                      - print (or mail) the PO attainment of a batch")
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// parse parses the flags; they can also be set with OUTCOMES_<FLAG> env vars.
func parse(fs *flag.FlagSet, args []string) error {
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(envVarPrefix)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "import":
		fs := cli.newFlagSet("import")
		file := fs.String("file", "", "The JSON dataset to import.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		if *file == "" {
			fs.Usage()
			return errHelp
		}
		return cli.importDataset(*file)

	case "recompute", "co-report":
		fs := cli.newFlagSet(args[1])
		courseID := fs.String("course", "", "The course id.")
		year := fs.String("year", "", "The academic year, eg. 2023-24; all years if empty.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		if *courseID == "" {
			fs.Usage()
			return errHelp
		}
		return cli.coReport(*courseID, *year, args[1] == "recompute")

	case "po-report":
		fs := cli.newFlagSet("po-report")
		courseID := fs.String("course", "", "The course id.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		if *courseID == "" {
			fs.Usage()
			return errHelp
		}
		return cli.poReport(*courseID)

	case "batch-report":
		fs := cli.newFlagSet("batch-report")
		batchID := fs.String("batch", "", "The batch id.")
		year := fs.String("year", "", "Only the courses of this academic year.")
		status := fs.String("status", "", "Only the courses with this status (FUTURE, ACTIVE, COMPLETED); COMPLETED if empty.")
		asJSON := fs.Bool("json", false, "Print the report as JSON.")
		mail := fs.Bool("mail", false, "Mail the report to the configured report recipients.")
		if err := parse(fs, args[2:]); err != nil {
			return err
		}
		if *batchID == "" {
			fs.Usage()
			return errHelp
		}
		filter := attainment.CourseFilter{AcademicYear: *year, CourseStatus: attainment.CourseStatus(*status)}
		if *mail {
			return cli.mailBatchReport(*batchID, filter)
		}
		return cli.batchReport(*batchID, filter, *asJSON)

	default:
		cli.printUsage()
		return errHelp
	}
}
