package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"

	"github.com/trezcool/outcomes/core/attainment"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	warnColor  = color.New(color.FgYellow)
)

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errors.New("migrations only apply to the postgres engine")
	}
	return migrateFunc(cli.db, args[0], args[1:]...)
}

func (cli *commandLine) importDataset(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening dataset")
	}
	defer f.Close()

	var ds attainment.Dataset
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err = dec.Decode(&ds); err != nil {
		return errors.Wrapf(err, "decoding dataset %s", path)
	}
	if err = cli.store.Import(context.Background(), ds); err != nil {
		return errors.Wrap(err, "importing dataset")
	}

	okColor.Fprintf(cli.out, "imported %d courses, %d questions, %d marks and %d enrollments\n",
		len(ds.Courses), len(ds.Questions), len(ds.Marks), len(ds.Enrollments))
	return nil
}

func (cli *commandLine) coReport(courseID, year string, persist bool) error {
	ctx := context.Background()

	var (
		report attainment.CourseAttainmentReport
		err    error
	)
	if persist {
		report, err = cli.svc.RecomputeCourseCOAttainment(ctx, courseID, year)
	} else {
		report, err = cli.svc.ComputeCourseCOAttainment(ctx, courseID, year)
	}
	if err != nil {
		return err
	}

	titleColor.Fprintf(cli.out, "%s %s (%s): CO attainment\n", report.CourseCode, report.CourseName, yearLabel(report.AcademicYear))
	if report.Err() != nil {
		warnColor.Fprintln(cli.out, report.Err())
	}

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"CO", "Questions", "Attained", "Meeting target", "Attained %", "Level"})
	for _, co := range report.COAttainments {
		table.Append([]string{
			co.COCode,
			strconv.Itoa(co.MappedQuestions),
			fmt.Sprintf("%d/%d", co.StudentsAttained, co.TotalStudents),
			pct(co.PercentageMeetingTarget),
			pct(co.AttainedPercentage),
			strconv.Itoa(co.AttainmentLevel),
		})
	}
	table.Render()

	fmt.Fprintf(cli.out, "Overall attainment: %s\n", pct(report.OverallAttainment))
	cli.printWarnings(report.Warnings)
	if persist {
		if report.Persisted {
			okColor.Fprintf(cli.out, "persisted %d student attainments\n", len(report.StudentScores))
		} else if report.PersistError != "" {
			return errors.New(report.PersistError)
		} else if report.PersistSkipped != "" {
			warnColor.Fprintf(cli.out, "not persisted: %s\n", report.PersistSkipped)
		}
	}
	return nil
}

func (cli *commandLine) poReport(courseID string) error {
	report, err := cli.svc.ComputePOAttainment(context.Background(), courseID)
	if err != nil {
		return err
	}

	titleColor.Fprintf(cli.out, "%s: PO attainment\n", report.CourseCode)
	if report.NotEligible {
		warnColor.Fprintln(cli.out, report.Reason)
	} else {
		cli.printPOs(report.POAttainments)
	}
	cli.printCompliance(report.Compliance)
	cli.printWarnings(report.Warnings)
	return nil
}

func (cli *commandLine) batchReport(batchID string, filter attainment.CourseFilter, asJSON bool) error {
	report, err := cli.svc.ComputeBatchPOAttainment(context.Background(), batchID, filter)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(cli.out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	titleColor.Fprintf(cli.out, "Batch %s (%s): PO attainment\n", report.BatchID, yearLabel(report.AcademicYear))
	fmt.Fprintf(cli.out, "Courses: %s\n", strings.Join(report.CoursesConsidered, ", "))
	cli.printPOs(report.POAttainments)
	cli.printCompliance(report.Compliance)
	for _, sc := range report.SkippedCourses {
		warnColor.Fprintf(cli.out, "skipped %s: %s\n", sc.CourseCode, sc.Reason)
	}
	cli.printWarnings(report.Warnings)
	return nil
}

func (cli *commandLine) mailBatchReport(batchID string, filter attainment.CourseFilter) error {
	recipients := make([]mail.Address, 0, len(cli.conf.ReportRecipients))
	for _, s := range cli.conf.ReportRecipients {
		addr, err := mail.ParseAddress(s)
		if err != nil {
			return errors.Wrapf(err, "parsing report recipient %q", s)
		}
		recipients = append(recipients, *addr)
	}

	report, err := cli.svc.MailBatchReport(context.Background(), batchID, filter, recipients)
	if err != nil {
		return err
	}
	// the process exits right after the command
	cli.mailer.Wait()
	okColor.Fprintf(cli.out, "batch %s report sent to %d recipient(s)\n", report.BatchID, len(recipients))
	return nil
}

func (cli *commandLine) printPOs(pos []attainment.POAttainment) {
	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"PO", "Mapped COs", "Avg level", "Coverage", "Base", "Actual", "Status"})
	for _, po := range pos {
		table.Append([]string{
			po.POCode,
			fmt.Sprintf("%d/%d", po.MappedCOs, po.COCount),
			strconv.FormatFloat(po.AvgMappingLevel, 'f', 1, 64),
			pct(po.COCoverageFactor),
			pct(po.BaseAttainment),
			pct(po.ActualAttainment),
			po.Status,
		})
	}
	table.Render()
}

func (cli *commandLine) printCompliance(c attainment.Compliance) {
	status := "not compliant"
	if c.IsCompliant {
		status = "compliant"
	}
	fmt.Fprintf(cli.out, "Compliance score: %s (%s, %d/%d POs)\n", pct(c.NBAComplianceScore), status, c.CompliantPOs, c.TotalPOs)
	for _, rec := range c.Recommendations {
		fmt.Fprintf(cli.out, "- %s\n", rec)
	}
}

func (cli *commandLine) printWarnings(warnings []string) {
	for _, w := range warnings {
		warnColor.Fprintf(cli.out, "warning: %s\n", w)
	}
}

func pct(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64) + "%"
}

func yearLabel(year string) string {
	if year == "" {
		return "all years"
	}
	return year
}
