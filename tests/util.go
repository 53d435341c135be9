package testutil

import (
	"fmt"
	"sync"
	"testing"

	"github.com/trezcool/outcomes/core"
	"github.com/trezcool/outcomes/core/attainment"
	"github.com/trezcool/outcomes/storage/database/dummy"
)

// Year is the academic year of the fixtures.
const Year = "2023-24"

// Dataset returns a batch `b1` of program `p1` with three courses:
//
//	c1 CS101 COMPLETED, 4 COs, 10 enrolled students; co1 is mapped to q1 and q2 (max 10 each),
//	   s01..s08 score 6+6 and s09, s10 score 2+2; co2 is mapped to q3 (max 20) that nobody attempted.
//	   CO-PO: co1-po1 (3), co2-po1 (1), co1..co4-po2 (3).
//	c2 CS102 ACTIVE.
//	c3 CS103 COMPLETED, 1 CO mapped to po1 (2).
func Dataset() attainment.Dataset {
	settings := attainment.CourseSettings{
		TargetPercentage: 60,
		Thresholds:       attainment.Thresholds{Level1: 60, Level2: 75, Level3: 85},
		Status:           attainment.CourseCompleted,
	}
	active := settings
	active.Status = attainment.CourseActive

	ds := attainment.Dataset{
		Batches: []attainment.Batch{{ID: "b1", ProgramID: "p1", Name: "2020-2024"}},
		Courses: []attainment.Course{
			{ID: "c1", Code: "CS101", Name: "Algorithms", ProgramID: "p1", BatchID: "b1", AcademicYear: Year, Settings: settings},
			{ID: "c2", Code: "CS102", Name: "Databases", ProgramID: "p1", BatchID: "b1", AcademicYear: Year, Settings: active},
			{ID: "c3", Code: "CS103", Name: "Networks", ProgramID: "p1", BatchID: "b1", AcademicYear: Year, Settings: settings},
		},
		ProgramOutcomes: []attainment.ProgramOutcome{
			{ID: "po1", ProgramID: "p1", Code: "PO1", Description: "Engineering knowledge"},
			{ID: "po2", ProgramID: "p1", Code: "PO2", Description: "Problem analysis"},
		},
		Questions: []attainment.Question{
			{ID: "q1", CourseID: "c1", AssessmentID: "a1", MaxMarks: 10},
			{ID: "q2", CourseID: "c1", AssessmentID: "a1", MaxMarks: 10},
			{ID: "q3", CourseID: "c1", AssessmentID: "a1", MaxMarks: 20},
			{ID: "q4", CourseID: "c3", AssessmentID: "a2", MaxMarks: 10},
		},
		QuestionCOMappings: []attainment.QuestionCOMapping{
			{QuestionID: "q1", COID: "co1"},
			{QuestionID: "q2", COID: "co1"},
			{QuestionID: "q3", COID: "co2"},
			{QuestionID: "q4", COID: "co5"},
		},
		COPOMappings: []attainment.COPOMapping{
			{CourseID: "c1", COID: "co1", POID: "po1", Level: 3},
			{CourseID: "c1", COID: "co2", POID: "po1", Level: 1},
			{CourseID: "c3", COID: "co5", POID: "po1", Level: 2},
		},
	}

	for i := 1; i <= 4; i++ {
		coID := fmt.Sprintf("co%d", i)
		ds.CourseOutcomes = append(ds.CourseOutcomes, attainment.CourseOutcome{ID: coID, CourseID: "c1", Code: fmt.Sprintf("CO%d", i)})
		ds.COPOMappings = append(ds.COPOMappings, attainment.COPOMapping{CourseID: "c1", COID: coID, POID: "po2", Level: 3})
	}
	ds.CourseOutcomes = append(ds.CourseOutcomes, attainment.CourseOutcome{ID: "co5", CourseID: "c3", Code: "CO1"})

	for i := 1; i <= 10; i++ {
		sID := fmt.Sprintf("s%02d", i)
		ds.Enrollments = append(ds.Enrollments, attainment.Enrollment{CourseID: "c1", StudentID: sID})

		obtained := 6.0
		if i > 8 {
			obtained = 2
		}
		ds.Marks = append(ds.Marks,
			attainment.StudentMark{QuestionID: "q1", StudentID: sID, AcademicYear: Year, ObtainedMarks: attainment.Float64(obtained), MaxMarks: 10},
			attainment.StudentMark{QuestionID: "q2", StudentID: sID, AcademicYear: Year, ObtainedMarks: attainment.Float64(obtained), MaxMarks: 10},
			attainment.StudentMark{QuestionID: "q3", StudentID: sID, AcademicYear: Year, MaxMarks: 20},
		)
	}
	return ds
}

// OpenDB opens a dummy DB loaded with Dataset.
func OpenDB(t *testing.T) *dummydb.DB {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	db.Load(Dataset())
	return db
}

// Logger records log entries.
type Logger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

type LogEntry struct {
	Level   string
	Message string
	Args    []interface{}
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Message: msg, Args: args})
}

// Messages returns the recorded messages of a level.
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var msgs []string
	for _, e := range l.Entries {
		if e.Level == level {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

// Mailer records sent messages without rendering them.
type Mailer struct {
	mu   sync.Mutex
	Sent []*core.EmailMessage
}

var _ core.EmailService = (*Mailer)(nil)

func (m *Mailer) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, messages...)
}

func (m *Mailer) Wait() {}
