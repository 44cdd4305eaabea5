package drill_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/drill"
	"github.com/trezcool/rollcall/core/roster"
	emailsvc "github.com/trezcool/rollcall/services/email"
	notifysvc "github.com/trezcool/rollcall/services/notify"
	dummydb "github.com/trezcool/rollcall/storage/database/dummy"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// flakyStatusRepo wraps the in-memory status repository with switchable
// failure modes.
type flakyStatusRepo struct {
	drill.StatusRepository
	failQuery  bool
	failUpsert bool
	failReset  bool
}

func (r *flakyStatusRepo) QueryAllStatuses(ctx context.Context) ([]drill.StatusRecord, error) {
	if r.failQuery {
		return nil, errors.New("status query down")
	}
	return r.StatusRepository.QueryAllStatuses(ctx)
}

func (r *flakyStatusRepo) UpsertStatus(ctx context.Context, rec drill.StatusRecord) error {
	if r.failUpsert {
		return errors.New("status write down")
	}
	return r.StatusRepository.UpsertStatus(ctx, rec)
}

func (r *flakyStatusRepo) ResetAllStatuses(ctx context.Context) error {
	if r.failReset {
		return errors.New("reset down")
	}
	return r.StatusRepository.ResetAllStatuses(ctx)
}

type boardFixture struct {
	db      *dummydb.DB
	channel *notifysvc.DummyChannel
	status  *flakyStatusRepo
	board   *drill.Board
}

func newBoardFixture(t *testing.T, deps drill.BoardDeps) *boardFixture {
	t.Helper()

	db, err := dummydb.Open()
	require.NoError(t, err)

	fix := &boardFixture{
		db:      db,
		channel: notifysvc.NewDummyChannel(),
		status:  &flakyStatusRepo{StatusRepository: dummydb.NewStatusRepository(db)},
	}
	deps.Roster = roster.NewService(dummydb.NewRosterRepository(db))
	deps.Status = drill.NewService(fix.status)
	deps.Absences = dummydb.NewAbsenceRepository(db)
	deps.Channel = fix.channel
	deps.Logger = nopLogger{}
	fix.board = drill.NewBoard(deps)
	t.Cleanup(fix.board.Stop)
	return fix
}

func (fix *boardFixture) seed(t *testing.T) {
	t.Helper()
	fix.db.AddStaff(
		roster.StaffMember{PersonID: 1, FullName: "Doe, Jane", IsActive: true},
		roster.StaffMember{PersonID: 2, FirstName: "John", LastName: "Poe", FullName: "Poe, John", IsActive: true},
		roster.StaffMember{PersonID: 3, FullName: "Gone, Al", IsActive: false},
		roster.StaffMember{PersonID: 4, FullName: "Off, Site", IsActive: true, ExcludeDrill: true},
	)
	fix.db.AddStudents(
		roster.StudentMember{PersonID: 1, FirstName: "Amy", LastName: "Ash", ClassName: null.StringFrom("2B"), GradeLevel: null.IntFrom(2)},
		roster.StudentMember{PersonID: 10, FirstName: "Bob", LastName: "Bee", ClassName: null.StringFrom("1A"), GradeLevel: null.IntFrom(1)},
		roster.StudentMember{PersonID: 11, FirstName: "Cat", LastName: "Coy", ClassName: null.StringFrom("1A"), GradeLevel: null.IntFrom(1)},
	)
}

func personByKey(people []drill.Person, id int, cat roster.Category) (drill.Person, bool) {
	for _, p := range people {
		if p.PersonID == id && p.Category == cat {
			return p, true
		}
	}
	return drill.Person{}, false
}

func TestBoard_Load(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.seed(t)
	fix.db.PutStatus(drill.StatusRecord{
		PersonID:    10,
		Category:    roster.Student,
		CheckedIn:   true,
		CheckedInAt: null.TimeFrom(time.Now().UTC()),
		CheckedInBy: null.StringFrom("teacher@school.org"),
	})
	fix.db.MarkAbsent(core.TodayUTC(), 11)

	require.NoError(t, fix.board.Load(ctx))
	require.NoError(t, fix.board.Err())

	people := fix.board.People()
	assert.Len(t, people, 5) // inactive and excluded staff are not tracked

	seen := make(map[roster.Key]int)
	for _, p := range people {
		seen[p.Key()]++
	}
	for key, n := range seen {
		assert.Equalf(t, 1, n, "duplicate board row for %+v", key)
	}

	staff1, ok := personByKey(people, 1, roster.Staff)
	require.True(t, ok)
	assert.Equal(t, "Jane", staff1.FirstName)
	assert.Equal(t, "Doe", staff1.LastName)
	assert.Equal(t, "Doe, Jane", staff1.FullName)
	assert.Equal(t, roster.StaffGroupLabel, staff1.GroupLabel)
	assert.False(t, staff1.CheckedIn)

	// same numeric id tracked separately per category
	student1, ok := personByKey(people, 1, roster.Student)
	require.True(t, ok)
	assert.Equal(t, "2B", student1.GroupLabel)

	checked, ok := personByKey(people, 10, roster.Student)
	require.True(t, ok)
	assert.True(t, checked.CheckedIn)
	assert.Equal(t, "teacher@school.org", checked.CheckedInBy.String)

	absent, ok := personByKey(people, 11, roster.Student)
	require.True(t, ok)
	assert.True(t, absent.MarkedAbsent)
	assert.False(t, absent.Accounted())
}

func TestBoard_Load_staffOnly(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.db.AddStaff(
		roster.StaffMember{PersonID: 1, FullName: "Doe, Jane", IsActive: true},
		roster.StaffMember{PersonID: 2, FullName: "Poe, John", IsActive: true},
	)

	require.NoError(t, fix.board.Load(ctx))

	people := fix.board.People()
	require.Len(t, people, 2)
	for _, p := range people {
		assert.False(t, p.CheckedIn)
		assert.False(t, p.OutToday)
	}
	assert.Equal(t, drill.Stats{TotalStaff: 2}, fix.board.Stats())
	assert.Empty(t, fix.board.Classes())
}

func TestBoard_Load_failureKeepsPriorList(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.seed(t)
	require.NoError(t, fix.board.Load(ctx))
	prior := fix.board.People()

	fix.status.failQuery = true
	assert.Error(t, fix.board.Load(ctx))
	assert.Error(t, fix.board.Err())
	assert.Equal(t, prior, fix.board.People())

	// a successful retry clears the error state
	fix.status.failQuery = false
	require.NoError(t, fix.board.Load(ctx))
	assert.NoError(t, fix.board.Err())
}

func TestBoard_ToggleCheckIn(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.seed(t)
	require.NoError(t, fix.board.Load(ctx))

	require.NoError(t, fix.board.ToggleCheckIn(ctx, 10, roster.Student, "Admin@School.Org"))
	p, ok := personByKey(fix.board.People(), 10, roster.Student)
	require.True(t, ok)
	assert.True(t, p.CheckedIn)
	assert.False(t, p.OutToday)
	assert.True(t, p.CheckedInAt.Valid)
	assert.Equal(t, "Admin@School.Org", p.CheckedInBy.String)

	// written through to the store
	snap, err := drill.NewService(fix.status).Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 1)
	assert.True(t, snap[0].CheckedIn)

	// toggling again un-checks and clears the stamp
	require.NoError(t, fix.board.ToggleCheckIn(ctx, 10, roster.Student, "admin@school.org"))
	p, _ = personByKey(fix.board.People(), 10, roster.Student)
	assert.False(t, p.CheckedIn)
	assert.False(t, p.CheckedInAt.Valid)
	assert.False(t, p.CheckedInBy.Valid)
}

func TestBoard_ToggleCheckIn_overridesOutToday(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.seed(t)
	fix.db.PutStatus(drill.StatusRecord{PersonID: 2, Category: roster.Staff, OutToday: true})
	require.NoError(t, fix.board.Load(ctx))

	require.NoError(t, fix.board.ToggleCheckIn(ctx, 2, roster.Staff, "admin@school.org"))
	p, ok := personByKey(fix.board.People(), 2, roster.Staff)
	require.True(t, ok)
	assert.True(t, p.CheckedIn)
	assert.False(t, p.OutToday)
	assert.Equal(t, "admin@school.org", p.CheckedInBy.String)
}

func TestBoard_ToggleOutToday(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.seed(t)
	require.NoError(t, fix.board.Load(ctx))

	require.NoError(t, fix.board.ToggleCheckIn(ctx, 1, roster.Staff, "admin@school.org"))
	require.NoError(t, fix.board.ToggleOutToday(ctx, 1, roster.Staff))

	p, ok := personByKey(fix.board.People(), 1, roster.Staff)
	require.True(t, ok)
	assert.True(t, p.OutToday)
	assert.False(t, p.CheckedIn)
	// going out does not erase who checked them in earlier
	assert.Equal(t, "admin@school.org", p.CheckedInBy.String)

	require.NoError(t, fix.board.ToggleOutToday(ctx, 1, roster.Staff))
	p, _ = personByKey(fix.board.People(), 1, roster.Staff)
	assert.False(t, p.OutToday)
	assert.False(t, p.CheckedIn)
}

func TestBoard_Toggle_unknownPerson(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.seed(t)
	require.NoError(t, fix.board.Load(ctx))

	err := fix.board.ToggleCheckIn(ctx, 999, roster.Student, "admin@school.org")
	assert.Equal(t, drill.ErrUnknownPerson, errors.Cause(err))

	// staff id 3 is inactive and therefore not on the board
	err = fix.board.ToggleOutToday(ctx, 3, roster.Staff)
	assert.Equal(t, drill.ErrUnknownPerson, errors.Cause(err))
}

func TestBoard_writeFailureRevertsToStoreTruth(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.seed(t)
	require.NoError(t, fix.board.Load(ctx))

	fix.status.failUpsert = true
	require.NoError(t, fix.board.ToggleCheckIn(ctx, 10, roster.Student, "admin@school.org"))

	// the optimistic flip was discarded by the recovery reload
	p, ok := personByKey(fix.board.People(), 10, roster.Student)
	require.True(t, ok)
	assert.False(t, p.CheckedIn)
	assert.NoError(t, fix.board.Err())
}

func TestBoard_ResetAll(t *testing.T) {
	ctx := context.Background()
	conf := &core.Config{AppName: "rollcall", DrillReportEmail: "safety@school.org"}
	fix := newBoardFixture(t, drill.BoardDeps{MailSvc: emailsvc.NewConsoleServiceMock(conf), Conf: conf})
	fix.seed(t)
	require.NoError(t, fix.board.Load(ctx))

	for _, id := range []int{1, 10, 11} {
		require.NoError(t, fix.board.ToggleCheckIn(ctx, id, roster.Student, "admin@school.org"))
	}
	require.NoError(t, fix.board.ToggleCheckIn(ctx, 1, roster.Staff, "admin@school.org"))
	require.NoError(t, fix.board.ToggleOutToday(ctx, 2, roster.Staff))
	require.Equal(t, 100, fix.board.Stats().OverallPercent)

	assert.True(t, fix.board.ResetAll(ctx, "Admin@School.Org", ""))

	for _, p := range fix.board.People() {
		assert.Falsef(t, p.CheckedIn, "person %d still checked in", p.PersonID)
		assert.Falsef(t, p.OutToday, "person %d still out", p.PersonID)
		assert.False(t, p.CheckedInAt.Valid)
		assert.False(t, p.CheckedInBy.Valid)
	}
	assert.Equal(t, 0, fix.board.Stats().OverallPercent)

	history, err := fix.board.History(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "admin@school.org", history[0].ResetBy)
	assert.Equal(t, "Manual reset", history[0].Notes)
	assert.Equal(t, core.TodayUTC(), history[0].DrillDate)

	require.NotEmpty(t, emailsvc.SentMessages)
	sent := emailsvc.SentMessages[len(emailsvc.SentMessages)-1]
	assert.Equal(t, "safety@school.org", sent.To[0].Address)
	assert.Equal(t, "Drill board reset", sent.Subject)
}

func TestBoard_ResetAll_storeFailure(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.seed(t)
	require.NoError(t, fix.board.Load(ctx))
	require.NoError(t, fix.board.ToggleCheckIn(ctx, 10, roster.Student, "admin@school.org"))

	fix.status.failReset = true
	assert.False(t, fix.board.ResetAll(ctx, "admin@school.org", "oops"))

	history, err := fix.board.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestBoard_changeSignalTriggersReload(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.seed(t)
	require.NoError(t, fix.board.Load(ctx))
	require.NoError(t, fix.board.Watch(ctx))

	// another writer mutates the store behind the board's back
	fix.db.PutStatus(drill.StatusRecord{PersonID: 11, Category: roster.Student, CheckedIn: true})
	fix.channel.Fire()

	assert.Eventually(t, func() bool {
		p, ok := personByKey(fix.board.People(), 11, roster.Student)
		return ok && p.CheckedIn
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBoard_Updates(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.seed(t)
	require.NoError(t, fix.board.Load(ctx))

	sig, cancel := fix.board.Updates()
	defer cancel()

	require.NoError(t, fix.board.ToggleCheckIn(ctx, 1, roster.Staff, "admin@school.org"))
	select {
	case <-sig:
	case <-time.After(2 * time.Second):
		t.Fatal("no update signal after a toggle")
	}
}

func TestBoard_Stop(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.seed(t)
	require.NoError(t, fix.board.Load(ctx))
	require.NoError(t, fix.board.Watch(ctx))

	fix.board.Stop()
	fix.board.Stop() // idempotent

	// in-flight loads after deactivation are discarded
	prior := fix.board.People()
	fix.db.PutStatus(drill.StatusRecord{PersonID: 10, Category: roster.Student, CheckedIn: true})
	require.NoError(t, fix.board.Load(ctx))
	assert.Equal(t, prior, fix.board.People())
}

func TestBoard_Classes(t *testing.T) {
	ctx := context.Background()
	fix := newBoardFixture(t, drill.BoardDeps{})
	fix.seed(t)
	require.NoError(t, fix.board.Load(ctx))

	assert.Equal(t, []string{"1A", "2B"}, fix.board.Classes())
}
