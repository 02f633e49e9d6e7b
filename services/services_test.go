package services

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/crypto/bcrypt"

	"neurallog/apperr"
	"neurallog/auth"
	"neurallog/db"
	"neurallog/models"
)

type env struct {
	store      *db.Store
	accounts   *Accounts
	activities *Activities
	reports    *Reports
	exporter   *Exporter
	admin      *Admin
	exportDir  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	store, err := db.Open(filepath.Join(dir, "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	exportDir := filepath.Join(dir, "exports", "nested")
	return &env{
		store:      store,
		accounts:   NewAccounts(store, bcrypt.MinCost),
		activities: NewActivities(store),
		reports:    NewReports(store),
		exporter:   NewExporter(store, exportDir),
		admin:      NewAdmin(store),
		exportDir:  exportDir,
	}
}

func (e *env) register(t *testing.T, name string) auth.Identity {
	t.Helper()
	id, err := e.accounts.Register(context.Background(), Registration{Username: name, Password: "pw-" + name})
	require.NoError(t, err)
	return id
}

func (e *env) log(t *testing.T, owner auth.Identity, a models.NewActivity) int64 {
	t.Helper()
	id, err := e.activities.Create(context.Background(), owner, a)
	require.NoError(t, err)
	return id
}

func TestRegisterThenLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "Ünïcødé user"} {
		reg, err := e.accounts.Register(ctx, Registration{Username: name, Password: "s3cret " + name, Email: name + "@example.com"})
		require.NoError(t, err)

		got, err := e.accounts.Login(ctx, name, "s3cret "+name)
		require.NoError(t, err)
		assert.Equal(t, reg, got)
	}
}

func TestRegisterThenLoginPaddedUsername(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	reg, err := e.accounts.Register(ctx, Registration{Username: " bob ", Password: "secret-pw"})
	require.NoError(t, err)
	assert.Equal(t, "bob", reg.Username)

	for _, name := range []string{" bob ", "bob", "\tbob\n"} {
		got, err := e.accounts.Login(ctx, name, "secret-pw")
		require.NoError(t, err, "login as %q", name)
		assert.Equal(t, reg, got)
	}

	_, err = e.accounts.Register(ctx, Registration{Username: "bob  ", Password: "other"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestRegisterThenLoginLongPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	password := strings.Repeat("x", 80)

	reg, err := e.accounts.Register(ctx, Registration{Username: "carol", Password: password})
	require.NoError(t, err)

	got, err := e.accounts.Login(ctx, "carol", password)
	require.NoError(t, err)
	assert.Equal(t, reg, got)

	_, err = e.accounts.Login(ctx, "carol", password[:72])
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)

	for _, in := range []Registration{
		{Username: "", Password: "pw"},
		{Username: "   ", Password: "pw"},
		{Username: "alice", Password: ""},
	} {
		_, err := e.accounts.Register(context.Background(), in)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "%+v", in)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "alice")

	_, err := e.accounts.Register(ctx, Registration{Username: "alice", Password: "different"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	assert.Equal(t, MsgUsernameAlreadyExists, apperr.MessageOf(err))

	n, err := e.store.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFirstUserIsAdmin(t *testing.T) {
	e := newEnv(t)

	first := e.register(t, "first")
	second := e.register(t, "second")
	third := e.register(t, "third")

	assert.True(t, first.IsAdmin)
	assert.False(t, second.IsAdmin)
	assert.False(t, third.IsAdmin)
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "alice")

	_, wrongPassword := e.accounts.Login(ctx, "alice", "nope")
	_, unknownUser := e.accounts.Login(ctx, "mallory", "pw-alice")

	for _, err := range []error{wrongPassword, unknownUser} {
		assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
		assert.Equal(t, MsgInvalidCredentials, apperr.MessageOf(err))
	}
}

func TestResolveReflectsStore(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.register(t, "admin")
	bob := e.register(t, "bob")

	_, err := e.admin.ToggleAdmin(ctx, admin, bob.UserID)
	require.NoError(t, err)
	got, err := e.accounts.Resolve(ctx, bob.UserID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	require.NoError(t, e.admin.DeleteUser(ctx, admin, bob.UserID))
	_, err = e.accounts.Resolve(ctx, bob.UserID)
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
}

func TestActivitiesIsolation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")

	id := e.log(t, alice, models.NewActivity{Date: "2024-03-01", ActivityName: "Run"})

	theirs, err := e.activities.List(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, theirs)

	require.NoError(t, e.activities.Delete(ctx, bob, id))
	mine, err := e.activities.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1, "bob's delete must not touch alice's activity")

	require.NoError(t, e.activities.Delete(ctx, alice, id))
	mine, err = e.activities.List(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestDeleteMissingActivityIsNoop(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")
	e.log(t, alice, models.NewActivity{Date: "2024-03-01", ActivityName: "Run"})

	assert.NoError(t, e.activities.Delete(ctx, alice, 12345))

	mine, err := e.activities.List(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestCreateActivity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")

	_, err := e.activities.Create(ctx, alice, models.NewActivity{ActivityName: "Run"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = e.activities.Create(ctx, alice, models.NewActivity{Date: "2024-03-01"})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	// Anything goes for the date text and the score.
	id := e.log(t, alice, models.NewActivity{Date: "someday", ActivityName: "Nap", ProgressScore: -40})
	assert.NotZero(t, id)

	list, err := e.activities.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 0, list[0].Duration)
	assert.Equal(t, -40, list[0].ProgressScore)
	assert.Equal(t, alice.UserID, list[0].UserID)
}

func TestStatsEmpty(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")

	st, err := e.reports.Stats(context.Background(), alice)
	require.NoError(t, err)
	assert.Zero(t, st.AvgScore)
	assert.Zero(t, st.TotalDays)
	assert.NotNil(t, st.ActivitiesByDate)
}

func TestStatsRounding(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")
	for _, score := range []int{1, 2, 2, 0} {
		e.log(t, alice, models.NewActivity{Date: "2024-03-01", ActivityName: "Run", ProgressScore: score})
	}

	st, err := e.reports.Stats(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalDays)
	assert.Equal(t, 4, st.TotalActivities)
	assert.Equal(t, 1.67, st.AvgScore)
	require.Len(t, st.ActivitiesByDate, 1)
	assert.Equal(t, 1.67, st.ActivitiesByDate[0].AvgScore)
	assert.Equal(t, 4, st.ActivitiesByDate[0].Count)
}

func TestMilestoneInvalidDay(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")

	for _, day := range []int{0, 11, 99, -10} {
		_, err := e.reports.Milestone(ctx, alice, day)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "day %d", day)
	}
	n, err := e.store.CountMilestones(ctx, alice.UserID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMilestoneSnapshotsWholeHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")

	for i := 0; i < 30; i++ {
		e.log(t, alice, models.NewActivity{Date: "2024-01-01", ActivityName: "Run", Duration: 30, ProgressScore: 5})
	}
	e.log(t, bob, models.NewActivity{Date: "2024-01-01", ActivityName: "Swim"})

	in, err := e.reports.Milestone(ctx, alice, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, in.MilestoneDay)
	assert.Equal(t, 30, in.TotalActivities, "the day value does not limit the history")
	assert.Equal(t, 15.0, in.TotalDurationHours)

	n, err := e.store.CountMilestones(ctx, alice.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Fetching again appends another snapshot.
	_, err = e.reports.Milestone(ctx, alice, 25)
	require.NoError(t, err)
	history, err := e.reports.Milestones(ctx, alice)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Contains(t, string(history[0].Insights), `"total_activities":30`)
}

func TestBuildInsights(t *testing.T) {
	acts := []models.Activity{
		{ActivityName: "Run", Duration: 45, ProgressScore: 8},
		{ActivityName: "Run", Duration: 30, ProgressScore: 0},
		{ActivityName: "Read", Duration: 20, ProgressScore: 5},
		{ActivityName: "Meditate", Duration: 0, ProgressScore: 6},
	}

	in := BuildInsights(70, acts)

	assert.Equal(t, 70, in.MilestoneDay)
	assert.Equal(t, 4, in.TotalActivities)
	assert.Equal(t, 6.33, in.AvgProgressScore)
	assert.Equal(t, 3, in.UniqueActivityTypes)
	assert.Equal(t, 1.58, in.TotalDurationHours)
	assert.Equal(t, map[string]int{"Run": 2, "Read": 1, "Meditate": 1}, in.ActivityDistribution)

	empty := BuildInsights(10, nil)
	assert.Zero(t, empty.AvgProgressScore)
	assert.NotNil(t, empty.Activities)
	assert.Empty(t, empty.ActivityDistribution)
}

func TestExportWorkbook(t *testing.T) {
	e := newEnv(t)
	e.exporter.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local) }
	alice := e.register(t, "alice")
	bob := e.register(t, "bob")

	longNote := strings.Repeat("n", 80)
	e.log(t, alice, models.NewActivity{Date: "2024-02-02", ActivityName: "Read", Duration: 20, ProgressScore: 6, Notes: longNote})
	e.log(t, alice, models.NewActivity{Date: "2024-02-01", ActivityName: "Run", Description: "easy", Duration: 30, ProgressScore: 7})
	e.log(t, bob, models.NewActivity{Date: "2024-02-01", ActivityName: "Swim"})

	out, err := e.exporter.Export(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, "neural_log_export_20240506_070809.xlsx", out.Name)
	assert.Equal(t, filepath.Join(e.exportDir, out.Name), out.Path)
	assert.Equal(t, 2, out.Rows)

	f, err := excelize.OpenFile(out.Path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ExportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3, "one header row plus one row per activity")
	assert.Equal(t, ExportHeaders, rows[0])
	assert.Equal(t, []string{"2024-02-01", "Run", "easy", "30", "7"}, rows[1])
	assert.Equal(t, "2024-02-02", rows[2][0])
	assert.Equal(t, longNote, rows[2][5])

	dateWidth, err := f.GetColWidth(ExportSheet, "A")
	require.NoError(t, err)
	assert.Equal(t, 12.0, dateWidth)
	notesWidth, err := f.GetColWidth(ExportSheet, "F")
	require.NoError(t, err)
	assert.Equal(t, 50.0, notesWidth)

	styleID, err := f.GetCellStyle(ExportSheet, "B1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	assert.True(t, style.Font.Bold)
	assert.Equal(t, "center", style.Alignment.Horizontal)
}

func TestExportEmpty(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")

	out, err := e.exporter.Export(context.Background(), alice)
	require.NoError(t, err)

	f, err := excelize.OpenFile(out.Path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(ExportSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAdminSelfProtection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.register(t, "admin")

	err := e.admin.DeleteUser(ctx, admin, admin.UserID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
	_, err = e.admin.ToggleAdmin(ctx, admin, admin.UserID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	still, err := e.store.UserByID(ctx, admin.UserID)
	require.NoError(t, err)
	assert.True(t, still.IsAdmin)
}

func TestAdminMissingTargets(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.register(t, "admin")

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(e.admin.DeleteUser(ctx, admin, 404)))
	_, err := e.admin.ToggleAdmin(ctx, admin, 404)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = e.admin.UserActivities(ctx, 404)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAdminOperations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.register(t, "admin")
	bob := e.register(t, "bob")
	e.log(t, bob, models.NewActivity{Date: "2024-01-01", ActivityName: "Run"})
	e.log(t, bob, models.NewActivity{Date: "2024-01-05", ActivityName: "Row"})

	acts, err := e.admin.UserActivities(ctx, bob.UserID)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, "2024-01-05", acts[0].Date)

	users, err := e.admin.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	st, err := e.admin.SystemStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalUsers)
	assert.Equal(t, 2, st.TotalActivities)
	assert.Equal(t, 1, st.TotalAdmins)

	next, err := e.admin.ToggleAdmin(ctx, admin, bob.UserID)
	require.NoError(t, err)
	assert.True(t, next)

	require.NoError(t, e.admin.DeleteUser(ctx, admin, bob.UserID))
	st, err = e.admin.SystemStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalUsers)
	assert.Zero(t, st.TotalActivities)
}
