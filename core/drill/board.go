package drill

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/roster"
)

// StatusChannelName is the change stream scoped to the status table.
// Every write to the table fires a signal on it.
const StatusChannelName = "drill_status_changed"

type (
	// ChangeChannel is a push stream signaling that the status store
	// changed. Signals carry no trusted payload: every one of them means
	// "refetch everything". Close must be idempotent.
	ChangeChannel interface {
		Subscribe(ctx context.Context, name string) (<-chan struct{}, error)
		Close() error
	}

	BoardDeps struct {
		Roster   *roster.Service
		Status   *Service
		Absences AbsenceRepository
		Channel  ChangeChannel
		Logger   core.Logger
		MailSvc  core.EmailService // optional: reset reports
		Conf     *core.Config
	}

	// Board is the live drill check-in board: the merged in-memory list
	// of everyone being tracked, plus the mutation operations staff use
	// during a drill. It is the single writer of its list; toggles apply
	// locally first, then write through to the store, and any write
	// failure is recovered by a full reload rather than a fine-grained
	// rollback.
	Board struct {
		deps BoardDeps

		mu      sync.RWMutex
		people  []Person
		loadErr error

		done     chan struct{}
		stopOnce sync.Once

		subs    map[int]chan struct{}
		nextSub int
	}
)

func NewBoard(deps BoardDeps) *Board {
	return &Board{
		deps: deps,
		done: make(chan struct{}),
		subs: make(map[int]chan struct{}),
	}
}

// Load refetches both rosters, the full status snapshot and today's
// external absence signal, merges them by (person id, category) and
// replaces the in-memory list wholesale. It is all-or-nothing: if any
// fetch fails, the prior list stays visible and the board enters an
// error state that a retry (another Load) clears.
func (b *Board) Load(ctx context.Context) error {
	var (
		staff    []roster.StaffMember
		students []roster.StudentMember
		statuses []StatusRecord
		absent   map[int]bool

		wg   sync.WaitGroup
		errs [4]error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		staff, errs[0] = b.deps.Roster.Staff(ctx)
	}()
	go func() {
		defer wg.Done()
		students, errs[1] = b.deps.Roster.Students(ctx)
	}()
	go func() {
		defer wg.Done()
		statuses, errs[2] = b.deps.Status.Snapshot(ctx)
	}()
	go func() {
		defer wg.Done()
		absent, errs[3] = b.deps.Absences.QueryAbsentPersonIDs(ctx, core.TodayUTC())
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			err = errors.Wrap(err, "loading board")
			b.mu.Lock()
			b.loadErr = err
			b.mu.Unlock()
			return err
		}
	}

	statusMap := make(map[roster.Key]StatusRecord, len(statuses))
	for _, rec := range statuses {
		statusMap[rec.Key()] = rec
	}

	merged := make([]Person, 0, len(staff)+len(students))
	for _, m := range staff {
		first, last := m.Names()
		p := Person{
			PersonID:     m.PersonID,
			Category:     roster.Staff,
			FirstName:    first,
			LastName:     last,
			FullName:     m.DisplayName(),
			GroupLabel:   roster.StaffGroupLabel,
			MarkedAbsent: absent[m.PersonID],
		}
		p.applyStatus(statusMap[p.Key()])
		merged = append(merged, p)
	}
	for _, m := range students {
		p := Person{
			PersonID:     m.PersonID,
			Category:     roster.Student,
			FirstName:    m.FirstName,
			LastName:     m.LastName,
			FullName:     m.DisplayName(),
			GroupLabel:   m.ClassName.String,
			GradeLevel:   m.GradeLevel,
			MarkedAbsent: absent[m.PersonID],
		}
		p.applyStatus(statusMap[p.Key()])
		merged = append(merged, p)
	}

	if b.stopped() {
		// a deactivated board discards in-flight results
		return nil
	}

	b.mu.Lock()
	b.people = merged
	b.loadErr = nil
	b.mu.Unlock()

	b.broadcast()
	return nil
}

// applyStatus copies a status record's flags onto the person. The zero
// record (no row yet) leaves everything unchecked.
func (p *Person) applyStatus(rec StatusRecord) {
	p.CheckedIn = rec.CheckedIn
	p.OutToday = rec.OutToday
	p.CheckedInAt = rec.CheckedInAt
	p.CheckedInBy = rec.CheckedInBy
}

// ToggleCheckIn flips the person's checked-in flag: locally first so the
// change is visible immediately, then as a durable upsert. Checking in
// clears "out today" and stamps when/by whom; un-checking clears the
// stamp but leaves "out today" alone. A failed write is logged and
// recovered with a full reload. Toggling someone not on the board is a
// caller contract breach and returns ErrUnknownPerson.
func (b *Board) ToggleCheckIn(ctx context.Context, personID int, category roster.Category, actor string) error {
	now := time.Now().UTC()

	b.mu.Lock()
	i := b.indexLocked(personID, category)
	if i < 0 {
		b.mu.Unlock()
		return ErrUnknownPerson
	}
	p := &b.people[i]
	p.CheckedIn = !p.CheckedIn
	if p.CheckedIn {
		p.OutToday = false
		p.CheckedInAt = null.TimeFrom(now)
		p.CheckedInBy = null.StringFrom(actor)
	} else {
		p.CheckedInAt = null.Time{}
		p.CheckedInBy = null.String{}
	}
	rec := statusOf(*p, now)
	b.mu.Unlock()

	b.broadcast()
	b.writeThrough(ctx, rec)
	return nil
}

// ToggleOutToday flips the person's out-today flag, forcing checked-in
// false when newly out. Same optimistic-then-durable pattern as
// ToggleCheckIn.
func (b *Board) ToggleOutToday(ctx context.Context, personID int, category roster.Category) error {
	now := time.Now().UTC()

	b.mu.Lock()
	i := b.indexLocked(personID, category)
	if i < 0 {
		b.mu.Unlock()
		return ErrUnknownPerson
	}
	p := &b.people[i]
	p.OutToday = !p.OutToday
	if p.OutToday {
		p.CheckedIn = false
	}
	rec := statusOf(*p, now)
	b.mu.Unlock()

	b.broadcast()
	b.writeThrough(ctx, rec)
	return nil
}

// writeThrough issues the durable upsert behind an optimistic update.
// On failure the optimistic change is discarded by reloading the store
// truth; the error never reaches the caller.
func (b *Board) writeThrough(ctx context.Context, rec StatusRecord) {
	if err := b.deps.Status.Upsert(ctx, rec); err != nil {
		b.deps.Logger.Error(fmt.Sprintf("status write failed, reloading: %v", err), err)
		if lerr := b.Load(ctx); lerr != nil {
			b.deps.Logger.Error(fmt.Sprintf("reload after failed write: %v", lerr), lerr)
		}
	}
}

func statusOf(p Person, now time.Time) StatusRecord {
	return StatusRecord{
		PersonID:    p.PersonID,
		Category:    p.Category,
		CheckedIn:   p.CheckedIn,
		OutToday:    p.OutToday,
		CheckedInAt: p.CheckedInAt,
		CheckedInBy: p.CheckedInBy,
		UpdatedAt:   now,
	}
}

// ResetAll bulk-clears every status record, appends a reset history
// entry and resynchronizes from the store. It reports success instead
// of returning an error: store failures are logged and reported to the
// initiating admin only.
func (b *Board) ResetAll(ctx context.Context, actor, notes string) bool {
	if notes == "" {
		notes = "Manual reset"
	}
	if err := b.deps.Status.ResetAll(ctx, actor, notes); err != nil {
		b.deps.Logger.Error(fmt.Sprintf("drill reset by %s failed: %v", actor, err), err)
		return false
	}
	if err := b.Load(ctx); err != nil {
		b.deps.Logger.Error(fmt.Sprintf("reload after reset: %v", err), err)
	}
	b.sendResetReport(actor, notes)
	return true
}

func (b *Board) sendResetReport(actor, notes string) {
	if b.deps.MailSvc == nil || b.deps.Conf == nil || b.deps.Conf.DrillReportEmail == "" {
		return
	}
	stats := b.Stats()
	b.deps.MailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: b.deps.Conf.DrillReportEmail}},
		Subject: "Drill board reset",
		Body: fmt.Sprintf(
			"The drill board was reset by %s on %s.\nNotes: %s\nTracked: %d staff, %d students.\n",
			actor, core.TodayUTC().Format("2006-01-02"), notes, stats.TotalStaff, stats.TotalStudents,
		),
	})
}

// History lists past resets, newest first.
func (b *Board) History(ctx context.Context) ([]ResetEntry, error) {
	return b.deps.Status.History(ctx)
}

// People returns a copy of the current merged list.
func (b *Board) People() []Person {
	b.mu.RLock()
	defer b.mu.RUnlock()
	people := make([]Person, len(b.people))
	copy(people, b.people)
	return people
}

// Err reports the board's error state: the failure of the most recent
// Load, or nil after a successful one. Previously loaded data stays
// visible through People while the state is set.
func (b *Board) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loadErr
}

// Stats derives the drill counters from the current list.
func (b *Board) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return ComputeStats(b.people)
}

// Classes returns the sorted distinct grouping labels of the current
// list for the class filter. The staff label is not a selectable
// option and is excluded.
func (b *Board) Classes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]bool)
	for _, p := range b.people {
		if p.GroupLabel != "" && p.GroupLabel != roster.StaffGroupLabel {
			seen[p.GroupLabel] = true
		}
	}
	classes := make([]string, 0, len(seen))
	for class := range seen {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}

// Watch opens the board's subscription to the status change stream and
// reloads on every signal. A subscription failure is not fatal: the
// board keeps working on manually triggered loads, and the error is
// returned for the caller to log or retry.
func (b *Board) Watch(ctx context.Context) error {
	sig, err := b.deps.Channel.Subscribe(ctx, StatusChannelName)
	if err != nil {
		b.deps.Logger.Warn(fmt.Sprintf("change stream unavailable, manual reloads only: %v", err), err)
		return errors.Wrap(err, "subscribing to status changes")
	}

	go func() {
		for {
			select {
			case <-b.done:
				return
			case _, ok := <-sig:
				if !ok {
					return
				}
				if err := b.Load(ctx); err != nil {
					b.deps.Logger.Error(fmt.Sprintf("reload on change signal: %v", err), err)
				}
			}
		}
	}()
	return nil
}

// Stop deactivates the board, tearing down the change subscription
// exactly once. Safe to call multiple times; results of loads still in
// flight are discarded.
func (b *Board) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		if err := b.deps.Channel.Close(); err != nil {
			b.deps.Logger.Warn(fmt.Sprintf("closing change stream: %v", err), err)
		}
	})
}

func (b *Board) stopped() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Updates subscribes to board refreshes; the returned cancel must be
// called when done. Signals are coalesced: a slow consumer sees at
// least one signal after any burst of changes.
func (b *Board) Updates() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextSub
	b.nextSub++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Board) broadcast() {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (b *Board) indexLocked(personID int, category roster.Category) int {
	for i := range b.people {
		if b.people[i].PersonID == personID && b.people[i].Category == category {
			return i
		}
	}
	return -1
}
