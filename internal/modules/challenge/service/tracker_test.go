package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vmquan2200/edufinai/internal/clock"
	"github.com/vmquan2200/edufinai/internal/entity"
	challengeRepo "github.com/vmquan2200/edufinai/internal/modules/challenge/repository"
	rewardService "github.com/vmquan2200/edufinai/internal/modules/reward/service"
	"github.com/vmquan2200/edufinai/internal/modules/rule"
	"github.com/vmquan2200/edufinai/pkg/apperror"
)

type fakeChallengeRepo struct {
	challenges []entity.Challenge
}

func (f *fakeChallengeRepo) Create(_ context.Context, c *entity.Challenge) error {
	f.challenges = append(f.challenges, *c)
	return nil
}

func (f *fakeChallengeRepo) Update(_ context.Context, _ *entity.Challenge) error { return nil }

func (f *fakeChallengeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Challenge, error) {
	for i := range f.challenges {
		if f.challenges[i].ID == id {
			return &f.challenges[i], nil
		}
	}
	return nil, apperror.ErrNotFound
}

func (f *fakeChallengeRepo) List(_ context.Context, _ challengeRepo.ChallengeFilter) ([]entity.Challenge, int64, error) {
	return f.challenges, int64(len(f.challenges)), nil
}

func (f *fakeChallengeRepo) ListEligible(_ context.Context, now time.Time) ([]entity.Challenge, error) {
	var out []entity.Challenge
	for _, c := range f.challenges {
		if c.Eligible(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChallengeRepo) SetApproval(_ context.Context, id uuid.UUID, status entity.ApprovalStatus, _ uuid.UUID, _ string) error {
	for i := range f.challenges {
		if f.challenges[i].ID == id {
			f.challenges[i].ApprovalStatus = status
			return nil
		}
	}
	return apperror.ErrNotFound
}

// fakeProgressRepo serializes Mutate per (user, challenge) pair exactly as
// the row lock does in Postgres.
type fakeProgressRepo struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	rows  map[string]*entity.UserChallengeProgress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{
		locks: make(map[string]*sync.Mutex),
		rows:  make(map[string]*entity.UserChallengeProgress),
	}
}

func progressKey(userID, challengeID uuid.UUID) string {
	return userID.String() + "/" + challengeID.String()
}

func (f *fakeProgressRepo) rowLock(key string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	f.locks[key] = l
	return l
}

func (f *fakeProgressRepo) Mutate(_ context.Context, userID, challengeID uuid.UUID, fn func(row *entity.UserChallengeProgress, found bool) (challengeRepo.MutateAction, error)) error {
	key := progressKey(userID, challengeID)
	l := f.rowLock(key)
	l.Lock()
	defer l.Unlock()

	f.mu.Lock()
	stored, found := f.rows[key]
	f.mu.Unlock()

	var row entity.UserChallengeProgress
	if found {
		row = *stored
	} else {
		row = entity.UserChallengeProgress{UserID: userID, ChallengeID: challengeID}
	}

	action, err := fn(&row, found)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch action {
	case challengeRepo.ActionSave:
		saved := row
		f.rows[key] = &saved
	case challengeRepo.ActionDelete:
		delete(f.rows, key)
	}
	return nil
}

func (f *fakeProgressRepo) Get(_ context.Context, userID, challengeID uuid.UUID) (*entity.UserChallengeProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[progressKey(userID, challengeID)]; ok {
		copied := *row
		return &copied, nil
	}
	return nil, apperror.ErrNotFound
}

func (f *fakeProgressRepo) ListByUser(_ context.Context, userID uuid.UUID, completed *bool) ([]entity.UserChallengeProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.UserChallengeProgress
	for _, row := range f.rows {
		if row.UserID != userID {
			continue
		}
		if completed != nil && row.Completed != *completed {
			continue
		}
		out = append(out, *row)
	}
	return out, nil
}

func (f *fakeProgressRepo) ListByScope(_ context.Context, _ entity.ChallengeScope) ([]entity.UserChallengeProgress, error) {
	return nil, nil
}

type fakeRewards struct {
	mu     sync.Mutex
	grants []rewardService.GrantInput
	fail   bool
}

func (f *fakeRewards) Grant(_ context.Context, in rewardService.GrantInput) (*rewardService.GrantResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("reward ledger down")
	}
	f.grants = append(f.grants, in)
	return &rewardService.GrantResult{Status: "SUCCESS", Score: in.Score}, nil
}

type fakeBadges struct {
	mu     sync.Mutex
	awards []string
	fail   bool
}

func (f *fakeBadges) Award(_ context.Context, _ uuid.UUID, badgeCode string, _ *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("badge store down")
	}
	f.awards = append(f.awards, badgeCode)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakeNotifier) Notify(_ context.Context, _ uuid.UUID, _, title, _ string, _ uuid.UUID, _ map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("push provider down")
	}
	f.sent = append(f.sent, title)
	return nil
}

func quizChallenge(target int, maxPerDay int) entity.Challenge {
	return entity.Challenge{
		ID:                uuid.New(),
		Title:             "Quiz streak",
		Type:              entity.ChallengeTypeQuiz,
		Scope:             entity.ScopeDaily,
		TargetValue:       &target,
		Active:            true,
		RuleSpec:          `{"event_type":"quiz_completed"}`,
		RewardScore:       50,
		RewardBadgeCode:   "quiz_master",
		MaxProgressPerDay: maxPerDay,
		ApprovalStatus:    entity.ApprovalApproved,
	}
}

type trackerFixture struct {
	tracker  ProgressTracker
	chRepo   *fakeChallengeRepo
	progRepo *fakeProgressRepo
	rewards  *fakeRewards
	badges   *fakeBadges
	notifier *fakeNotifier
	clk      *clock.Fixed
}

func newTrackerFixture(challenges ...entity.Challenge) *trackerFixture {
	f := &trackerFixture{
		chRepo:   &fakeChallengeRepo{challenges: challenges},
		progRepo: newFakeProgressRepo(),
		rewards:  &fakeRewards{},
		badges:   &fakeBadges{},
		notifier: &fakeNotifier{},
		clk:      &clock.Fixed{T: time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)},
	}
	f.tracker = NewProgressTracker(f.chRepo, f.progRepo, f.rewards, f.badges, f.notifier, f.clk, time.UTC)
	return f
}

func quizEvent() rule.Event {
	return rule.Event{EventType: "quiz_completed"}
}

func TestProcessEvent_LazyCreationAndIncrement(t *testing.T) {
	ch := quizChallenge(3, 0)
	f := newTrackerFixture(ch)
	userID := uuid.New()

	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, quizEvent()))

	row, err := f.progRepo.Get(context.Background(), userID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, row.CurrentProgress)
	assert.Equal(t, 3, row.TargetProgress)
	assert.False(t, row.Completed)
	assert.Equal(t, f.clk.T, row.StartedAt)
}

func TestProcessEvent_RuleMismatchIsNoOp(t *testing.T) {
	ch := quizChallenge(3, 0)
	f := newTrackerFixture(ch)
	userID := uuid.New()

	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, rule.Event{EventType: "deposit"}))

	_, err := f.progRepo.Get(context.Background(), userID, ch.ID)
	assert.Error(t, err, "no row should be created for a non-matching event")
}

func TestProcessEvent_IneligibleChallengesSkipped(t *testing.T) {
	pending := quizChallenge(3, 0)
	pending.ApprovalStatus = entity.ApprovalPending
	inactive := quizChallenge(3, 0)
	inactive.Active = false
	past := quizChallenge(3, 0)
	endAt := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	past.EndAt = &endAt

	f := newTrackerFixture(pending, inactive, past)
	userID := uuid.New()

	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, quizEvent()))

	rows, err := f.progRepo.ListByUser(context.Background(), userID, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestProcessEvent_CompletionSideEffectsOnce(t *testing.T) {
	ch := quizChallenge(2, 0)
	f := newTrackerFixture(ch)
	userID := uuid.New()

	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, quizEvent()))
	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, quizEvent()))

	row, err := f.progRepo.Get(context.Background(), userID, ch.ID)
	require.NoError(t, err)
	assert.True(t, row.Completed)
	require.NotNil(t, row.CompletedAt)
	assert.Equal(t, 2, row.CurrentProgress)

	require.Len(t, f.rewards.grants, 1)
	assert.Equal(t, 50, f.rewards.grants[0].Score)
	assert.Equal(t, entity.SourceChallenge, f.rewards.grants[0].SourceType)
	assert.Equal(t, []string{"quiz_master"}, f.badges.awards)
	assert.Equal(t, []string{"Quiz streak"}, f.notifier.sent)

	// Replaying qualifying events after completion changes nothing.
	for i := 0; i < 5; i++ {
		require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, quizEvent()))
	}
	row, _ = f.progRepo.Get(context.Background(), userID, ch.ID)
	assert.Equal(t, 2, row.CurrentProgress, "progress stays frozen at completion")
	assert.Len(t, f.rewards.grants, 1, "no repeated reward grant")
	assert.Len(t, f.badges.awards, 1)
	assert.Len(t, f.notifier.sent, 1)
}

func TestProcessEvent_DailyCap(t *testing.T) {
	ch := quizChallenge(5, 1)
	f := newTrackerFixture(ch)
	userID := uuid.New()

	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, quizEvent()))
	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, quizEvent()))

	row, err := f.progRepo.Get(context.Background(), userID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, row.CurrentProgress, "second same-day event hits the cap")
	assert.Equal(t, 1, row.ProgressCountToday)

	// Next calendar day: the cap counter resets.
	f.clk.Advance(24 * time.Hour)
	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, quizEvent()))

	row, _ = f.progRepo.Get(context.Background(), userID, ch.ID)
	assert.Equal(t, 2, row.CurrentProgress)
	assert.Equal(t, 1, row.ProgressCountToday)
}

func TestProcessEvent_SideEffectFailuresIsolated(t *testing.T) {
	ch := quizChallenge(1, 0)
	f := newTrackerFixture(ch)
	f.rewards.fail = true
	userID := uuid.New()

	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, quizEvent()))

	row, err := f.progRepo.Get(context.Background(), userID, ch.ID)
	require.NoError(t, err)
	assert.True(t, row.Completed, "transition survives a failed reward grant")
	assert.Len(t, f.badges.awards, 1, "badge award still runs")
	assert.Len(t, f.notifier.sent, 1, "notification still runs")
}

func TestProcessEvent_InvalidRuleSkipsOnlyThatChallenge(t *testing.T) {
	broken := quizChallenge(1, 0)
	broken.RuleSpec = `{"event_type":`
	healthy := quizChallenge(1, 0)
	healthy.Title = "Healthy"

	f := newTrackerFixture(broken, healthy)
	userID := uuid.New()

	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, quizEvent()))

	_, err := f.progRepo.Get(context.Background(), userID, broken.ID)
	assert.Error(t, err)

	row, err := f.progRepo.Get(context.Background(), userID, healthy.ID)
	require.NoError(t, err)
	assert.True(t, row.Completed)
}

func TestProcessEvent_ConcurrentEventsNoLostUpdates(t *testing.T) {
	const events = 50
	ch := quizChallenge(events, 0)
	f := newTrackerFixture(ch)
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.tracker.ProcessEvent(context.Background(), userID, quizEvent())
		}()
	}
	wg.Wait()

	row, err := f.progRepo.Get(context.Background(), userID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, events, row.CurrentProgress, "exactly one increment per qualifying event")
	assert.True(t, row.Completed)
	assert.Len(t, f.rewards.grants, 1, "completion side effects fire exactly once")
}

// racingProgressRepo mimics the storage semantics the production repository
// runs against: reading an absent row takes no lock, so concurrent first
// writers both reach the create path and the loser's insert fails on the
// composite primary key. Like the production repository, Mutate reruns the
// losing attempt once against the committed row.
type racingProgressRepo struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	rows  map[string]*entity.UserChallengeProgress
}

func newRacingProgressRepo() *racingProgressRepo {
	return &racingProgressRepo{
		locks: make(map[string]*sync.Mutex),
		rows:  make(map[string]*entity.UserChallengeProgress),
	}
}

func (f *racingProgressRepo) lockFor(key string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.locks[key]; ok {
		return l
	}
	l := &sync.Mutex{}
	f.locks[key] = l
	return l
}

func (f *racingProgressRepo) read(key string) (*entity.UserChallengeProgress, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[key]
	return row, ok
}

func (f *racingProgressRepo) attempt(userID, challengeID uuid.UUID, fn func(row *entity.UserChallengeProgress, found bool) (challengeRepo.MutateAction, error)) error {
	key := progressKey(userID, challengeID)

	if _, found := f.read(key); found {
		l := f.lockFor(key)
		l.Lock()
		defer l.Unlock()

		// Re-read under the lock, as FOR UPDATE does.
		if stored, stillFound := f.read(key); stillFound {
			row := *stored
			action, err := fn(&row, true)
			if err != nil {
				return err
			}

			f.mu.Lock()
			defer f.mu.Unlock()
			switch action {
			case challengeRepo.ActionSave:
				saved := row
				f.rows[key] = &saved
			case challengeRepo.ActionDelete:
				delete(f.rows, key)
			}
			return nil
		}
	}

	// Absent row: nothing to lock, every writer runs unserialized.
	row := entity.UserChallengeProgress{UserID: userID, ChallengeID: challengeID}
	action, err := fn(&row, false)
	if err != nil {
		return err
	}
	if action != challengeRepo.ActionSave {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.rows[key]; exists {
		return gorm.ErrDuplicatedKey
	}
	saved := row
	f.rows[key] = &saved
	return nil
}

func (f *racingProgressRepo) Mutate(_ context.Context, userID, challengeID uuid.UUID, fn func(row *entity.UserChallengeProgress, found bool) (challengeRepo.MutateAction, error)) error {
	err := f.attempt(userID, challengeID, fn)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = f.attempt(userID, challengeID, fn)
	}
	return err
}

func (f *racingProgressRepo) Get(_ context.Context, userID, challengeID uuid.UUID) (*entity.UserChallengeProgress, error) {
	if row, ok := f.read(progressKey(userID, challengeID)); ok {
		copied := *row
		return &copied, nil
	}
	return nil, apperror.ErrNotFound
}

func (f *racingProgressRepo) ListByUser(_ context.Context, _ uuid.UUID, _ *bool) ([]entity.UserChallengeProgress, error) {
	return nil, nil
}

func (f *racingProgressRepo) ListByScope(_ context.Context, _ entity.ChallengeScope) ([]entity.UserChallengeProgress, error) {
	return nil, nil
}

func TestProcessEvent_ConcurrentFirstEventsAllLand(t *testing.T) {
	const events = 20
	ch := quizChallenge(events+1, 0)
	chRepo := &fakeChallengeRepo{challenges: []entity.Challenge{ch}}
	progRepo := newRacingProgressRepo()
	clk := &clock.Fixed{T: time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)}
	tracker := NewProgressTracker(chRepo, progRepo, &fakeRewards{}, &fakeBadges{}, &fakeNotifier{}, clk, time.UTC)
	userID := uuid.New()

	// All events race for a (user, challenge) pair with no existing row,
	// exactly the burst right after a reset deleted it.
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tracker.ProcessEvent(context.Background(), userID, quizEvent())
		}()
	}
	wg.Wait()

	row, err := progRepo.Get(context.Background(), userID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, events, row.CurrentProgress, "losing first writers must rerun, not drop their increment")
	assert.Equal(t, events+1, row.TargetProgress)
}

func TestProcessEvent_FixedUnitIgnoresAmount(t *testing.T) {
	ch := quizChallenge(5, 0)
	f := newTrackerFixture(ch)
	userID := uuid.New()

	amount := 1000
	ev := quizEvent()
	ev.Amount = &amount
	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, ev))

	row, err := f.progRepo.Get(context.Background(), userID, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, row.CurrentProgress, "amount field must not inflate progress")
}

func TestGetSummary(t *testing.T) {
	ch := quizChallenge(4, 0)
	other := quizChallenge(2, 0)
	other.Title = "Untouched"
	f := newTrackerFixture(ch, other)
	userID := uuid.New()

	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, quizEvent()))

	summary, err := f.tracker.GetSummary(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalChallengeCount)
	require.Len(t, summary.Items, 2)

	percents := map[uuid.UUID]float64{}
	for _, item := range summary.Items {
		percents[item.ChallengeID] = item.ProgressPercent
	}
	assert.InDelta(t, 25.0, percents[ch.ID], 0.001)
}

func TestGetActiveAndCompletedProgress(t *testing.T) {
	done := quizChallenge(1, 0)
	open := quizChallenge(10, 0)
	f := newTrackerFixture(done, open)
	userID := uuid.New()

	require.NoError(t, f.tracker.ProcessEvent(context.Background(), userID, quizEvent()))

	active, err := f.tracker.GetActiveProgress(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, open.ID, active[0].ChallengeID)

	completed, err := f.tracker.GetCompletedProgress(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, done.ID, completed[0].ChallengeID)
}
