package service

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"demo-ingest/internal/api"
	"demo-ingest/internal/config"
	"demo-ingest/internal/domain"
	"demo-ingest/internal/repository"
	"demo-ingest/internal/testhelpers"
	"demo-ingest/internal/validation"
	"demo-ingest/internal/workqueue"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queuedTask struct {
	task  workqueue.Task
	queue string
}

// recordingQueue collects submitted tasks so tests can run them in order.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
}

func (q *recordingQueue) Submit(task workqueue.Task, queueName string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, queuedTask{task: task, queue: queueName})
	return nil
}

func (q *recordingQueue) pop() (queuedTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return queuedTask{}, false
	}
	next := q.tasks[0]
	q.tasks = q.tasks[1:]
	return next, true
}

func (q *recordingQueue) pending() []queuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queuedTask(nil), q.tasks...)
}

type fakeParser struct {
	healthErr error
	uploadErr error
	uploads   []string
	// onUpload runs while the upload is in flight.
	onUpload func(jobID string)
}

func (p *fakeParser) CheckHealth(ctx context.Context) error { return p.healthErr }

func (p *fakeParser) UploadDemo(ctx context.Context, filePath, jobID string) error {
	if p.uploadErr != nil {
		return p.uploadErr
	}
	p.uploads = append(p.uploads, jobID)
	if p.onUpload != nil {
		p.onUpload(jobID)
	}
	return nil
}

type harness struct {
	jobRepo         *repository.JobRepository
	summaryRepo     *repository.SummaryRepository
	eventRepo       *repository.EventRepository
	leaderboardRepo *repository.LeaderboardRepository
	queue           *recordingQueue
	parser          *fakeParser
	tracker         *JobTracker
	registry        *Registry
	ingestor        *Ingestor
	aggregator      *Aggregator
	orchestrator    *Orchestrator
	leaderboards    *LeaderboardCalculator
	groups          *GroupService
	sweeper         *Sweeper
}

func newHarness(t *testing.T, appEnv string) *harness {
	t.Helper()
	sqlDB, queries := testhelpers.NewTestQueries(t)
	logger := zerolog.Nop()
	cfg := &config.Config{
		AppEnv:          appEnv,
		DemoDir:         t.TempDir(),
		StaleJobTimeout: time.Hour,
		JobRetention:    24 * time.Hour,
	}

	jobRepo := repository.NewJobRepository(sqlDB, queries, logger)
	matchRepo := repository.NewMatchRepository(sqlDB, queries, logger)
	playerRepo := repository.NewPlayerRepository(sqlDB, queries, logger)
	eventRepo := repository.NewEventRepository(sqlDB, queries, logger)
	summaryRepo := repository.NewSummaryRepository(sqlDB, queries, logger)
	groupRepo := repository.NewGroupRepository(sqlDB, queries, logger)
	leaderboardRepo := repository.NewLeaderboardRepository(sqlDB, queries, logger)

	h := &harness{
		jobRepo:         jobRepo,
		summaryRepo:     summaryRepo,
		eventRepo:       eventRepo,
		leaderboardRepo: leaderboardRepo,
		queue:           &recordingQueue{},
		parser:          &fakeParser{},
	}
	v := validation.New()

	var err error
	h.aggregator, err = NewAggregator(cfg, jobRepo, matchRepo, eventRepo, summaryRepo, h.queue, logger)
	require.NoError(t, err)
	h.tracker = NewJobTracker(jobRepo, h.aggregator, h.queue, logger)
	h.registry = NewRegistry(jobRepo, matchRepo, playerRepo, h.tracker, v, cfg, logger)
	h.ingestor = NewIngestor(jobRepo, eventRepo, v, logger)
	h.orchestrator = NewOrchestrator(cfg, h.tracker, h.parser, h.queue, logger)
	h.leaderboards = NewLeaderboardCalculator(groupRepo, summaryRepo, leaderboardRepo, logger)
	h.groups = NewGroupService(groupRepo, logger)
	h.sweeper = NewSweeper(cfg, jobRepo, h.tracker, logger)
	return h
}

// drain runs queued tasks until none remain, calling failure hooks the way
// the workqueue does for permanent errors.
func (h *harness) drain(t *testing.T) []error {
	t.Helper()
	ctx := context.Background()
	var errs []error
	for {
		next, ok := h.queue.pop()
		if !ok {
			return errs
		}
		if err := next.task.Execute(ctx); err != nil {
			if fh, ok := next.task.(workqueue.FailureHandler); ok && workqueue.IsPermanent(err) {
				fh.OnFailure(ctx, err)
			}
			errs = append(errs, err)
		}
	}
}

func (h *harness) startJob(t *testing.T) *domain.ProcessingJob {
	t.Helper()
	job, err := h.orchestrator.SubmitDemo(context.Background(), strings.NewReader("HL2DEMO"))
	require.NoError(t, err)
	require.Empty(t, h.drain(t))
	return job
}

func envelope(t *testing.T, records any, index, total int, last bool) validation.BatchEnvelope {
	t.Helper()
	data, err := json.Marshal(records)
	require.NoError(t, err)
	return validation.BatchEnvelope{Data: data, BatchIndex: &index, TotalBatches: &total, IsLast: &last}
}

func dust2Metadata() validation.MatchMetadata {
	m := validation.MatchMetadata{
		Map:              "de_dust2",
		WinningTeamScore: 16,
		LosingTeamScore:  14,
		MatchType:        "faceit",
		TotalRounds:      30,
		PlaybackTicks:    192000,
	}
	for _, p := range testhelpers.Roster() {
		m.Players = append(m.Players, validation.RosterPlayer{SteamID: p.SteamID, Name: p.Name, Team: string(p.Team)})
	}
	return m
}

func roundOneFights() []domain.GunfightEvent {
	p := testhelpers.SteamID
	return []domain.GunfightEvent{
		testhelpers.Kill(1, 100, p(1), "T", p(6), "CT"),
		testhelpers.Kill(1, 200, p(7), "CT", p(2), "T"),
		testhelpers.Kill(1, 300, p(3), "T", p(7), "CT"),
	}
}

// ingestMatch runs one demo through the whole pipeline and returns its job.
func ingestMatch(t *testing.T, h *harness) *domain.ProcessingJob {
	t.Helper()
	ctx := context.Background()
	job := h.startJob(t)

	applied, err := h.tracker.UpdateProgress(ctx, job.UUID, domain.JobStatusProcessing, 40, "Parsing demo")
	require.NoError(t, err)
	require.True(t, applied)

	_, err = h.registry.RegisterMetadata(ctx, job.UUID, dust2Metadata())
	require.NoError(t, err)

	_, err = h.ingestor.Ingest(ctx, job.UUID, "gunfight", envelope(t, roundOneFights(), 1, 1, true))
	require.NoError(t, err)
	_, err = h.ingestor.Ingest(ctx, job.UUID, "round", envelope(t, []domain.RoundEvent{testhelpers.RoundEnd(1, 400, "T")}, 1, 1, true))
	require.NoError(t, err)

	applied, err = h.tracker.Complete(ctx, job.UUID, domain.JobStatusCompleted, nil)
	require.NoError(t, err)
	require.True(t, applied)
	require.Empty(t, h.drain(t))
	return job
}

func TestPipeline_SingleDemoProducesTenSummaries(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()

	job := ingestMatch(t, h)
	assert.Equal(t, []string{job.UUID}, h.parser.uploads)

	stored, err := h.tracker.FindByJobID(ctx, job.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
	assert.Equal(t, 100, stored.ProgressPercent)
	assert.Equal(t, StepCompleted, stored.CurrentStep)
	assert.NotNil(t, stored.CompletedAt)

	match, err := h.registry.Match(ctx, *job.MatchID)
	require.NoError(t, err)
	assert.Equal(t, "de_dust2", match.Map)
	assert.Equal(t, 16, match.WinningTeamScore)
	assert.Nil(t, match.MatchHash, "hashes are only kept in production")
	assert.Equal(t, 3, match.TotalFightEvents)

	summaries, err := h.summaryRepo.ListForMatch(ctx, *job.MatchID)
	require.NoError(t, err)
	require.Len(t, summaries, 10)
	for _, s := range summaries {
		if s.SteamID == testhelpers.SteamID(1) {
			assert.Equal(t, 1, s.Kills)
			assert.Equal(t, 1, s.FirstKills)
		}
	}
}

func TestAggregator_ReprocessUsesHighQueue(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()
	job := ingestMatch(t, h)

	require.NoError(t, h.aggregator.Reprocess(ctx, *job.MatchID))
	pending := h.queue.pending()
	require.Len(t, pending, 1)
	assert.Equal(t, workqueue.QueueHigh, pending[0].queue)
	assert.Empty(t, h.drain(t))

	assert.ErrorIs(t, h.aggregator.Reprocess(ctx, 9999), domain.ErrMatchNotFound)
}

func TestIngest_TwoGunfightBatchesAreUnioned(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()
	job := h.startJob(t)
	_, err := h.registry.RegisterMetadata(ctx, job.UUID, dust2Metadata())
	require.NoError(t, err)

	fights := roundOneFights()
	res, err := h.ingestor.Ingest(ctx, job.UUID, "gunfight", envelope(t, fights[:2], 1, 2, false))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)

	progress, err := h.ingestor.Completeness(ctx, job.UUID)
	require.NoError(t, err)
	assert.False(t, progress[1].Complete)
	assert.Equal(t, []int{2}, progress[1].Missing)

	_, err = h.aggregator.Aggregate(ctx, *job.MatchID)
	assert.ErrorIs(t, err, domain.ErrIncompleteIngestion)

	res, err = h.ingestor.Ingest(ctx, job.UUID, "gunfight", envelope(t, fights[2:], 2, 2, true))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	// replaying the first batch adds nothing
	res, err = h.ingestor.Ingest(ctx, job.UUID, "gunfight", envelope(t, fights[:2], 1, 2, false))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 2, res.Duplicates)

	stored, err := h.eventRepo.Gunfights(ctx, *job.MatchID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	progress, err = h.ingestor.Completeness(ctx, job.UUID)
	require.NoError(t, err)
	for _, p := range progress {
		assert.True(t, p.Complete, p.EventName)
	}

	_, err = h.aggregator.Aggregate(ctx, *job.MatchID)
	assert.NoError(t, err)
}

func TestIngest_UnknownEventName(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	job := h.startJob(t)

	_, err := h.ingestor.Ingest(context.Background(), job.UUID, "bomb", envelope(t, []int{1}, 1, 1, true))
	var unknown *validation.UnknownEventError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, err.Error(), "round, gunfight, grenade, damage")
}

func TestIngest_RejectsUnknownAndFinishedJobs(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()
	body := envelope(t, roundOneFights(), 1, 1, true)

	_, err := h.ingestor.Ingest(ctx, "no-such-job", "gunfight", body)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	job := h.startJob(t)
	_, err = h.tracker.Fail(ctx, job.UUID, "parser crashed")
	require.NoError(t, err)

	_, err = h.ingestor.Ingest(ctx, job.UUID, "gunfight", body)
	assert.ErrorIs(t, err, domain.ErrJobTerminal)
}

func TestIngest_InvalidRecordRejectsWholeBatch(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()
	job := h.startJob(t)

	fights := roundOneFights()
	fights[1].Player1.HPStart = 150

	_, err := h.ingestor.Ingest(ctx, job.UUID, "gunfight", envelope(t, fights, 1, 1, true))
	var batchErr *validation.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, []string{"data[1].player_1.hp_start"}, batchErr.FieldNames())

	stored, err := h.eventRepo.Gunfights(ctx, *job.MatchID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestJobTracker_UnknownJobNeverErrors(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()

	applied, err := h.tracker.UpdateProgress(ctx, "missing", domain.JobStatusProcessing, 50, "Parsing")
	assert.NoError(t, err)
	assert.False(t, applied)

	applied, err = h.tracker.Complete(ctx, "missing", domain.JobStatusCompleted, nil)
	assert.NoError(t, err)
	assert.False(t, applied)
}

func TestJobTracker_CompletionAfterTerminalIsNoop(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()
	job := h.startJob(t)

	applied, err := h.tracker.Fail(ctx, job.UUID, "parser crashed")
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = h.tracker.Complete(ctx, job.UUID, domain.JobStatusCompleted, nil)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = h.tracker.UpdateProgress(ctx, job.UUID, domain.JobStatusProcessing, 90, "Parsing")
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := h.tracker.FindByJobID(ctx, job.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "parser crashed", *stored.ErrorMessage)
	assert.Empty(t, h.queue.pending(), "failed jobs are not aggregated")
}

func TestJobTracker_ProgressNeverDecreases(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()
	job := h.startJob(t)

	_, err := h.tracker.UpdateProgress(ctx, job.UUID, domain.JobStatusProcessing, 40, "Parsing")
	require.NoError(t, err)
	_, err = h.tracker.UpdateProgress(ctx, job.UUID, domain.JobStatusProcessing, 20, "Late report")
	require.NoError(t, err)

	stored, err := h.tracker.FindByJobID(ctx, job.UUID)
	require.NoError(t, err)
	assert.Equal(t, 40, stored.ProgressPercent)

	// a terminal status on the progress path completes the job
	applied, err := h.tracker.UpdateProgress(ctx, job.UUID, domain.JobStatusCompleted, 100, "Done")
	require.NoError(t, err)
	assert.True(t, applied)
	stored, err = h.tracker.FindByJobID(ctx, job.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, stored.Status)
}

func TestJobTracker_PendingReportNeverRegressesProcessing(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()
	job := h.startJob(t)

	applied, err := h.tracker.UpdateProgress(ctx, job.UUID, domain.JobStatusProcessing, 40, "Parsing")
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = h.tracker.UpdateProgress(ctx, job.UUID, domain.JobStatusPending, 50, "Uploading demo")
	require.NoError(t, err)
	assert.False(t, applied)

	stored, err := h.tracker.FindByJobID(ctx, job.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, stored.Status)
	assert.Equal(t, 40, stored.ProgressPercent)
	assert.Equal(t, "Parsing", stored.CurrentStep)
}

func TestOrchestrator_RetriedDispatchKeepsParserProgress(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()
	job := h.startJob(t)

	_, err := h.tracker.UpdateProgress(ctx, job.UUID, domain.JobStatusProcessing, 30, "Parsing")
	require.NoError(t, err)

	require.NoError(t, h.orchestrator.dispatch(ctx, job.UUID, job.DemoPath))

	stored, err := h.tracker.FindByJobID(ctx, job.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, stored.Status)
	assert.Equal(t, 30, stored.ProgressPercent)
	assert.Equal(t, "Parsing", stored.CurrentStep)
}

func TestOrchestrator_ProgressDuringUploadIsKept(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()
	h.parser.onUpload = func(jobID string) {
		_, err := h.tracker.UpdateProgress(ctx, jobID, domain.JobStatusProcessing, 30, "Parsing")
		require.NoError(t, err)
	}

	job := h.startJob(t)

	stored, err := h.tracker.FindByJobID(ctx, job.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, stored.Status)
	assert.Equal(t, 30, stored.ProgressPercent)
	assert.Equal(t, "Parsing", stored.CurrentStep)
}

func TestMatchHash_IdempotentAndOrderIndependent(t *testing.T) {
	meta := testhelpers.Dust2Meta()
	roster := testhelpers.Roster()

	first := MatchHash(meta, roster)
	assert.Equal(t, first, MatchHash(meta, roster))
	assert.Len(t, first, 64)

	shuffled := append([]domain.RosterEntry(nil), roster...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	assert.Equal(t, first, MatchHash(meta, shuffled))

	swapped := append([]domain.RosterEntry(nil), roster...)
	swapped[0].Team = domain.TeamB
	assert.NotEqual(t, first, MatchHash(meta, swapped))

	meta.LosingTeamScore = 13
	assert.NotEqual(t, first, MatchHash(meta, roster))
}

func TestRegistry_ComputeMatchHashOnlyInProduction(t *testing.T) {
	meta, roster := testhelpers.Dust2Meta(), testhelpers.Roster()

	assert.Nil(t, newHarness(t, config.EnvDevelopment).registry.ComputeMatchHash(meta, roster))

	hash := newHarness(t, config.EnvProduction).registry.ComputeMatchHash(meta, roster)
	require.NotNil(t, hash)
	assert.Equal(t, MatchHash(meta, roster), *hash)
}

func TestRegistry_DuplicateMatchFailsJob(t *testing.T) {
	h := newHarness(t, config.EnvProduction)
	ctx := context.Background()

	first := h.startJob(t)
	_, err := h.registry.RegisterMetadata(ctx, first.UUID, dust2Metadata())
	require.NoError(t, err)

	// the same match registered again by its own job is fine
	_, err = h.registry.RegisterMetadata(ctx, first.UUID, dust2Metadata())
	require.NoError(t, err)

	second := h.startJob(t)
	_, err = h.registry.RegisterMetadata(ctx, second.UUID, dust2Metadata())
	assert.ErrorIs(t, err, domain.ErrDuplicateMatch)

	stored, err := h.tracker.FindByJobID(ctx, second.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "duplicate match")
}

func TestRegistry_RejectsInvalidMetadata(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	job := h.startJob(t)

	m := dust2Metadata()
	m.LosingTeamScore = 17
	_, err := h.registry.RegisterMetadata(context.Background(), job.UUID, m)
	var batchErr *validation.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Contains(t, batchErr.FieldNames(), "losing_team_score")
}

func TestRegistry_UpsertPlayerCountsMatches(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()

	_, err := h.registry.UpsertPlayer(ctx, testhelpers.SteamID(42), "ropz")
	require.NoError(t, err)
	p, err := h.registry.UpsertPlayer(ctx, testhelpers.SteamID(42), "")
	require.NoError(t, err)
	assert.Equal(t, 2, p.TotalMatches)
	assert.Equal(t, "ropz", p.Name, "an empty name keeps the known one")
}

func TestOrchestrator_ParserFailuresFailTheJob(t *testing.T) {
	tests := []struct {
		name      string
		healthErr error
		uploadErr error
	}{
		{"parser unavailable", &api.ServiceUnavailableError{URL: "http://parser/health", StatusCode: 503}, nil},
		{"upload rejected", nil, &api.UploadFailedError{JobID: "x", StatusCode: 500, Body: "disk full"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, config.EnvTesting)
			h.parser.healthErr = tt.healthErr
			h.parser.uploadErr = tt.uploadErr
			ctx := context.Background()

			job, err := h.orchestrator.SubmitDemo(ctx, strings.NewReader("HL2DEMO"))
			require.NoError(t, err)
			_, err = os.Stat(job.DemoPath)
			require.NoError(t, err)

			errs := h.drain(t)
			require.Len(t, errs, 1)
			assert.True(t, workqueue.IsPermanent(errs[0]))

			stored, err := h.tracker.FindByJobID(ctx, job.UUID)
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusFailed, stored.Status)
			assert.NotNil(t, stored.CompletedAt)
		})
	}
}

func TestLeaderboard_RankAveragesAndBreaksTies(t *testing.T) {
	p := testhelpers.SteamID
	summaries := []domain.PlayerMatchSummary{
		{MatchID: 1, SteamID: p(1), HeadshotPercentage: 60},
		{MatchID: 2, SteamID: p(1), HeadshotPercentage: 40},
		{MatchID: 1, SteamID: p(2), HeadshotPercentage: 50},
		{MatchID: 1, SteamID: p(3), HeadshotPercentage: 70},
		{MatchID: 2, SteamID: p(4), HeadshotPercentage: 50},
	}

	entries := Rank(summaries, domain.LeaderboardAim)
	require.Len(t, entries, 4)

	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.SteamID
		assert.Equal(t, i+1, e.Position)
	}
	assert.Equal(t, []string{p(3), p(1), p(2), p(4)}, got)
	assert.InDelta(t, 50.0, entries[1].Value, 1e-9)
	assert.Equal(t, 2, entries[1].MatchesPlayed)
}

func TestLeaderboard_EmptyWindowClearsStaleRows(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()

	group, err := h.groups.Create(ctx, "Team Spirit")
	require.NoError(t, err)
	_, err = h.groups.AddMembers(ctx, group.ID, []string{testhelpers.SteamID(1)})
	require.NoError(t, err)

	_, err = h.leaderboardRepo.Replace(ctx, group.ID, domain.LeaderboardAim, domain.Window7Days, []domain.LeaderboardEntry{{
		ID:              "stale-entry",
		GroupID:         group.ID,
		LeaderboardType: domain.LeaderboardAim,
		TimeWindow:      domain.Window7Days,
		SteamID:         testhelpers.SteamID(1),
		Position:        1,
		Value:           55,
		MatchesPlayed:   3,
		Generation:      "old",
		CalculatedAt:    time.Now().UTC().Add(-48 * time.Hour),
	}})
	require.NoError(t, err)

	require.NoError(t, h.leaderboards.Calculate(ctx, group.ID, time.Now().UTC()))

	entries, err := h.leaderboards.Leaderboard(ctx, group.ID, domain.LeaderboardAim, domain.Window7Days)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLeaderboard_CalculatedFromAggregatedMatch(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()
	ingestMatch(t, h)

	group, err := h.groups.Create(ctx, "FaZe")
	require.NoError(t, err)
	var members []string
	for _, p := range testhelpers.Roster() {
		members = append(members, p.SteamID)
	}
	added, err := h.groups.AddMembers(ctx, group.ID, members)
	require.NoError(t, err)
	assert.Equal(t, 10, added)

	require.NoError(t, h.leaderboards.Task().Execute(ctx))

	for _, w := range domain.TimeWindows {
		entries, err := h.leaderboards.Leaderboard(ctx, group.ID, domain.LeaderboardImpact, w)
		require.NoError(t, err)
		require.Len(t, entries, 10, w)
		assert.Equal(t, 1, entries[0].Position)
		assert.GreaterOrEqual(t, entries[0].Value, entries[9].Value)
		assert.Equal(t, entries[0].Generation, entries[9].Generation)
	}

	_, err = h.leaderboards.Leaderboard(ctx, "missing", domain.LeaderboardAim, domain.Window7Days)
	assert.ErrorIs(t, err, domain.ErrGroupNotFound)
}

func TestSweeper_StaleAndRetention(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	ctx := context.Background()
	job := h.startJob(t)
	now := time.Now().UTC()

	failed, err := h.sweeper.SweepStale(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, failed, "fresh jobs are not stale")

	failed, err = h.sweeper.SweepStale(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	stored, err := h.tracker.FindByJobID(ctx, job.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)

	deleted, err := h.sweeper.SweepRetention(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = h.sweeper.SweepRetention(ctx, now.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = h.tracker.FindByJobID(ctx, job.UUID)
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestOrchestrator_StoresDemoUnderDemoDir(t *testing.T) {
	h := newHarness(t, config.EnvTesting)
	job := h.startJob(t)

	data, err := os.ReadFile(job.DemoPath)
	require.NoError(t, err)
	assert.Equal(t, "HL2DEMO", string(data))
	assert.Equal(t, ".dem", filepath.Ext(job.DemoPath))

	stored, err := h.tracker.FindByJobID(context.Background(), job.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusProcessing, stored.Status)
	assert.Equal(t, "Demo sent to parser", stored.CurrentStep)
}
