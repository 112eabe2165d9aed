package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stemsi/exstem-kiosk/internal/model"
)

type fakeRepo struct {
	mu          sync.Mutex
	settings    *model.PublishSettings
	published   *model.ExamDefinition
	drafts      map[string]*model.Draft
	submits     []model.Submission
	failAppend  bool
	failDraft   bool
	appendCalls int
}

func newFakeRepo(def *model.ExamDefinition, settings *model.PublishSettings) *fakeRepo {
	return &fakeRepo{settings: settings, published: def, drafts: map[string]*model.Draft{}}
}

func (r *fakeRepo) GetSettings(context.Context) (*model.PublishSettings, error) {
	return r.settings, nil
}

func (r *fakeRepo) GetPublished(context.Context) (*model.ExamDefinition, error) {
	return r.published, nil
}

func (r *fakeRepo) GetDraft(_ context.Context, examID, userID string) (*model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drafts[examID+":"+userID], nil
}

func (r *fakeRepo) SaveDraft(_ context.Context, examID, userID string, d *model.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDraft {
		return errors.New("disk full")
	}
	r.drafts[examID+":"+userID] = d
	return nil
}

func (r *fakeRepo) AppendSubmission(_ context.Context, s *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendCalls++
	if r.failAppend {
		return errors.New("connection refused")
	}
	r.submits = append(r.submits, *s)
	return nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (o *recordingObserver) Notify(e Event) {
	o.mu.Lock()
	o.events = append(o.events, e)
	o.mu.Unlock()
}

func (o *recordingObserver) count(t EventType) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, e := range o.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type recordingSpeaker struct{ said []string }

func (s *recordingSpeaker) Speak(text string) { s.said = append(s.said, text) }

type panickingSpeaker struct{}

func (panickingSpeaker) Speak(string) { panic("no audio device") }

func intPtr(i int) *int { return &i }

func sampleDefinition() *model.ExamDefinition {
	return &model.ExamDefinition{
		Meta: model.ExamMeta{ExamID: "MID-1", Title: "Midterm", DurationSec: 60},
		Questions: []model.Question{
			{ID: "1", Type: model.QuestionTypeMCQ, Text: "Pick B", Points: 2, Options: []string{"A", "B"}, Answer: intPtr(1)},
			{ID: "2", Type: model.QuestionTypeShort, Text: "Explain", Points: 3},
		},
	}
}

func sampleSettings(max int) *model.PublishSettings {
	return &model.PublishSettings{AccessCode: "MID2025", MaxViolations: max}
}

var student = model.SessionUser{Name: "Ana", ID: "s-01"}

func newTestController(repo *fakeRepo, clock *fakeClock, observers ...Observer) *Controller {
	return NewController(repo, Options{Clock: clock, Rand: rand.New(rand.NewPCG(1, 2))}, observers...)
}

func TestController_LoginWrongCodeChangesNothing(t *testing.T) {
	repo := newFakeRepo(sampleDefinition(), sampleSettings(3))
	c := newTestController(repo, newFakeClock())

	for _, code := range []string{"mid2025", "WRONG", ""} {
		if _, err := c.Login(context.Background(), code, student); !errors.Is(err, ErrInvalidAccessCode) {
			t.Fatalf("Login(%q) err = %v, want ErrInvalidAccessCode", code, err)
		}
	}
	snap := c.Snapshot()
	if snap.Status != StatusNotLoggedIn || snap.Violations != 0 || len(snap.IntegrityLog) != 0 || snap.Remaining != 0 {
		t.Fatalf("state mutated by failed login: %+v", snap)
	}
	if _, err := c.Submit(context.Background(), false); !errors.Is(err, ErrNotInSession) {
		t.Fatalf("Submit before login err = %v", err)
	}
}

func TestController_PartialPublishIsNotPublished(t *testing.T) {
	tests := []struct {
		name     string
		def      *model.ExamDefinition
		settings *model.PublishSettings
	}{
		{"settings only", nil, sampleSettings(3)},
		{"exam only", sampleDefinition(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(newFakeRepo(tt.def, tt.settings), newFakeClock())
			if _, err := c.Login(context.Background(), "MID2025", student); !errors.Is(err, ErrInvalidAccessCode) {
				t.Fatalf("err = %v, want ErrInvalidAccessCode", err)
			}
			if c.Status() != StatusNotLoggedIn {
				t.Fatal("controller left NotLoggedIn")
			}
		})
	}
}

func TestController_ManualSubmitScenario(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(sampleDefinition(), sampleSettings(3))
	c := newTestController(repo, newFakeClock())

	snap, err := c.Login(ctx, "MID2025", student)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if snap.Status != StatusInSession || snap.Remaining != 60 || snap.Clock != "00:01:00" {
		t.Fatalf("snapshot after login: %+v", snap)
	}
	if _, err := c.Login(ctx, "MID2025", student); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Login err = %v", err)
	}

	if err := c.SetAnswer("q_1", model.ChoiceAnswer(1)); err != nil {
		t.Fatalf("SetAnswer mcq: %v", err)
	}
	if err := c.SetAnswer("q_2", model.TextAnswer("  because  ")); err != nil {
		t.Fatalf("SetAnswer short: %v", err)
	}

	sub, err := c.Submit(ctx, false)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Grade.Total != 5 || sub.Grade.Got != 2 || sub.Auto {
		t.Fatalf("grade = %+v auto=%v, want 2/5 manual", sub.Grade, sub.Auto)
	}
	if v := sub.Answers["q_2"]; !v.Equal(model.TextAnswer("because")) {
		t.Fatalf("short answer = %v, want trimmed", v)
	}
	if c.Status() != StatusFinished {
		t.Fatal("not finished after submit")
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed")
	}
	if err := c.SetAnswer("q_1", model.ChoiceAnswer(0)); !errors.Is(err, ErrNotInSession) {
		t.Fatalf("SetAnswer after finish err = %v", err)
	}
}

func TestController_DoubleSubmitAppendsOnce(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(sampleDefinition(), sampleSettings(3))
	clock := newFakeClock()
	c := newTestController(repo, clock)
	if _, err := c.Login(ctx, "MID2025", student); err != nil {
		t.Fatal(err)
	}

	clock.Advance(2 * time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				_, _ = c.Submit(ctx, false)
			case 1:
				_, _ = c.Tick(ctx)
			default:
				_, _ = c.HandleEvent(ctx, EventBlur)
			}
		}(i)
	}
	wg.Wait()

	if len(repo.submits) != 1 {
		t.Fatalf("submissions = %d, want 1", len(repo.submits))
	}
	first, _ := c.Result()
	again, err := c.Submit(ctx, false)
	if err != nil || again != first || len(repo.submits) != 1 {
		t.Fatalf("re-submit changed state: err=%v", err)
	}
}

func TestController_SingleBlurAutoSubmits(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(sampleDefinition(), sampleSettings(1))
	c := newTestController(repo, newFakeClock())
	if _, err := c.Login(ctx, "MID2025", student); err != nil {
		t.Fatal(err)
	}

	r, err := c.HandleEvent(ctx, EventBlur)
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if !r.AutoSubmit {
		t.Fatal("threshold not reported")
	}
	if len(repo.submits) != 1 {
		t.Fatalf("submissions = %d, want 1", len(repo.submits))
	}
	sub := repo.submits[0]
	if sub.Violations != 1 || !sub.Auto {
		t.Fatalf("submission violations=%d auto=%v", sub.Violations, sub.Auto)
	}
	if countViolationEntries(sub.IntegrityLog) != sub.Violations {
		t.Fatal("violation count does not match log")
	}

	if r, _ := c.HandleEvent(ctx, EventVisibilityHidden); !r.Ignored || r.Violations != 1 {
		t.Fatalf("event after finish: %+v", r)
	}
}

func TestController_TimerExpirySubmits(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(sampleDefinition(), sampleSettings(3))
	clock := newFakeClock()
	obs := &recordingObserver{}
	c := newTestController(repo, clock, obs)
	if _, err := c.Login(ctx, "MID2025", student); err != nil {
		t.Fatal(err)
	}

	clock.Advance(30 * time.Second)
	if rem, err := c.Tick(ctx); err != nil || rem != 30 {
		t.Fatalf("Tick = (%d, %v), want 30", rem, err)
	}
	clock.Advance(31 * time.Second)
	if _, err := c.Tick(ctx); err != nil {
		t.Fatalf("Tick at expiry: %v", err)
	}
	if _, err := c.Tick(ctx); err != nil {
		t.Fatalf("Tick after finish: %v", err)
	}

	if len(repo.submits) != 1 || !repo.submits[0].Auto {
		t.Fatalf("submits = %+v", repo.submits)
	}
	log := repo.submits[0].IntegrityLog
	if log[len(log)-1].Message != "time expired - auto-submitted" {
		t.Fatalf("last log entry = %q", log[len(log)-1].Message)
	}
	if obs.count(EventTypeFinished) != 1 {
		t.Fatalf("finished events = %d", obs.count(EventTypeFinished))
	}
	if obs.count(EventTypeTick) != 3 {
		t.Fatalf("tick events = %d, want 3", obs.count(EventTypeTick))
	}
}

func TestController_DraftSaveAndRestore(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(sampleDefinition(), sampleSettings(3))

	c1 := newTestController(repo, newFakeClock())
	if _, err := c1.Login(ctx, "MID2025", student); err != nil {
		t.Fatal(err)
	}
	_ = c1.SetAnswer("q_1", model.ChoiceAnswer(0))
	_ = c1.SetAnswer("q_2", model.TextAnswer("first"))
	if err := c1.Autosave(ctx); err != nil {
		t.Fatal(err)
	}
	_ = c1.SetAnswer("q_2", model.TextAnswer("second"))
	if err := c1.ManualSave(ctx); err != nil {
		t.Fatal(err)
	}
	saved, _ := c1.Paper()

	c2 := newTestController(repo, newFakeClock())
	snap, err := c2.Login(ctx, "MID2025", student)
	if err != nil {
		t.Fatal(err)
	}
	restored, _ := c2.Paper()
	if !restored.Answers.Equal(saved.Answers) {
		t.Fatalf("restored %v, want %v", restored.Answers, saved.Answers)
	}
	if last := snap.IntegrityLog[len(snap.IntegrityLog)-1]; last.Message != "draft restored" {
		t.Fatalf("last log entry = %q", last.Message)
	}
}

func TestController_SaveOutsideSession(t *testing.T) {
	repo := newFakeRepo(sampleDefinition(), sampleSettings(3))
	c := newTestController(repo, newFakeClock())

	if err := c.Autosave(context.Background()); err != nil {
		t.Fatalf("Autosave before login: %v", err)
	}
	if err := c.ManualSave(context.Background()); !errors.Is(err, ErrNotInSession) {
		t.Fatalf("ManualSave before login err = %v", err)
	}
	if len(repo.drafts) != 0 {
		t.Fatal("draft written outside session")
	}
}

func TestController_AutosaveFailureKeepsSession(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(sampleDefinition(), sampleSettings(3))
	repo.failDraft = true
	c := newTestController(repo, newFakeClock())
	if _, err := c.Login(ctx, "MID2025", student); err != nil {
		t.Fatal(err)
	}

	if err := c.Autosave(ctx); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("Autosave err = %v", err)
	}
	if c.Status() != StatusInSession {
		t.Fatal("autosave failure changed state")
	}
}

func TestController_StorageFailureThenRetry(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(sampleDefinition(), sampleSettings(3))
	repo.failAppend = true
	c := newTestController(repo, newFakeClock())
	if _, err := c.Login(ctx, "MID2025", student); err != nil {
		t.Fatal(err)
	}

	sub, err := c.Submit(ctx, false)
	if !errors.Is(err, ErrStorageUnavailable) || sub == nil {
		t.Fatalf("Submit = (%v, %v), want submission and ErrStorageUnavailable", sub, err)
	}
	if !c.Snapshot().PersistPending || c.Status() != StatusFinished {
		t.Fatal("submission not pending after failure")
	}
	if _, err := c.Submit(ctx, false); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("second Submit err = %v", err)
	}
	if repo.appendCalls != 1 {
		t.Fatalf("append calls = %d, want 1", repo.appendCalls)
	}

	repo.failAppend = false
	if _, err := c.RetryPersist(ctx); err != nil {
		t.Fatalf("RetryPersist: %v", err)
	}
	if _, err := c.RetryPersist(ctx); err != nil {
		t.Fatalf("second RetryPersist: %v", err)
	}
	if len(repo.submits) != 1 || c.Snapshot().PersistPending {
		t.Fatalf("submits = %d after retry", len(repo.submits))
	}
}

func TestController_VoiceHintGatesSpeech(t *testing.T) {
	ctx := context.Background()

	silent := &recordingSpeaker{}
	c := NewController(newFakeRepo(sampleDefinition(), sampleSettings(3)), Options{Clock: newFakeClock(), Speaker: silent})
	_, _ = c.Login(ctx, "MID2025", student)
	_, _ = c.HandleEvent(ctx, EventVisibilityHidden)
	if len(silent.said) != 0 {
		t.Fatalf("spoke without a voice hint: %v", silent.said)
	}

	settings := sampleSettings(3)
	settings.VoiceHint = "on"
	loud := &recordingSpeaker{}
	c = NewController(newFakeRepo(sampleDefinition(), settings), Options{Clock: newFakeClock(), Speaker: loud})
	_, _ = c.Login(ctx, "MID2025", student)
	_, _ = c.HandleEvent(ctx, EventVisibilityHidden)
	if len(loud.said) != 2 || loud.said[0] != StartAnnouncement || loud.said[1] != TabWarning {
		t.Fatalf("said = %v", loud.said)
	}

	c = NewController(newFakeRepo(sampleDefinition(), settings), Options{Clock: newFakeClock(), Speaker: panickingSpeaker{}})
	if _, err := c.Login(ctx, "MID2025", student); err != nil {
		t.Fatalf("speaker panic leaked: %v", err)
	}
}

func TestController_ShuffleDoesNotAffectGrading(t *testing.T) {
	ctx := context.Background()
	def := sampleDefinition()
	def.Meta.Shuffle = true
	for i := 3; i <= 8; i++ {
		def.Questions = append(def.Questions, model.Question{
			ID: model.QuestionID(string(rune('0' + i))), Type: model.QuestionTypeMCQ,
			Options: []string{"x", "y", "z"}, Answer: intPtr(i % 3),
		})
	}

	var grades []model.Grade
	for seed := uint64(1); seed <= 4; seed++ {
		repo := newFakeRepo(def, sampleSettings(3))
		c := NewController(repo, Options{Clock: newFakeClock(), Rand: rand.New(rand.NewPCG(seed, seed))})
		if _, err := c.Login(ctx, "MID2025", student); err != nil {
			t.Fatal(err)
		}
		for _, q := range def.Questions {
			if idx, ok := q.CorrectIndex(); ok {
				_ = c.SetAnswer(q.FieldKey(), model.ChoiceAnswer(idx))
			}
		}
		sub, err := c.Submit(ctx, false)
		if err != nil {
			t.Fatal(err)
		}
		grades = append(grades, sub.Grade)
	}
	for _, g := range grades {
		if g.Got != grades[0].Got || g.Total != grades[0].Total {
			t.Fatalf("grades differ across display orders: %+v", grades)
		}
		for i, d := range g.Details {
			if d.QuestionID != def.Questions[i].ID {
				t.Fatalf("details not in canonical order: %v", d.QuestionID)
			}
		}
	}
}
