package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/suPer8Hu/voice-audit/internal/db"
	"github.com/suPer8Hu/voice-audit/internal/jobs"
	"github.com/suPer8Hu/voice-audit/internal/models"
	"github.com/suPer8Hu/voice-audit/internal/speech"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return gdb
}

type recordingInsights struct {
	sessions []uint64
}

func (r *recordingInsights) GenerateForSession(ctx context.Context, sessionID uint64) (*models.AuditInsight, error) {
	_ = ctx
	r.sessions = append(r.sessions, sessionID)
	return &models.AuditInsight{AuditSessionID: sessionID}, nil
}

type recordingReports struct {
	sessions []uint64
}

func (r *recordingReports) InvalidateReport(ctx context.Context, sessionID uint64) {
	_ = ctx
	r.sessions = append(r.sessions, sessionID)
}

type enqueued struct {
	kind   jobs.Kind
	target uint64
	key    string
}

type recordingEnqueuer struct {
	calls []enqueued
}

func (e *recordingEnqueuer) Enqueue(ctx context.Context, kind jobs.Kind, targetID uint64, key string) (*jobs.Job, error) {
	_ = ctx
	e.calls = append(e.calls, enqueued{kind: kind, target: targetID, key: key})
	return &jobs.Job{Kind: kind, TargetID: targetID, Status: jobs.StatusQueued}, nil
}

type fakeTranscriber struct {
	text       string
	confidence float64
	err        error
	language   string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, contentType, language string) (*speech.Transcription, error) {
	_ = ctx
	f.language = language
	if f.err != nil {
		return nil, f.err
	}
	c := f.confidence
	return &speech.Transcription{Text: f.text, Confidence: &c}, nil
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	insights *recordingInsights
	jobs     *recordingEnqueuer
	clock    *time.Time
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	gdb := openTestDB(t)
	clock := time.Now()
	f := &fixture{
		db:       gdb,
		insights: &recordingInsights{},
		jobs:     &recordingEnqueuer{},
		clock:    &clock,
	}
	opts := Options{
		Insights: f.insights,
		Jobs:     f.jobs,
		Now:      func() time.Time { return *f.clock },
	}
	if mutate != nil {
		mutate(&opts)
	}
	f.svc = NewService(NewRepo(gdb), opts)
	return f
}

func (f *fixture) template(t *testing.T, questions int) *models.AuditTemplate {
	t.Helper()
	ctx := context.Background()
	tmpl, err := f.svc.CreateTemplate(ctx, TemplateInput{Name: "Daily Reflection " + t.Name()})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	for i := 0; i < questions; i++ {
		if _, err := f.svc.AddQuestion(ctx, tmpl.ID, QuestionInput{Text: fmt.Sprintf("Question %d?", i+1)}); err != nil {
			t.Fatalf("add question: %v", err)
		}
	}
	return tmpl
}

func (f *fixture) question(t *testing.T, templateID uint64, seq int) *models.Question {
	t.Helper()
	q, err := f.svc.Repo().QuestionWhere(context.Background(), templateID, false, "sequence = ?", seq)
	if err != nil {
		t.Fatalf("question %d: %v", seq, err)
	}
	return q
}

func hundredWords() string {
	return strings.TrimSpace(strings.Repeat("steady progress ", 50))
}

func ptr[T any](v T) *T { return &v }

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected validation error on %s, got %v", field, err)
	}
	if len(v.Fields[field]) == 0 {
		t.Fatalf("expected %s to fail, got %v", field, v.Fields)
	}
}

func TestRegisterUser_DefaultsAndDuplicateEmail(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	u, err := f.svc.RegisterUser(ctx, RegisterInput{Email: " Ada@Example.com ", Name: "Ada", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "ada@example.com" || u.PreferredVoice != models.DefaultVoice || u.PreferredLanguage != "en-US" || !u.SpeechEnabled {
		t.Fatalf("unexpected defaults %+v", u)
	}
	if u.PasswordHash == "" || u.PasswordHash == "secret1" {
		t.Fatalf("password not hashed")
	}

	_, err = f.svc.RegisterUser(ctx, RegisterInput{Email: "ada@example.com", Name: "Other"})
	assertValidation(t, err, "email")

	_, err = f.svc.RegisterUser(ctx, RegisterInput{Email: "x@example.com", Name: "X", PreferredLanguage: "xx-XX"})
	assertValidation(t, err, "preferred_language")
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.svc.RegisterUser(ctx, RegisterInput{Email: "a@b.io", Name: "A", Password: "hunter22"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := f.svc.Authenticate(ctx, "A@B.io", "hunter22"); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, "a@b.io", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.svc.Authenticate(ctx, "nobody@b.io", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestUpdatePreferences(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	u, err := f.svc.RegisterUser(ctx, RegisterInput{Email: "p@b.io", Name: "P"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := f.svc.UpdatePreferences(ctx, u.ID, PreferencesInput{
		PreferredLanguage: ptr("de-DE"),
		SpeechEnabled:     ptr(false),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.PreferredLanguage != "de-DE" || got.SpeechEnabled {
		t.Fatalf("unexpected preferences %+v", got)
	}

	_, err = f.svc.UpdatePreferences(ctx, u.ID, PreferencesInput{PreferredVoice: ptr("  ")})
	assertValidation(t, err, "preferred_voice")
}

func TestAddQuestion_AutoSequenceAndSpeechText(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.GenerateQuestionAudio = true })
	ctx := context.Background()
	tmpl := f.template(t, 0)

	q1, err := f.svc.AddQuestion(ctx, tmpl.ID, QuestionInput{Text: "What did Dr. Lee suggest"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	q2, err := f.svc.AddQuestion(ctx, tmpl.ID, QuestionInput{Text: "Anything else?", QuestionType: models.QuestionYesNo})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if q1.Sequence != 1 || q2.Sequence != 2 {
		t.Fatalf("unexpected sequences %d %d", q1.Sequence, q2.Sequence)
	}
	if q1.SpeechText != "What did Doctor Lee suggest." {
		t.Fatalf("unexpected speech text %q", q1.SpeechText)
	}
	if q1.MaxResponseSeconds != 120 || q1.QuestionType != models.QuestionOpenEnded {
		t.Fatalf("defaults not applied %+v", q1)
	}

	_, err = f.svc.AddQuestion(ctx, tmpl.ID, QuestionInput{Text: "dup", Sequence: 2})
	assertValidation(t, err, "sequence")

	_, err = f.svc.AddQuestion(ctx, tmpl.ID, QuestionInput{Text: "long", MaxResponseSeconds: 301})
	assertValidation(t, err, "max_response_seconds")

	if len(f.jobs.calls) != 2 {
		t.Fatalf("expected 2 synthesis jobs, got %+v", f.jobs.calls)
	}
	if c := f.jobs.calls[0]; c.kind != jobs.KindSynthesize || c.target != q1.ID || c.key != fmt.Sprintf("synthesize:%d", q1.ID) {
		t.Fatalf("unexpected job %+v", c)
	}
}

func TestQuestionNavigationAndView(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 3)
	q2 := f.question(t, tmpl.ID, 2)

	next, err := f.svc.QuestionAfter(ctx, q2)
	if err != nil || next == nil || next.Sequence != 3 {
		t.Fatalf("unexpected next %+v err=%v", next, err)
	}
	prev, err := f.svc.QuestionBefore(ctx, q2)
	if err != nil || prev == nil || prev.Sequence != 1 {
		t.Fatalf("unexpected previous %+v err=%v", prev, err)
	}
	none, err := f.svc.QuestionAfter(ctx, f.question(t, tmpl.ID, 3))
	if err != nil || none != nil {
		t.Fatalf("expected no question after the last, got %+v err=%v", none, err)
	}

	view := NewQuestionView(q2)
	if view.AudioDurationSeconds != 0 || view.HasAudio {
		t.Fatalf("question without audio should have zero duration: %+v", view)
	}
	q2.AudioPath = "questions/ab/abc.mp3"
	if d := AudioDuration(q2); d <= 0 {
		t.Fatalf("expected positive duration, got %v", d)
	}
	if view.ExpectedResponseFormat != "Please provide your response" {
		t.Fatalf("unexpected format %q", view.ExpectedResponseFormat)
	}
}

func TestSpeechOptimizedText_StoredTextIsUnchanged(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 0)

	derived, err := f.svc.AddQuestion(ctx, tmpl.ID, QuestionInput{Text: "How did the week go?"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if derived.SpeechText != "How did the week go? ..." {
		t.Fatalf("unexpected stored speech text %q", derived.SpeechText)
	}
	if got := SpeechOptimizedText(derived); got != derived.SpeechText {
		t.Fatalf("stored speech text was rewritten: %q", got)
	}
	if got := NewQuestionView(derived).SpeechOptimizedText; got != "How did the week go? ..." {
		t.Fatalf("unexpected view speech text %q", got)
	}

	custom, err := f.svc.AddQuestion(ctx, tmpl.ID, QuestionInput{Text: "Anything to add?", SpeechText: "Custom? Prompt"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if got := SpeechOptimizedText(custom); got != "Custom? Prompt" {
		t.Fatalf("custom speech text was rewritten: %q", got)
	}

	blank := &models.Question{Text: "Why?"}
	if got := SpeechOptimizedText(blank); got != "Why? ..." {
		t.Fatalf("unexpected derived speech text %q", got)
	}
}

func TestDeleteTemplate_RefusedWhileSessionsExist(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 1)

	if _, err := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.svc.DeleteTemplate(ctx, tmpl.ID); !errors.Is(err, ErrTemplateInUse) {
		t.Fatalf("expected ErrTemplateInUse, got %v", err)
	}

	other, err := f.svc.CreateTemplate(ctx, TemplateInput{Name: "Disposable"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.svc.DeleteTemplate(ctx, other.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.GetTemplate(ctx, other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestStartSession_VoiceFallbacks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 1)

	anon, err := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if anon.Status != models.SessionStarted || anon.CurrentQuestionIndex != 0 || anon.StartedAt == nil {
		t.Fatalf("unexpected session %+v", anon)
	}
	if anon.PreferredVoice != models.DefaultVoice || !anon.SpeechEnabled || len(anon.SessionToken) < 40 {
		t.Fatalf("unexpected defaults %+v", anon)
	}

	u, err := f.svc.RegisterUser(ctx, RegisterInput{Email: "v@b.io", Name: "V", PreferredVoice: "en-GB-Wavenet-A", SpeechEnabled: ptr(false)})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	owned, err := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID, UserID: &u.ID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if owned.PreferredVoice != "en-GB-Wavenet-A" || owned.SpeechEnabled {
		t.Fatalf("user preferences not applied %+v", owned)
	}

	explicit, err := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID, UserID: &u.ID, Voice: "fr-FR-Neural2-A"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if explicit.PreferredVoice != "fr-FR-Neural2-A" {
		t.Fatalf("explicit voice ignored: %s", explicit.PreferredVoice)
	}
	if explicit.SessionToken == owned.SessionToken {
		t.Fatalf("tokens must be unique")
	}
}

func TestStartSession_InactiveTemplate(t *testing.T) {
	f := newFixture(t, nil)
	tmpl, err := f.svc.CreateTemplate(context.Background(), TemplateInput{Name: "Retired", Active: ptr(false)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.StartSession(context.Background(), StartInput{TemplateID: tmpl.ID}); !errors.Is(err, ErrTemplateInactive) {
		t.Fatalf("expected ErrTemplateInactive, got %v", err)
	}
}

func TestStartSession_EmptyTemplateCompletes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 0)

	sess, err := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.Status != models.SessionCompleted || sess.CompletedAt == nil || sess.CurrentQuestionIndex != 0 {
		t.Fatalf("expected a completed session, got %+v", sess)
	}
	if len(f.insights.sessions) != 1 || f.insights.sessions[0] != sess.ID {
		t.Fatalf("expected insight generation, got %v", f.insights.sessions)
	}

	if err := f.svc.Restart(ctx, sess); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if sess.Status != models.SessionCompleted {
		t.Fatalf("restarted empty session should complete again, got %s", sess.Status)
	}
}

func TestSessionForActor_HidesOtherUsersSessions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 1)
	u, _ := f.svc.RegisterUser(ctx, RegisterInput{Email: "o@b.io", Name: "O"})
	sess, err := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID, UserID: &u.ID})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := f.svc.SessionForActor(ctx, sess.SessionToken, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("anonymous caller should not see owned session, got %v", err)
	}
	stranger := u.ID + 1
	if _, err := f.svc.SessionForActor(ctx, sess.SessionToken, &stranger); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user should not see owned session, got %v", err)
	}
	if _, err := f.svc.SessionForActor(ctx, sess.SessionToken, &u.ID); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
}

func TestAdvance_WalksQuestionsAndCompletes(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 2)
	u, _ := f.svc.RegisterUser(ctx, RegisterInput{Email: "w@b.io", Name: "W"})
	sess, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID, UserID: &u.ID})

	cur, err := f.svc.CurrentQuestion(ctx, sess)
	if err != nil || cur == nil || cur.Sequence != 1 {
		t.Fatalf("unexpected current %+v err=%v", cur, err)
	}
	if prev, _ := f.svc.PreviousQuestion(ctx, sess); prev != nil {
		t.Fatalf("no previous question at index 0, got %+v", prev)
	}

	ok, err := f.svc.Advance(ctx, sess)
	if err != nil || !ok {
		t.Fatalf("advance: ok=%v err=%v", ok, err)
	}
	if sess.Status != models.SessionInProgress || sess.CurrentQuestionIndex != 1 {
		t.Fatalf("unexpected state %s/%d", sess.Status, sess.CurrentQuestionIndex)
	}
	p, err := f.svc.Progress(ctx, sess)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if p.ProgressPercentage != 50 || p.QuestionsRemaining != 1 || p.TotalQuestions != 2 {
		t.Fatalf("unexpected progress %+v", p)
	}

	*f.clock = f.clock.Add(3 * time.Minute)
	if ok, err := f.svc.Advance(ctx, sess); err != nil || !ok {
		t.Fatalf("advance: ok=%v err=%v", ok, err)
	}
	if sess.Status != models.SessionCompleted || sess.CompletedAt == nil || sess.CurrentQuestionIndex != 2 {
		t.Fatalf("expected completed session, got %+v", sess)
	}
	if len(f.insights.sessions) != 1 || f.insights.sessions[0] != sess.ID {
		t.Fatalf("expected insight generation, got %v", f.insights.sessions)
	}
	if cur, _ := f.svc.CurrentQuestion(ctx, sess); cur != nil {
		t.Fatalf("expected no current question past the end")
	}

	reloaded, _ := f.svc.GetUser(ctx, u.ID)
	if reloaded.LastAuditAt == nil {
		t.Fatalf("last_audit_at not set")
	}

	if _, err := f.svc.Advance(ctx, sess); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("advance on completed session should fail, got %v", err)
	}
	if err := f.svc.Abandon(ctx, sess); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("abandon on completed session should fail, got %v", err)
	}

	stats, err := f.svc.UserStats(ctx, u.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.CompletedAudits != 1 || stats.AverageDurationMinutes != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestComplete_RequiresAllQuestions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 2)
	sess, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})

	if err := f.svc.Complete(ctx, sess); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if sess.Status == models.SessionCompleted {
		t.Fatalf("session must not complete early")
	}
	if len(f.insights.sessions) != 0 {
		t.Fatalf("no insight expected")
	}
}

func TestAbandonAndRestart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 2)
	sess, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})
	q1 := f.question(t, tmpl.ID, 1)

	if _, err := f.svc.RecordResponse(ctx, sess, RecordInput{QuestionID: q1.ID, Text: hundredWords(), Confidence: ptr(0.9)}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := f.svc.Abandon(ctx, sess); err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if err := f.svc.Abandon(ctx, sess); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second abandon should fail, got %v", err)
	}

	if err := f.svc.Restart(ctx, sess); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if sess.Status != models.SessionStarted || sess.CurrentQuestionIndex != 0 || sess.CompletedAt != nil {
		t.Fatalf("unexpected state after restart %+v", sess)
	}
	n, err := f.svc.Repo().CountResponses(ctx, sess.ID)
	if err != nil || n != 0 {
		t.Fatalf("responses should be cleared, got %d err=%v", n, err)
	}
}

func TestRecordResponse_TextWithConfidenceAdvances(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 2)
	sess, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})
	q1 := f.question(t, tmpl.ID, 1)

	resp, err := f.svc.RecordResponse(ctx, sess, RecordInput{QuestionID: q1.ID, Text: hundredWords(), Confidence: ptr(0.9)})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if resp.TranscriptionStatus != models.TranscriptionCompleted || resp.RespondedAt == nil || resp.RequiresClarification {
		t.Fatalf("unexpected response %+v", resp)
	}
	if QualityScore(resp, q1) != 86 {
		t.Fatalf("unexpected quality %d", QualityScore(resp, q1))
	}

	reloaded, _ := f.svc.GetSession(ctx, sess.ID)
	if reloaded.CurrentQuestionIndex != 1 || reloaded.Status != models.SessionInProgress {
		t.Fatalf("session should advance, got %s/%d", reloaded.Status, reloaded.CurrentQuestionIndex)
	}

	_, err = f.svc.RecordResponse(ctx, reloaded, RecordInput{QuestionID: q1.ID, Text: "again"})
	assertValidation(t, err, "question_id")
}

func TestRecordResponse_LowConfidenceIsFlagged(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 2)
	sess, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})
	q1 := f.question(t, tmpl.ID, 1)

	resp, err := f.svc.RecordResponse(ctx, sess, RecordInput{QuestionID: q1.ID, Text: hundredWords(), Confidence: ptr(0.3)})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !resp.RequiresClarification || resp.ClarificationNotes == nil || *resp.ClarificationNotes != "Low transcription confidence: 30%" {
		t.Fatalf("expected clarification flag, got %+v", resp)
	}
	reloaded, _ := f.svc.GetSession(ctx, sess.ID)
	if reloaded.CurrentQuestionIndex != 0 {
		t.Fatalf("flagged response must not advance the session")
	}

	cleared, err := f.svc.ClearClarification(ctx, resp.ID)
	if err != nil || cleared.RequiresClarification || cleared.ClarificationNotes != nil {
		t.Fatalf("clear clarification: %+v err=%v", cleared, err)
	}
	marked, err := f.svc.MarkForClarification(ctx, resp.ID, "please expand")
	if err != nil || !marked.RequiresClarification || *marked.ClarificationNotes != "please expand" {
		t.Fatalf("mark clarification: %+v err=%v", marked, err)
	}
}

func TestRecordResponse_ForeignQuestionAndClosedSession(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 1)
	other, _ := f.svc.CreateTemplate(ctx, TemplateInput{Name: "Other"})
	foreign, _ := f.svc.AddQuestion(ctx, other.ID, QuestionInput{Text: "Elsewhere?"})
	sess, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})

	if _, err := f.svc.RecordResponse(ctx, sess, RecordInput{QuestionID: foreign.ID, Text: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign question, got %v", err)
	}

	_ = f.svc.Abandon(ctx, sess)
	q1 := f.question(t, tmpl.ID, 1)
	if _, err := f.svc.RecordResponse(ctx, sess, RecordInput{QuestionID: q1.ID, Text: "x"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on abandoned session, got %v", err)
	}
}

func TestRecordResponse_AudioIsStoredAndTranscribed(t *testing.T) {
	store, err := speech.NewAudioStore(t.TempDir())
	if err != nil {
		t.Fatalf("audio store: %v", err)
	}
	tr := &fakeTranscriber{text: hundredWords(), confidence: 0.92}
	f := newFixture(t, func(o *Options) {
		o.Audio = store
		o.Transcriber = tr
	})
	ctx := context.Background()
	tmpl := f.template(t, 1)
	u, _ := f.svc.RegisterUser(ctx, RegisterInput{Email: "au@b.io", Name: "Au", PreferredLanguage: "es-ES"})
	sess, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID, UserID: &u.ID})
	q1 := f.question(t, tmpl.ID, 1)

	_, err = f.svc.RecordResponse(ctx, sess, RecordInput{QuestionID: q1.ID, Audio: []byte("RIFF"), AudioExt: ".wav"})
	assertValidation(t, err, "original_audio_duration_seconds")

	resp, err := f.svc.RecordResponse(ctx, sess, RecordInput{
		QuestionID:           q1.ID,
		Audio:                []byte("RIFF"),
		AudioExt:             ".wav",
		AudioDurationSeconds: ptr(12),
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if resp.TranscriptionStatus != models.TranscriptionProcessing || resp.AudioHash != speech.Fingerprint([]byte("RIFF")) {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(f.jobs.calls) != 1 || f.jobs.calls[0].kind != jobs.KindTranscribe || f.jobs.calls[0].target != resp.ID {
		t.Fatalf("expected transcription job, got %+v", f.jobs.calls)
	}

	if err := f.svc.TranscribeResponse(ctx, resp.ID); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if tr.language != "es-ES" {
		t.Fatalf("expected user language, got %q", tr.language)
	}
	done, _ := f.svc.GetResponse(ctx, resp.ID)
	if done.TranscriptionStatus != models.TranscriptionCompleted || DurationSeconds(done) != 12 {
		t.Fatalf("unexpected response after transcription %+v", done)
	}
	finished, _ := f.svc.GetSession(ctx, sess.ID)
	if finished.Status != models.SessionCompleted {
		t.Fatalf("single-question session should complete, got %s", finished.Status)
	}

	again, err := f.svc.Retranscribe(ctx, resp.ID)
	if err != nil || again.TranscriptionStatus != models.TranscriptionProcessing {
		t.Fatalf("retranscribe: %+v err=%v", again, err)
	}
	if len(f.jobs.calls) != 2 {
		t.Fatalf("expected a second transcription job")
	}
}

func TestTranscribeResponse_FailureIsRecorded(t *testing.T) {
	store, _ := speech.NewAudioStore(t.TempDir())
	f := newFixture(t, func(o *Options) {
		o.Audio = store
		o.Transcriber = &fakeTranscriber{err: errors.New("upstream 503")}
	})
	ctx := context.Background()
	tmpl := f.template(t, 1)
	sess, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})
	q1 := f.question(t, tmpl.ID, 1)
	resp, err := f.svc.RecordResponse(ctx, sess, RecordInput{QuestionID: q1.ID, Audio: []byte("x"), AudioExt: "ogg", AudioDurationSeconds: ptr(3)})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := f.svc.TranscribeResponse(ctx, resp.ID); err != nil {
		t.Fatalf("failure should be recorded, not returned: %v", err)
	}
	failed, _ := f.svc.GetResponse(ctx, resp.ID)
	if failed.TranscriptionStatus != models.TranscriptionFailed || failed.ClarificationNotes == nil ||
		*failed.ClarificationNotes != "Transcription failed: upstream 503" {
		t.Fatalf("unexpected response %+v", failed)
	}
}

func TestRetranscribe_RequiresAudio(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 1)
	sess, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})
	resp, _ := f.svc.RecordResponse(ctx, sess, RecordInput{QuestionID: f.question(t, tmpl.ID, 1).ID, Text: "typed"})

	if _, err := f.svc.Retranscribe(ctx, resp.ID); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
}

func TestResponseChangesInvalidateReport(t *testing.T) {
	reports := &recordingReports{}
	f := newFixture(t, func(o *Options) { o.Reports = reports })
	ctx := context.Background()
	tmpl := f.template(t, 1)
	sess, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})

	resp, err := f.svc.RecordResponse(ctx, sess, RecordInput{QuestionID: f.question(t, tmpl.ID, 1).ID, Text: hundredWords(), Confidence: ptr(0.9)})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if sess.Status != models.SessionCompleted {
		t.Fatalf("expected completed session, got %s", sess.Status)
	}
	if _, err := f.svc.MarkForClarification(ctx, resp.ID, "Say more"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if _, err := f.svc.ClearClarification(ctx, resp.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := f.svc.FailTranscription(ctx, resp.ID, "timeout"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	if len(reports.sessions) != 4 {
		t.Fatalf("expected 4 invalidations, got %v", reports.sessions)
	}
	for _, id := range reports.sessions {
		if id != sess.ID {
			t.Fatalf("invalidated the wrong session %d", id)
		}
	}
}

func TestShouldBeAbandonedAndSweep(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 1)
	stale, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})
	done, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})
	if _, err := f.svc.Advance(ctx, done); err != nil {
		t.Fatalf("advance: %v", err)
	}

	idle, err := f.svc.ShouldBeAbandoned(ctx, stale)
	if err != nil || idle {
		t.Fatalf("fresh session should not be idle: %v %v", idle, err)
	}

	*f.clock = time.Now().Add(2 * time.Hour)
	if idle, _ := f.svc.ShouldBeAbandoned(ctx, stale); !idle {
		t.Fatalf("session idle for two hours should be abandoned")
	}
	if idle, _ := f.svc.ShouldBeAbandoned(ctx, done); idle {
		t.Fatalf("completed sessions are never abandoned")
	}

	n, err := f.svc.SweepAbandoned(ctx, 24*time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("nothing is a day old yet: n=%d err=%v", n, err)
	}

	*f.clock = time.Now().Add(25 * time.Hour)
	n, err = f.svc.SweepAbandoned(ctx, 24*time.Hour)
	if err != nil || n != 1 {
		t.Fatalf("expected one abandoned session, n=%d err=%v", n, err)
	}
	reloaded, _ := f.svc.GetSession(ctx, stale.ID)
	if reloaded.Status != models.SessionAbandoned {
		t.Fatalf("unexpected status %s", reloaded.Status)
	}
}

func TestTemplateStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 1)

	stats, err := f.svc.TemplateStats(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalQuestions != 1 || stats.CompletionRate != 0 || stats.AverageCompletionMinutes != 15 {
		t.Fatalf("unexpected empty stats %+v", stats)
	}

	for i := 0; i < 3; i++ {
		sess, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})
		if i == 0 {
			*f.clock = f.clock.Add(6 * time.Minute)
			if _, err := f.svc.Advance(ctx, sess); err != nil {
				t.Fatalf("advance: %v", err)
			}
		}
	}
	stats, err = f.svc.TemplateStats(ctx, tmpl.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalSessions != 3 || stats.CompletedSessions != 1 || stats.CompletionRate != 33.3 || stats.AverageCompletionMinutes != 6 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSessionResponses_View(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	tmpl := f.template(t, 2)
	sess, _ := f.svc.StartSession(ctx, StartInput{TemplateID: tmpl.ID})
	q1 := f.question(t, tmpl.ID, 1)
	if _, err := f.svc.RecordResponse(ctx, sess, RecordInput{QuestionID: q1.ID, Text: "I am happy with great growth and growth plans", Confidence: ptr(0.95)}); err != nil {
		t.Fatalf("record: %v", err)
	}

	views, err := f.svc.SessionResponses(ctx, sess)
	if err != nil || len(views) != 1 {
		t.Fatalf("responses: %v %v", views, err)
	}
	v := views[0]
	if v.Sentiment != "positive" || v.WordCount != 9 || !v.IsHighConfidence {
		t.Fatalf("unexpected view %+v", v)
	}
	if len(v.Keywords) == 0 || v.Keywords[0] != "growth" {
		t.Fatalf("unexpected keywords %v", v.Keywords)
	}
}
