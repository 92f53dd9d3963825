package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gamesmith/apperr"
	"gamesmith/assets"
	"gamesmith/compiler"
	"gamesmith/fs"
	"gamesmith/llm"
	"gamesmith/project"
	"gamesmith/version"
)

// MockLLM is a mock implementation of the LLM client.
type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Classify(ctx context.Context, message string) (llm.Classification, error) {
	args := m.Called(ctx, message)
	return args.Get(0).(llm.Classification), args.Error(1)
}

func (m *MockLLM) GenerateGame(ctx context.Context, req llm.GenerationRequest) (llm.CodeResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(llm.CodeResponse), args.Error(1)
}

func (m *MockLLM) AnswerQuestion(ctx context.Context, question, code, data string) (string, error) {
	args := m.Called(ctx, question, code, data)
	return args.String(0), args.Error(1)
}

func (m *MockLLM) UpdateSpecification(ctx context.Context, oldSpec, answers string) (llm.SpecUpdate, error) {
	args := m.Called(ctx, oldSpec, answers)
	return args.Get(0).(llm.SpecUpdate), args.Error(1)
}

func (m *MockLLM) SpecInterview(ctx context.Context, history, message, spec string) (string, error) {
	args := m.Called(ctx, history, message, spec)
	return args.String(0), args.Error(1)
}

// MockChecker is a mock implementation of the compile checker.
type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Check(ctx context.Context, sourcePath string) (string, error) {
	args := m.Called(ctx, sourcePath)
	return args.String(0), args.Error(1)
}

var _ llm.Client = (*MockLLM)(nil)
var _ compiler.Checker = (*MockChecker)(nil)

type testEnv struct {
	engine   *Engine
	fs       *fs.FileSystem
	ws       *project.Workspace
	versions *version.Store
	chat     *project.ChatLog
}

func newTestEnv(mllm *MockLLM, mchk *MockChecker) *testEnv {
	fsys := fs.NewMemoryFileSystem()
	ws := project.NewWorkspace(fsys, "games")
	versions := version.NewStore(fsys, nil)
	chat := project.NewChatLog(fsys)
	engine := NewEngine(Deps{
		LLM:       mllm,
		Checker:   mchk,
		Workspace: ws,
		Versions:  versions,
		Chat:      chat,
		Assets:    assets.NewScaffolder(fsys, nil, "", nil),
	})
	return &testEnv{engine: engine, fs: fsys, ws: ws, versions: versions, chat: chat}
}

func classification(requests, questions, disallowed []string) llm.Classification {
	return llm.Classification{
		ModificationRequests: requests,
		Questions:            questions,
		Disallowed:           disallowed,
	}
}

func TestProcessMessageSmallTalk(t *testing.T) {
	mllm := new(MockLLM)
	mllm.On("Classify", mock.Anything, "hello").
		Return(classification(nil, nil, nil), nil)

	env := newTestEnv(mllm, new(MockChecker))
	resp := env.engine.ProcessMessage(context.Background(), "pong", "hello")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Contains(t, resp.Reply, "What can I help you with?")

	entries := env.engine.Chat("pong")
	require.Len(t, entries, 2)
	assert.Equal(t, project.SpeakerUser, entries[0].Speaker)
	assert.Equal(t, "hello", entries[0].Text)
	assert.Equal(t, project.SpeakerBot, entries[1].Speaker)
	mllm.AssertExpectations(t)
}

func TestProcessMessageQuestionOnly(t *testing.T) {
	mllm := new(MockLLM)
	mllm.On("Classify", mock.Anything, mock.Anything).
		Return(classification(nil, []string{"How do I restart?"}, nil), nil)
	mllm.On("AnswerQuestion", mock.Anything, "How do I restart?", "", "").
		Return("Press the R key.", nil)

	env := newTestEnv(mllm, new(MockChecker))
	resp := env.engine.ProcessMessage(context.Background(), "pong", "How do I restart?")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Contains(t, resp.Reply, "Press the R key.")
	assert.Empty(t, resp.Code)

	// Questions never touch project files or history.
	current, err := env.versions.Current("games/pong")
	require.NoError(t, err)
	assert.Empty(t, current.Name)
}

func TestProcessMessageDisallowedOnly(t *testing.T) {
	mllm := new(MockLLM)
	mllm.On("Classify", mock.Anything, mock.Anything).
		Return(classification(nil, nil, []string{"add real gambling"}), nil)

	env := newTestEnv(mllm, new(MockChecker))
	resp := env.engine.ProcessMessage(context.Background(), "pong", "add real gambling")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Contains(t, resp.Reply, "Sorry, I can't help with 'add real gambling'.")
}

func TestProcessMessageGenerationFirstAttempt(t *testing.T) {
	mllm := new(MockLLM)
	mllm.On("Classify", mock.Anything, mock.Anything).
		Return(classification([]string{"make a pong game"}, nil, nil), nil)
	mllm.On("GenerateGame", mock.Anything, mock.Anything).
		Return(llm.CodeResponse{
			Code:        "const paddle = 1;",
			Data:        `{"assets":{"images":[],"sounds":[]}}`,
			Description: "Built a pong game.",
		}, nil)

	mchk := new(MockChecker)
	mchk.On("Check", mock.Anything, mock.Anything).Return("", nil)

	env := newTestEnv(mllm, mchk)
	resp := env.engine.ProcessMessage(context.Background(), "pong", "make a pong game")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "const paddle = 1;", resp.Code)
	assert.Contains(t, resp.Reply, "Built a pong game.")

	code, err := env.ws.Project("pong").ReadCode()
	require.NoError(t, err)
	assert.Equal(t, "const paddle = 1;", code)

	// First-ever success roots the version history.
	current, err := env.versions.Current("games/pong")
	require.NoError(t, err)
	assert.Equal(t, "v1", current.Name)
	assert.Empty(t, current.Parent)
	assert.Equal(t, "make a pong game", current.Summary)
}

func TestRunGenerationFeedsErrorBack(t *testing.T) {
	const diag = "game.ts(3,5): error TS2304: Cannot find name 'x'."

	mllm := new(MockLLM)
	mllm.On("GenerateGame", mock.Anything, mock.MatchedBy(func(req llm.GenerationRequest) bool {
		return req.Request == "add a jump button" && req.Question == "what color?"
	})).Return(llm.CodeResponse{Code: "x.jump();", Description: "Added jump."}, nil).Once()
	mllm.On("GenerateGame", mock.Anything, mock.MatchedBy(func(req llm.GenerationRequest) bool {
		// The compiler output becomes the next request and the
		// question does not ride past round one.
		return req.Request == diag && req.Question == ""
	})).Return(llm.CodeResponse{Code: "const x = jumper(); x.jump();", Description: "Fixed."}, nil).Once()

	mchk := new(MockChecker)
	mchk.On("Check", mock.Anything, mock.Anything).Return(diag, nil).Once()
	mchk.On("Check", mock.Anything, mock.Anything).Return("", nil).Once()

	env := newTestEnv(mllm, mchk)
	p := env.ws.Project("runner")
	res, err := env.engine.runGeneration(context.Background(), p, "add a jump button", "what color?")

	require.NoError(t, err)
	assert.Empty(t, res.FinalError)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, diag, res.Attempts[0].Error)
	assert.Equal(t, diag, res.Attempts[1].Request)
	assert.Equal(t, "const x = jumper(); x.jump();", res.Code)
	assert.Contains(t, res.Description, "========Compile Error========")
	mllm.AssertExpectations(t)
	mchk.AssertExpectations(t)
}

func TestRunGenerationExhaustsAttempts(t *testing.T) {
	const diag = "error TS1005: ';' expected."

	mllm := new(MockLLM)
	mllm.On("GenerateGame", mock.Anything, mock.Anything).
		Return(llm.CodeResponse{Code: "broken(", Description: "Tried."}, nil)

	mchk := new(MockChecker)
	mchk.On("Check", mock.Anything, mock.Anything).Return(diag, nil)

	env := newTestEnv(mllm, mchk)
	p := env.ws.Project("runner")
	res, err := env.engine.runGeneration(context.Background(), p, "do the thing", "")

	require.NoError(t, err)
	assert.Equal(t, diag, res.FinalError)
	assert.Len(t, res.Attempts, MaxAttempts)
	mllm.AssertNumberOfCalls(t, "GenerateGame", MaxAttempts)
}

func TestRunGenerationServiceErrorConsumesAttempt(t *testing.T) {
	mllm := new(MockLLM)
	mllm.On("GenerateGame", mock.Anything, mock.Anything).
		Return(llm.CodeResponse{}, apperr.NewServiceError("llm", errors.New("rate limited"))).Once()
	mllm.On("GenerateGame", mock.Anything, mock.Anything).
		Return(llm.CodeResponse{Code: "ok();", Description: "Done."}, nil).Once()

	mchk := new(MockChecker)
	mchk.On("Check", mock.Anything, mock.Anything).Return("", nil)

	env := newTestEnv(mllm, mchk)
	res, err := env.engine.runGeneration(context.Background(), env.ws.Project("runner"), "go", "")

	require.NoError(t, err)
	assert.Empty(t, res.FinalError)
	require.Len(t, res.Attempts, 2)
	assert.Contains(t, res.Attempts[0].Error, "rate limited")
}

func TestRunGenerationStorageErrorAborts(t *testing.T) {
	mllm := new(MockLLM)
	mllm.On("GenerateGame", mock.Anything, mock.Anything).
		Return(llm.CodeResponse{}, apperr.NewStorageError("write", "games/runner/game.ts", errors.New("disk full")))

	env := newTestEnv(mllm, new(MockChecker))
	_, err := env.engine.runGeneration(context.Background(), env.ws.Project("runner"), "go", "")

	require.Error(t, err)
	assert.True(t, apperr.IsStorage(err))
	mllm.AssertNumberOfCalls(t, "GenerateGame", 1)
}

func TestProcessMessageNoOpSuccessCreatesNoVersion(t *testing.T) {
	mllm := new(MockLLM)
	mllm.On("Classify", mock.Anything, mock.Anything).
		Return(classification([]string{"tweak nothing"}, nil, nil), nil)
	mllm.On("GenerateGame", mock.Anything, mock.Anything).
		Return(llm.CodeResponse{Description: "Nothing to change."}, nil)

	mchk := new(MockChecker)
	mchk.On("Check", mock.Anything, mock.Anything).Return("", nil)

	env := newTestEnv(mllm, mchk)
	p := env.ws.Project("pong")
	require.NoError(t, p.Scaffold())
	require.NoError(t, p.WriteCode("const paddle = 1;"))
	_, err := env.versions.Create(p.Dir, "", "initial build")
	require.NoError(t, err)

	resp := env.engine.ProcessMessage(context.Background(), "pong", "tweak nothing")

	assert.Equal(t, StatusSuccess, resp.Status)
	lg, err := env.versions.ChangeLog(p.Dir)
	require.NoError(t, err)
	assert.Len(t, lg.Versions, 1)
	assert.Equal(t, "v1", lg.Current)
}

func TestProcessMessageClassificationExhaustion(t *testing.T) {
	mllm := new(MockLLM)
	mllm.On("Classify", mock.Anything, mock.Anything).
		Return(llm.Classification{}, apperr.NewServiceError("llm", errors.New("bad json")))

	env := newTestEnv(mllm, new(MockChecker))
	resp := env.engine.ProcessMessage(context.Background(), "pong", "make a game")

	assert.Equal(t, StatusFail, resp.Status)
	assert.Contains(t, resp.Reply, "Something went wrong")
	mllm.AssertNumberOfCalls(t, "Classify", MaxAttempts)

	// The failed turn still lands in the transcript.
	entries := env.engine.Chat("pong")
	require.Len(t, entries, 2)
	assert.Equal(t, "make a game", entries[0].Text)
}

func TestGenerateRoundRejectsInvalidData(t *testing.T) {
	mllm := new(MockLLM)
	mllm.On("GenerateGame", mock.Anything, mock.Anything).
		Return(llm.CodeResponse{Code: "ok();", Data: "{not json", Description: "Oops."}, nil)

	mchk := new(MockChecker)
	mchk.On("Check", mock.Anything, mock.Anything).Return("", nil)

	env := newTestEnv(mllm, mchk)
	p := env.ws.Project("pong")
	_, data, _, roundErr, err := env.engine.generateRound(context.Background(), p, "go", "")

	require.NoError(t, err)
	assert.Equal(t, "{not json", data)
	assert.Contains(t, roundErr, "not valid JSON")

	stored, err := p.ReadData()
	require.NoError(t, err)
	assert.Empty(t, stored, "invalid data must not be persisted")
}

func TestProcessMessageMixedRequestAndDisallowed(t *testing.T) {
	mllm := new(MockLLM)
	mllm.On("Classify", mock.Anything, mock.Anything).
		Return(classification([]string{"add a score counter"}, nil, []string{"show ads"}), nil)
	mllm.On("GenerateGame", mock.Anything, mock.Anything).
		Return(llm.CodeResponse{Code: "score();", Description: "Added score."}, nil)

	mchk := new(MockChecker)
	mchk.On("Check", mock.Anything, mock.Anything).Return("", nil)

	env := newTestEnv(mllm, mchk)
	resp := env.engine.ProcessMessage(context.Background(), "pong", "add a score counter and show ads")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Contains(t, resp.Reply, "Added score.")
	assert.Contains(t, resp.Reply, "Sorry, I can't help with 'show ads'.")
}

func TestProcessMessageTwoAttemptFix(t *testing.T) {
	const diag = "Cannot find name 'x'"

	mllm := new(MockLLM)
	mllm.On("Classify", mock.Anything, "add a jump button").
		Return(classification([]string{"add a jump button"}, nil, nil), nil)
	mllm.On("GenerateGame", mock.Anything, mock.MatchedBy(func(req llm.GenerationRequest) bool {
		return req.Request == "add a jump button"
	})).Return(llm.CodeResponse{Code: "x.jump();", Description: "Added jump."}, nil).Once()
	mllm.On("GenerateGame", mock.Anything, mock.MatchedBy(func(req llm.GenerationRequest) bool {
		return req.Request == diag
	})).Return(llm.CodeResponse{Code: "const x = player(); x.jump();", Description: "Fixed name."}, nil).Once()

	mchk := new(MockChecker)
	mchk.On("Check", mock.Anything, mock.Anything).Return(diag, nil).Once()
	mchk.On("Check", mock.Anything, mock.Anything).Return("", nil).Once()

	env := newTestEnv(mllm, mchk)
	p := env.ws.Project("runner")
	require.NoError(t, p.Scaffold())
	require.NoError(t, p.WriteCode("base();"))
	_, err := env.versions.Create(p.Dir, "", "initial build")
	require.NoError(t, err)

	resp := env.engine.ProcessMessage(context.Background(), "runner", "add a jump button")

	assert.Equal(t, StatusSuccess, resp.Status)
	assert.Equal(t, "const x = player(); x.jump();", resp.Code)

	lg, err := env.versions.ChangeLog(p.Dir)
	require.NoError(t, err)
	require.Len(t, lg.Versions, 2)
	assert.Equal(t, "v2", lg.Current)
	assert.Equal(t, "v1", lg.Versions[1].Parent)
	assert.Equal(t, "add a jump button", lg.Versions[1].Summary)
	mllm.AssertExpectations(t)
	mchk.AssertExpectations(t)
}

func TestRevertAndRestore(t *testing.T) {
	env := newTestEnv(new(MockLLM), new(MockChecker))
	p := env.ws.Project("pong")
	require.NoError(t, p.Scaffold())

	require.NoError(t, p.WriteCode("v1 code"))
	_, err := env.versions.Create(p.Dir, "", "first")
	require.NoError(t, err)
	require.NoError(t, p.WriteCode("v2 code"))
	_, err = env.versions.Create(p.Dir, "v1", "second")
	require.NoError(t, err)

	reply, ok, err := env.engine.Revert("pong")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, reply, "previous version")

	code, err := p.ReadCode()
	require.NoError(t, err)
	assert.Equal(t, "v1 code", code)

	ok, err = env.engine.Restore("pong", "v2")
	require.NoError(t, err)
	assert.True(t, ok)
	code, _ = p.ReadCode()
	assert.Equal(t, "v2 code", code)

	ok, err = env.engine.Restore("pong", "v99")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateDataSnapshots(t *testing.T) {
	env := newTestEnv(new(MockLLM), new(MockChecker))
	p := env.ws.Project("pong")
	require.NoError(t, p.Scaffold())
	require.NoError(t, p.WriteCode("code"))
	_, err := env.versions.Create(p.Dir, "", "first")
	require.NoError(t, err)

	err = env.engine.UpdateData("pong", map[string]interface{}{"speed": 3.0})
	require.NoError(t, err)

	data, err := env.engine.GameData("pong")
	require.NoError(t, err)
	assert.Equal(t, 3.0, data["speed"])

	lg, err := env.versions.ChangeLog(p.Dir)
	require.NoError(t, err)
	assert.Len(t, lg.Versions, 2)
	assert.Equal(t, "v2", lg.Current)
}

func TestAnswerReadsProjectFiles(t *testing.T) {
	mllm := new(MockLLM)
	mllm.On("AnswerQuestion", mock.Anything, "how fast is the ball?", "code", `{"speed":3}`).
		Return("The ball moves at speed 3.", nil).Once()

	env := newTestEnv(mllm, new(MockChecker))
	p := env.ws.Project("pong")
	require.NoError(t, p.Scaffold())
	require.NoError(t, p.WriteCode("code"))
	require.NoError(t, p.WriteData(`{"speed":3}`))

	answer, err := env.engine.Answer(context.Background(), "pong", "how fast is the ball?")
	require.NoError(t, err)
	assert.Equal(t, "The ball moves at speed 3.", answer)

	// Unlike a full turn this path records no transcript entries.
	assert.Empty(t, env.engine.Chat("pong"))
	mllm.AssertExpectations(t)
}

func TestUpdateDataConcurrentWriters(t *testing.T) {
	env := newTestEnv(new(MockLLM), new(MockChecker))
	p := env.ws.Project("pong")
	require.NoError(t, p.Scaffold())
	require.NoError(t, p.WriteCode("code"))
	_, err := env.versions.Create(p.Dir, "", "first")
	require.NoError(t, err)

	const writers = 6
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.engine.UpdateData("pong", map[string]interface{}{"round": float64(i)})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	lg, err := env.versions.ChangeLog(p.Dir)
	require.NoError(t, err)
	assert.Len(t, lg.Versions, writers+1, "every edit must append its record")

	// Serialized writers descend one from another, so the graph stays a
	// chain rooted at v1 with unique names.
	seen := map[string]bool{}
	for _, rec := range lg.Versions {
		if rec.Parent != "" {
			assert.True(t, seen[rec.Parent], "parent %q must precede child %q", rec.Parent, rec.Name)
		}
		assert.False(t, seen[rec.Name], "duplicate version name %q", rec.Name)
		seen[rec.Name] = true
	}
	assert.NotEmpty(t, lg.Current)
}

func TestApplyInterviewAnswersUpdatesSpec(t *testing.T) {
	mllm := new(MockLLM)
	mllm.On("UpdateSpecification", mock.Anything, "", mock.MatchedBy(func(answers string) bool {
		return strings.Contains(answers, "Question 1: What genre?") &&
			strings.Contains(answers, "Answer 1: platformer")
	})).Return(llm.SpecUpdate{Comment: "Got it.", Specification: "A platformer."}, nil)

	env := newTestEnv(mllm, new(MockChecker))
	reply, err := env.engine.ApplyInterviewAnswers(context.Background(), "pong", InterviewAnswers{
		MainQuestions: []QuestionAnswer{{Question: "What genre?", Answer: "platformer"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Got it.", reply)

	spec, err := env.engine.Spec("pong")
	require.NoError(t, err)
	assert.Equal(t, "A platformer.", spec)
}
