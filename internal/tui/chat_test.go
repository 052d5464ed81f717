package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAsker struct {
	reply Reply
	err   error
	calls []string
	kbs   []string
}

func (f *fakeAsker) Ask(_ context.Context, question, kb string) (Reply, error) {
	f.calls = append(f.calls, question)
	f.kbs = append(f.kbs, kb)
	return f.reply, f.err
}

// drain runs cmd, expanding batches, and returns the messages it produced.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model)
}

func typeAndEnter(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func findAnswer(msgs []tea.Msg) (answerMsg, bool) {
	for _, msg := range msgs {
		if a, ok := msg.(answerMsg); ok {
			return a, true
		}
	}
	return answerMsg{}, false
}

func TestModel_AskRoundTrip(t *testing.T) {
	asker := &fakeAsker{reply: Reply{
		Answer:        "## 核心知识点\nHashMap is not thread safe.",
		Confidence:    0.82,
		MatchedKBs:    []string{"java"},
		ContextLength: 3,
	}}
	m := sized(t, New(context.Background(), asker, ""))

	m, cmd := typeAndEnter(t, m, "HashMap vs ConcurrentHashMap?")
	assert.True(t, m.pending)
	require.Len(t, m.history, 1)
	assert.Empty(t, m.input.Value())

	answer, ok := findAnswer(drain(cmd))
	require.True(t, ok)
	assert.Equal(t, []string{"HashMap vs ConcurrentHashMap?"}, asker.calls)

	next, _ := m.Update(answer)
	m = next.(Model)

	assert.False(t, m.pending)
	require.NotNil(t, m.history[0].reply)
	view := m.View()
	assert.Contains(t, view, "HashMap is not thread safe.")
	assert.Contains(t, m.status, "java")
}

func TestModel_AskErrorIsShown(t *testing.T) {
	asker := &fakeAsker{err: errors.New("API error (400): question is required")}
	m := sized(t, New(context.Background(), asker, ""))

	m, cmd := typeAndEnter(t, m, "what is a volatile field")
	answer, ok := findAnswer(drain(cmd))
	require.True(t, ok)

	next, _ := m.Update(answer)
	m = next.(Model)

	assert.Error(t, m.history[0].err)
	assert.Contains(t, m.status, "question is required")
}

func TestModel_EmptyInputDoesNothing(t *testing.T) {
	asker := &fakeAsker{}
	m := sized(t, New(context.Background(), asker, ""))

	m, cmd := typeAndEnter(t, m, "   ")

	assert.Nil(t, cmd)
	assert.Empty(t, m.history)
	assert.Empty(t, asker.calls)
}

func TestModel_IgnoresEnterWhilePending(t *testing.T) {
	asker := &fakeAsker{}
	m := sized(t, New(context.Background(), asker, ""))

	m, _ = typeAndEnter(t, m, "first")
	m, cmd := typeAndEnter(t, m, "second")

	assert.Nil(t, cmd)
	assert.Len(t, m.history, 1)
}

func TestModel_KnowledgeBaseCommand(t *testing.T) {
	asker := &fakeAsker{reply: Reply{Answer: "ok", MatchedKBs: []string{"jvm"}}}
	m := sized(t, New(context.Background(), asker, ""))

	m, cmd := typeAndEnter(t, m, "/kb jvm")
	assert.Nil(t, cmd)
	assert.Equal(t, "jvm", m.kb)
	assert.Empty(t, m.history)

	m, cmd = typeAndEnter(t, m, "explain G1")
	_, ok := findAnswer(drain(cmd))
	require.True(t, ok)
	assert.Equal(t, []string{"jvm"}, asker.kbs)

	m, _ = typeAndEnter(t, m, "/kb")
	assert.Empty(t, m.kb)
}

func TestModel_ClearCommand(t *testing.T) {
	asker := &fakeAsker{reply: Reply{Answer: "ok"}}
	m := sized(t, New(context.Background(), asker, ""))

	m, cmd := typeAndEnter(t, m, "q1")
	answer, _ := findAnswer(drain(cmd))
	next, _ := m.Update(answer)
	m = next.(Model)
	require.Len(t, m.history, 1)

	m, _ = typeAndEnter(t, m, "/clear")

	assert.Empty(t, m.history)
	assert.Contains(t, m.View(), "No questions yet.")
}

func TestModel_QuitKeys(t *testing.T) {
	m := New(context.Background(), &fakeAsker{}, "")

	for _, key := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		_, cmd := m.Update(tea.KeyMsg{Type: key})
		require.NotNil(t, cmd)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	}
}

func TestModel_ViewBeforeResize(t *testing.T) {
	m := New(context.Background(), &fakeAsker{}, "java")

	assert.Equal(t, "Loading...", m.View())
}
