package cmd

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestWaitSpinnerShowsTimeLeftUntilDeadline(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	model := newWaitSpinnerModel(waitTask{
		Label:    "Waiting for Braavos to approve",
		Hint:     "Approve the connection in your wallet app.",
		Deadline: now.Add(90*time.Second + 400*time.Millisecond),
	}, fixedNow(now), nil)

	view := model.View()
	assert.Contains(t, view, "Waiting for Braavos to approve (1m30s left)")
	assert.Contains(t, view, "Approve the connection in your wallet app.")
}

func TestWaitSpinnerPastDeadlineShowsExpiring(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	model := newWaitSpinnerModel(waitTask{
		Label:    "Waiting for Argent X to approve",
		Deadline: now.Add(-time.Second),
	}, fixedNow(now), nil)

	view := model.View()
	assert.Contains(t, view, "(expiring)")
	assert.NotContains(t, view, "left)")
}

func TestWaitSpinnerWithoutDeadlineShowsLabelOnly(t *testing.T) {
	t.Parallel()

	model := newWaitSpinnerModel(waitTask{Label: "Reading balances..."}, nil, nil)

	view := model.View()
	assert.Contains(t, view, "Reading balances...")
	assert.NotContains(t, view, "left")
	assert.NotContains(t, view, "\n")
}

func TestWaitSpinnerKeepsWorkErrorAndClears(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("wallet rejected")
	model := newWaitSpinnerModel(waitTask{Label: "Waiting"}, nil, nil)

	updated, cmd := model.Update(waitDoneMsg{err: wantErr})
	require.NotNil(t, cmd)
	_, quit := cmd().(tea.QuitMsg)
	assert.True(t, quit)

	final, ok := updated.(waitSpinnerModel)
	require.True(t, ok)
	assert.ErrorIs(t, final.err, wantErr)
	assert.Empty(t, final.View())
}

func TestRunWithSpinnerQuietRunsWorkDirectly(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("timed out")
	calls := 0
	err := runWithSpinner(context.Background(), io.Discard, waitTask{Label: "Waiting"}, true, func(context.Context) error {
		calls++
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}
