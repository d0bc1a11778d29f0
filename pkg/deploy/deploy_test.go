package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStage struct {
	name string
	err  error
	ran  *[]string
}

func (s *fakeStage) Name() string { return s.name }

func (s *fakeStage) Run(context.Context) error {
	*s.ran = append(*s.ran, s.name)
	return s.err
}

func TestPipeline_Execute(t *testing.T) {
	t.Run("all stages succeed", func(t *testing.T) {
		var ran []string
		p := &Pipeline{Stages: []Stage{
			&fakeStage{name: "checkout", ran: &ran},
			&fakeStage{name: "lint", ran: &ran},
			&fakeStage{name: "build_frontend", ran: &ran},
		}}

		run, err := p.Execute(context.Background(), "origin/main")
		require.NoError(t, err)

		assert.Equal(t, StatusSuccess, run.Status)
		assert.Equal(t, "origin/main", run.Ref)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, []string{"checkout", "lint", "build_frontend"}, ran)

		for _, res := range run.Stages {
			assert.Equal(t, StatusSuccess, res.Status)
			assert.False(t, res.StartedAt.IsZero())
			assert.False(t, res.FinishedAt.IsZero())
		}
	})

	t.Run("lint failure skips the rest", func(t *testing.T) {
		var ran []string
		lintErr := errors.New("E501 line too long")
		p := &Pipeline{Stages: []Stage{
			&fakeStage{name: "checkout", ran: &ran},
			&fakeStage{name: "lint", err: lintErr, ran: &ran},
			&fakeStage{name: "build_frontend", ran: &ran},
			&fakeStage{name: "package", ran: &ran},
			&fakeStage{name: "transfer", ran: &ran},
			&fakeStage{name: "remote_deploy", ran: &ran},
		}}

		run, err := p.Execute(context.Background(), "origin/main")
		require.ErrorIs(t, err, lintErr)

		// nothing is built or shipped from unlinted code
		assert.Equal(t, []string{"checkout", "lint"}, ran)

		assert.Equal(t, StatusFailed, run.Status)
		assert.Equal(t, StatusSuccess, run.Stages[0].Status)
		assert.Equal(t, StatusFailed, run.Stages[1].Status)
		assert.Equal(t, lintErr.Error(), run.Stages[1].Err)
		for _, res := range run.Stages[2:] {
			assert.Equal(t, StatusSkipped, res.Status)
		}
	})

	t.Run("cancelled context skips remaining stages", func(t *testing.T) {
		var ran []string
		ctx, cancel := context.WithCancel(context.Background())

		p := &Pipeline{Stages: []Stage{
			stageFunc{name: "checkout", fn: func(context.Context) error {
				ran = append(ran, "checkout")
				cancel()
				return nil
			}},
			&fakeStage{name: "lint", ran: &ran},
		}}

		run, err := p.Execute(ctx, "origin/main")
		require.ErrorIs(t, err, context.Canceled)

		assert.Equal(t, []string{"checkout"}, ran)
		assert.Equal(t, StatusFailed, run.Status)
		assert.Equal(t, StatusSkipped, run.Stages[1].Status)
	})
}

type stageFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (s stageFunc) Name() string                  { return s.name }
func (s stageFunc) Run(ctx context.Context) error { return s.fn(ctx) }
