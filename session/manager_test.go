package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/document"
)

func TestManagerLifecycle(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.pipeline, time.Minute)

	s := m.Create()
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, 1, m.Count())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = s.Ingest(context.Background(), []document.SourceFile{txt("a.txt", "Some content.")}, "")
	require.NoError(t, err)

	require.NoError(t, m.Delete(s.ID()))
	assert.Equal(t, StateIdle, s.State(), "deleted sessions are cancelled")
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(s.ID()), ErrNotFound)
}

func TestManagerExpiry(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.pipeline, 50*time.Millisecond)
	s := m.Create()

	time.Sleep(120 * time.Millisecond)
	_, err := m.Get(s.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerClose(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.pipeline, time.Minute)
	m.Create()
	m.Create()
	m.Close()
	assert.Zero(t, m.Count())
}

func TestManagerRefreshAfterDeleteDoesNotResurrect(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.pipeline, time.Minute)
	s := m.Create()

	// Delete lands between Get's lookup and its TTL refresh.
	require.NoError(t, m.Delete(s.ID()))
	assert.ErrorIs(t, m.touch(s.ID(), s), ErrNotFound)
	assert.Zero(t, m.Count())
	_, err := m.Get(s.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManagerGetExtendsLifetime(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.pipeline, 400*time.Millisecond)
	s := m.Create()

	time.Sleep(250 * time.Millisecond)
	_, err := m.Get(s.ID())
	require.NoError(t, err)
	time.Sleep(250 * time.Millisecond)
	_, err = m.Get(s.ID())
	assert.NoError(t, err, "Get restarts the TTL")
}
