package service

import (
	"context"
	"testing"

	"github.com/cloo-solutions/interviewqa/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeBaseService_ListDefaultsToGlobal(t *testing.T) {
	store, _ := newTestStore(t)
	reg := newTestRegistry(store)

	names, err := reg.List(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"global"}, names)
}

func TestKnowledgeBaseService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	reg := newTestRegistry(store)

	_, err := reg.Create(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidKnowledgeBaseName)
	_, err = reg.Create(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrInvalidKnowledgeBaseName)

	name, err := reg.Create(ctx, "Java")
	require.NoError(t, err)
	assert.Equal(t, "java", name)

	_, err = reg.Create(ctx, "java")
	assert.ErrorIs(t, err, domain.ErrKnowledgeBaseAlreadyExists)
	assert.Equal(t, domain.ErrCodeAlreadyExists, domain.CodeOf(err))
}

func TestKnowledgeBaseService_CreateEnsuresGlobal(t *testing.T) {
	ctx := context.Background()
	store, idx := newTestStore(t)
	reg := newTestRegistry(store)

	_, err := reg.Create(ctx, "network")
	require.NoError(t, err)

	names, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"global", "network"}, names)

	all, _ := idx.All(ctx)
	require.Len(t, all, 2)
	for _, c := range all {
		assert.True(t, c.Marker)
	}
}

func TestKnowledgeBaseService_CreateThenDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	reg := newTestRegistry(store)

	_, err := reg.Create(ctx, "algorithms")
	require.NoError(t, err)

	removed, err := reg.Delete(ctx, "Algorithms")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	names, err := reg.List(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, "algorithms")
	assert.Contains(t, names, "global")
}

func TestKnowledgeBaseService_DeleteProtected(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	reg := newTestRegistry(store)
	require.NoError(t, reg.EnsureGlobal(ctx))

	for _, name := range []string{"global", "GLOBAL", " Global ", "system", "System"} {
		_, err := reg.Delete(ctx, name)
		assert.ErrorIs(t, err, domain.ErrProtectedKnowledgeBase, name)
		assert.Equal(t, domain.ErrCodeForbidden, domain.CodeOf(err))
	}

	names, _ := reg.List(ctx)
	assert.Equal(t, []string{"global"}, names)
}

func TestKnowledgeBaseService_CreateReservedName(t *testing.T) {
	ctx := context.Background()
	store, idx := newTestStore(t)
	reg := newTestRegistry(store)

	for _, name := range []string{"system", " System "} {
		_, err := reg.Create(ctx, name)
		assert.ErrorIs(t, err, domain.ErrReservedKnowledgeBaseName, name)
		assert.Equal(t, domain.ErrCodeForbidden, domain.CodeOf(err))
	}

	all, _ := idx.All(ctx)
	assert.Empty(t, all)
}

func TestKnowledgeBaseService_DeleteUnknownIsNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	reg := newTestRegistry(store)

	_, err := reg.Delete(context.Background(), "nothing-here")

	assert.ErrorIs(t, err, domain.ErrKnowledgeBaseNotFound)
}

func TestKnowledgeBaseService_DeleteRemovesOnlyTargetAndArchive(t *testing.T) {
	ctx := context.Background()
	store, idx := newTestStore(t)
	ingest, _ := newTestIngest(store, sampleText(1500))
	archive := newRecordingArchive()
	reg := newTestRegistry(store).WithArchive(archive)

	n, err := ingest.Ingest(ctx, "jvm.pdf", "java")
	require.NoError(t, err)

	removed, err := reg.Delete(ctx, "java")
	require.NoError(t, err)
	assert.Equal(t, n, removed)

	all, _ := idx.All(ctx)
	assert.Len(t, all, n, "global mirrors stay")
	assert.Equal(t, []string{"java/"}, archive.deleted)
}

func TestKnowledgeBaseService_Stats(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	ingest, _ := newTestIngest(store, threePageText())
	reg := newTestRegistry(store)

	n, err := ingest.Ingest(ctx, "jvm.pdf", "java")
	require.NoError(t, err)
	_, err = reg.Create(ctx, "network")
	require.NoError(t, err)

	one, err := reg.Stats(ctx, "JAVA")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, n, one[0].DocumentCount)
	assert.Equal(t, 1, one[0].SourceCount)

	all, err := reg.Stats(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "global", all[0].Name)
	assert.Equal(t, n, all[0].DocumentCount)
	assert.Equal(t, "network", all[2].Name)
	assert.Equal(t, 0, all[2].DocumentCount)

	_, err = reg.Stats(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrKnowledgeBaseNotFound)
}

func TestKnowledgeBaseService_StatsGlobalWhenEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	reg := newTestRegistry(store)

	stats, err := reg.Stats(context.Background(), "global")

	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 0, stats[0].DocumentCount)
}
