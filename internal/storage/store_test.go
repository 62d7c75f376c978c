package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hugh/serviexpress/pkg/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentKey(t *testing.T) {
	k1 := NewDocumentKey()
	k2 := NewDocumentKey()

	assert.True(t, strings.HasPrefix(k1, DocumentPrefix))
	assert.True(t, strings.HasSuffix(k1, ".pdf.age"))
	assert.NotEqual(t, k1, k2)
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	data := []byte("%PDF-1.4")
	require.NoError(t, s.Put(ctx, "criminal-records/a.pdf.age", data, "application/pdf"))

	// Callers may reuse their buffer.
	data[0] = 'X'

	got, err := s.Get(ctx, "criminal-records/a.pdf.age")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), got)

	require.NoError(t, s.Delete(ctx, "criminal-records/a.pdf.age"))
	_, err = s.Get(ctx, "criminal-records/a.pdf.age")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, s.Delete(ctx, "criminal-records/a.pdf.age"))
}

func TestMemoryStore_PutEmptyKey(t *testing.T) {
	assert.Error(t, NewMemoryStore().Put(context.Background(), "", nil, ""))
}

func TestMemoryStore_ListAndExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.NoError(t, s.Put(ctx, DocumentPrefix+"old.pdf.age", []byte("a"), ""))
	s.now = func() time.Time { return base.Add(48 * time.Hour) }
	require.NoError(t, s.Put(ctx, DocumentPrefix+"new.pdf.age", []byte("bb"), ""))
	require.NoError(t, s.Put(ctx, "other/x", []byte("c"), ""))

	objs, err := s.List(ctx, DocumentPrefix)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, DocumentPrefix+"new.pdf.age", objs[0].Key)
	assert.Equal(t, int64(2), objs[0].Size)

	expired := Expired(objs, base.Add(24*time.Hour))
	require.Len(t, expired, 1)
	assert.Equal(t, DocumentPrefix+"old.pdf.age", expired[0].Key)
}

func TestSealedStore(t *testing.T) {
	ctx := context.Background()
	enc, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	inner := NewMemoryStore()
	sealed := NewSealedStore(inner, enc)

	doc := []byte("%PDF-1.4 antecedentes")
	require.NoError(t, sealed.Put(ctx, "k", doc, "application/pdf"))

	raw, err := inner.Get(ctx, "k")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "antecedentes")
	assert.Equal(t, sealedContentType, inner.objects["k"].contentType)

	got, err := sealed.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	objs, err := sealed.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, objs, 1)

	require.NoError(t, sealed.Delete(ctx, "k"))
	_, err = sealed.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSealedStore_WrongKey(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()

	server, err := crypto.NewEncryptor("")
	require.NoError(t, err)
	worker, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	require.NoError(t, NewSealedStore(inner, server).Put(ctx, "k", []byte("doc"), ""))

	_, err = NewSealedStore(inner, worker).Get(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening k")
}
