package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"adconsole/internal/audit"
	"adconsole/internal/models"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func entries(n int) []models.AuditLog {
	actor := uuid.New()
	out := make([]models.AuditLog, 0, n)
	for i := 0; i < n; i++ {
		action := audit.ActionLogin
		if i%2 == 1 {
			action = audit.ActionLoginFailed
		}
		out = append(out, models.AuditLog{
			ID:        uuid.New(),
			UserID:    actor,
			Action:    action,
			Target:    "jdoe",
			Timestamp: epoch.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func sliceSource(rows []models.AuditLog, batch int) Source {
	return func(_ context.Context, fn func([]models.AuditLog) error) error {
		for start := 0; start < len(rows); start += batch {
			end := min(start+batch, len(rows))
			if err := fn(rows[start:end]); err != nil {
				return err
			}
		}
		return nil
	}
}

func newSigner(t *testing.T) (*Signer, *age.X25519Identity) {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	s, err := NewSigner(id.String(), "")
	require.NoError(t, err)
	return s, id
}

func TestBuildAndVerify(t *testing.T) {
	signer, id := newSigner(t)
	out := filepath.Join(t.TempDir(), "out", "audit.tar.zst")

	m, err := Build(context.Background(), BuildConfig{
		Source: sliceSource(entries(5), 2),
		Since:  epoch,
		Until:  epoch.Add(time.Hour),
		Output: out,
		Signer: signer,
		Now:    func() time.Time { return epoch.Add(2 * time.Hour) },
	})
	require.NoError(t, err)
	assert.Equal(t, 5, m.Entries.Count)
	assert.Equal(t, map[string]int{audit.ActionLogin: 3, audit.ActionLoginFailed: 2}, m.Actions)
	assert.Equal(t, epoch, m.Entries.First)
	assert.Equal(t, epoch.Add(4*time.Minute), m.Entries.Last)
	assert.Equal(t, id.Recipient().String(), m.Signer)
	assert.Equal(t, "audit/20260301T090000Z-20260301T100000Z.tar.zst", ObjectKey(m))

	got, err := Verify(context.Background(), VerifyConfig{Path: out, Signer: signer})
	require.NoError(t, err)
	assert.Equal(t, m.Entries.SHA256, got.Entries.SHA256)
	assert.Equal(t, m.Signature, got.Signature)

	// Verification without a configured key trusts the embedded public key.
	_, err = Verify(context.Background(), VerifyConfig{Path: out})
	assert.NoError(t, err)
}

func TestVerifyRejectsForeignSigner(t *testing.T) {
	signer, _ := newSigner(t)
	other, _ := newSigner(t)
	out := filepath.Join(t.TempDir(), "audit.tar.zst")

	_, err := Build(context.Background(), BuildConfig{Source: sliceSource(entries(2), 10), Since: epoch, Output: out, Signer: signer})
	require.NoError(t, err)

	_, err = Verify(context.Background(), VerifyConfig{Path: out, Signer: other})
	assert.ErrorContains(t, err, "unexpected key")
}

func TestEncryptedArchive(t *testing.T) {
	signer, _ := newSigner(t)
	reader, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	recipients, err := ParseRecipients([]string{reader.Recipient().String()})
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "audit.tar.zst.age")

	_, err = Build(context.Background(), BuildConfig{
		Source:     sliceSource(entries(3), 10),
		Since:      epoch,
		Output:     out,
		Signer:     signer,
		Recipients: recipients,
	})
	require.NoError(t, err)

	_, err = Verify(context.Background(), VerifyConfig{Path: out, Signer: signer})
	assert.Error(t, err, "ciphertext is not a zstd stream")

	ids, err := ParseIdentities([]string{reader.String()})
	require.NoError(t, err)
	m, err := Verify(context.Background(), VerifyConfig{Path: out, Signer: signer, Identities: ids})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Entries.Count)
	assert.True(t, m.Until.IsZero())
}

func TestBuildEmptyRange(t *testing.T) {
	signer, _ := newSigner(t)
	out := filepath.Join(t.TempDir(), "empty.tar.zst")

	m, err := Build(context.Background(), BuildConfig{Source: sliceSource(nil, 10), Since: epoch, Output: out, Signer: signer})
	require.NoError(t, err)
	assert.Zero(t, m.Entries.Count)

	_, err = Verify(context.Background(), VerifyConfig{Path: out, Signer: signer})
	assert.NoError(t, err)
}

func TestBuildValidation(t *testing.T) {
	signer, _ := newSigner(t)
	src := sliceSource(entries(1), 1)
	ctx := context.Background()

	_, err := Build(ctx, BuildConfig{Output: "x", Signer: signer})
	assert.Error(t, err)
	_, err = Build(ctx, BuildConfig{Source: src, Signer: signer})
	assert.Error(t, err)
	_, err = Build(ctx, BuildConfig{Source: src, Output: "x"})
	assert.Error(t, err)

	verifyOnly, err := NewSigner("", signer.PublicKeyBase64())
	require.NoError(t, err)
	_, err = Build(ctx, BuildConfig{Source: src, Output: filepath.Join(t.TempDir(), "a"), Signer: verifyOnly})
	assert.ErrorContains(t, err, "without private key")

	failing := func(context.Context, func([]models.AuditLog) error) error { return errors.New("db gone") }
	_, err = Build(ctx, BuildConfig{Source: failing, Output: filepath.Join(t.TempDir(), "b"), Signer: signer})
	assert.ErrorContains(t, err, "db gone")
}

func TestSignerKeys(t *testing.T) {
	signer, _ := newSigner(t)

	_, err := NewSigner("", "")
	assert.Error(t, err)
	_, err = NewSigner("AGE-SECRET-KEY-1NOTVALID", "")
	assert.Error(t, err)

	other, _ := newSigner(t)
	_, err = NewSigner(mustSecret(t), other.PublicKeyBase64())
	assert.ErrorContains(t, err, "does not match")

	sig, err := signer.Sign([]byte("payload"))
	require.NoError(t, err)
	assert.NoError(t, signer.Verify([]byte("payload"), sig, ""))
	assert.Error(t, signer.Verify([]byte("tampered"), sig, ""))
}

func mustSecret(t *testing.T) string {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	return id.String()
}

type recordingUploader struct {
	bucket, key, sha string
	size            int64
	body            []byte
}

func (r *recordingUploader) PutObject(_ context.Context, bucket, key string, body io.Reader, size int64, sha string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	r.bucket, r.key, r.size, r.sha, r.body = bucket, key, size, sha, data
	return nil
}

func TestUpload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.tar.zst")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	up := &recordingUploader{}
	require.NoError(t, Upload(context.Background(), up, "audit-archive", "audit/a.tar.zst", path))
	assert.Equal(t, "audit-archive", up.bucket)
	assert.EqualValues(t, 5, up.size)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", up.sha)
	assert.Equal(t, []byte("hello"), up.body)

	assert.Error(t, Upload(context.Background(), up, "", "k", path))
	assert.Error(t, Upload(context.Background(), nil, "b", "k", path))
}
