// Package archive exports audit log ranges as signed tar.zst archives, optionally age-encrypted.
package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"adconsole/internal/models"
)

const (
	manifestFileName = "manifest.yaml"
	entriesFileName  = "entries.jsonl"
)

// Source streams audit entries in timestamp order, batch by batch.
type Source func(ctx context.Context, fn func([]models.AuditLog) error) error

// BuildConfig configures archive creation.
type BuildConfig struct {
	Source     Source
	Since      time.Time
	Until      time.Time
	Output     string
	Signer     *Signer
	Recipients []age.Recipient
	Now        func() time.Time
}

// VerifyConfig configures archive verification.
type VerifyConfig struct {
	Path       string
	Signer     *Signer
	Identities []age.Identity
}

// Build writes the entries produced by Source to Output and returns the signed manifest.
func Build(ctx context.Context, cfg BuildConfig) (*Manifest, error) {
	if cfg.Source == nil {
		return nil, errors.New("entry source is required")
	}
	if cfg.Output == "" {
		return nil, errors.New("output path is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	staged, err := os.CreateTemp("", "adconsole-entries-*.jsonl")
	if err != nil {
		return nil, fmt.Errorf("stage entries: %w", err)
	}
	defer func() {
		staged.Close()
		os.Remove(staged.Name())
	}()

	manifest := &Manifest{
		Version:          manifestVersion,
		CreatedAt:        cfg.Now().UTC().Truncate(time.Second),
		Since:            cfg.Since.UTC(),
		Until:            cfg.Until.UTC(),
		Signer:           cfg.Signer.Recipient(),
		SigningPublicKey: cfg.Signer.PublicKeyBase64(),
		Entries:          EntriesFile{Path: entriesFileName},
		Actions:          map[string]int{},
	}

	if err := stageEntries(ctx, cfg.Source, staged, manifest); err != nil {
		return nil, err
	}

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for signing: %w", err)
	}
	if manifest.Signature, err = cfg.Signer.Sign(payload); err != nil {
		return nil, fmt.Errorf("sign manifest: %w", err)
	}
	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	if _, err := staged.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind entries: %w", err)
	}
	if err := writeArchive(cfg.Output, cfg.Recipients, manifestBytes, staged, manifest.Entries.Size, manifest.CreatedAt); err != nil {
		return nil, err
	}
	return manifest, nil
}

func stageEntries(ctx context.Context, src Source, w io.Writer, m *Manifest) error {
	hash := sha256.New()
	counter := &countingWriter{w: io.MultiWriter(w, hash)}
	enc := json.NewEncoder(counter)

	err := src(ctx, func(batch []models.AuditLog) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, entry := range batch {
			if err := enc.Encode(entry); err != nil {
				return fmt.Errorf("encode entry %s: %w", entry.ID, err)
			}
			if m.Entries.Count == 0 {
				m.Entries.First = entry.Timestamp.UTC()
			}
			m.Entries.Last = entry.Timestamp.UTC()
			m.Entries.Count++
			m.Actions[entry.Action]++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("read audit entries: %w", err)
	}

	m.Entries.Size = counter.n
	m.Entries.SHA256 = hex.EncodeToString(hash.Sum(nil))
	return nil
}

func writeArchive(output string, recipients []age.Recipient, manifest []byte, entries io.Reader, size int64, modTime time.Time) (err error) {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close output file: %w", cerr)
		}
	}()

	var sink io.WriteCloser = nopCloser{file}
	if len(recipients) > 0 {
		if sink, err = age.Encrypt(file, recipients...); err != nil {
			return fmt.Errorf("age encrypt: %w", err)
		}
	}

	encoder, err := zstd.NewWriter(sink)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(encoder)

	if err := writeTarFile(tw, manifestFileName, int64(len(manifest)), modTime, bytes.NewReader(manifest)); err != nil {
		return err
	}
	if err := writeTarFile(tw, entriesFileName, size, modTime, entries); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("close age: %w", err)
	}
	return nil
}

func writeTarFile(tw *tar.Writer, name string, size int64, modTime time.Time, r io.Reader) error {
	header := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     size,
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write header for %q: %w", name, err)
	}
	if _, err := io.Copy(tw, r); err != nil {
		return fmt.Errorf("write %q: %w", name, err)
	}
	return nil
}

// Verify opens an archive, checks the manifest signature and the entries digest, and returns the
// manifest.
func Verify(ctx context.Context, cfg VerifyConfig) (*Manifest, error) {
	if cfg.Path == "" {
		return nil, errors.New("archive file is required")
	}

	file, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	var src io.Reader = bufio.NewReader(file)
	if len(cfg.Identities) > 0 {
		if src, err = age.Decrypt(src, cfg.Identities...); err != nil {
			return nil, fmt.Errorf("age decrypt: %w", err)
		}
	}

	decoder, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer decoder.Close()

	var (
		manifestBytes []byte
		count         int
		size          int64
		digest        string
		seenEntries   bool
	)
	tr := tar.NewReader(decoder)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}
		switch header.Name {
		case manifestFileName:
			if manifestBytes, err = io.ReadAll(tr); err != nil {
				return nil, fmt.Errorf("read manifest: %w", err)
			}
		case entriesFileName:
			if count, size, digest, err = scanEntries(tr); err != nil {
				return nil, err
			}
			seenEntries = true
		}
	}

	if len(manifestBytes) == 0 {
		return nil, fmt.Errorf("archive missing %s", manifestFileName)
	}
	if !seenEntries {
		return nil, fmt.Errorf("archive missing %s", entriesFileName)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %q", manifest.Version)
	}
	if manifest.Signature == "" {
		return nil, errors.New("manifest missing signature")
	}
	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for verification: %w", err)
	}
	if err := cfg.Signer.Verify(payload, manifest.Signature, manifest.SigningPublicKey); err != nil {
		return nil, fmt.Errorf("verify manifest signature: %w", err)
	}

	if count != manifest.Entries.Count {
		return nil, fmt.Errorf("entry count mismatch: manifest %d, archive %d", manifest.Entries.Count, count)
	}
	if size != manifest.Entries.Size {
		return nil, fmt.Errorf("entries size mismatch: manifest %d, archive %d", manifest.Entries.Size, size)
	}
	if !strings.EqualFold(digest, manifest.Entries.SHA256) {
		return nil, errors.New("entries sha256 mismatch")
	}
	return &manifest, nil
}

func scanEntries(r io.Reader) (int, int64, string, error) {
	hash := sha256.New()
	counter := &countingWriter{w: hash}
	scanner := bufio.NewScanner(io.TeeReader(r, counter))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	count := 0
	for scanner.Scan() {
		var entry models.AuditLog
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return 0, 0, "", fmt.Errorf("decode entry %d: %w", count+1, err)
		}
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, "", fmt.Errorf("read entries: %w", err)
	}
	return count, counter.n, hex.EncodeToString(hash.Sum(nil)), nil
}

// Uploader stores a finished archive.
type Uploader interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, sha256 string) error
}

// Upload sends the archive at path to bucket under key.
func Upload(ctx context.Context, up Uploader, bucket, key, path string) error {
	if up == nil {
		return errors.New("uploader is required")
	}
	if bucket == "" {
		return errors.New("bucket is required")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, file)
	if err != nil {
		return fmt.Errorf("hash archive: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind archive: %w", err)
	}
	if err := up.PutObject(ctx, bucket, key, file, size, hex.EncodeToString(hash.Sum(nil))); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// ObjectKey names an archive object after the range it covers.
func ObjectKey(m *Manifest) string {
	until := "open"
	if !m.Until.IsZero() {
		until = m.Until.UTC().Format("20060102T150405Z")
	}
	return fmt.Sprintf("audit/%s-%s.tar.zst", m.Since.UTC().Format("20060102T150405Z"), until)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
