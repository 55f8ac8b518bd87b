package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalTransport mimics the gateway with two directories on disk. Used in
// development and in tests.
type LocalTransport struct {
	uploadDir   string
	feedbackDir string
}

// NewLocalTransport creates the upload and feedback directories under root.
func NewLocalTransport(root, upload, feedback string) (*LocalTransport, error) {
	uploadDir := filepath.Join(root, upload)
	feedbackDir := filepath.Join(root, feedback)
	for _, dir := range []string{uploadDir, feedbackDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("transport: mkdir %s: %w", dir, err)
		}
	}
	return &LocalTransport{uploadDir: uploadDir, feedbackDir: feedbackDir}, nil
}

func (t *LocalTransport) Upload(ctx context.Context, filename string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := filepath.Join(t.uploadDir, filename)
	if err := os.WriteFile(target, payload, 0o644); err != nil {
		return fmt.Errorf("transport: write %s: %w", target, err)
	}
	return nil
}

func (t *LocalTransport) ListFeedback(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(t.feedbackDir)
	if err != nil {
		return nil, fmt.Errorf("transport: read %s: %w", t.feedbackDir, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (t *LocalTransport) DownloadFeedback(ctx context.Context, filename string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := os.ReadFile(filepath.Join(t.feedbackDir, filename))
	if err != nil {
		return nil, fmt.Errorf("transport: read %s: %w", filename, err)
	}
	return payload, nil
}

func (t *LocalTransport) DeleteFeedback(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(t.feedbackDir, filename)); err != nil {
		return fmt.Errorf("transport: remove %s: %w", filename, err)
	}
	return nil
}

func (t *LocalTransport) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, dir := range []string{t.uploadDir, t.feedbackDir} {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("transport: stat %s: %w", dir, err)
		}
	}
	return nil
}
