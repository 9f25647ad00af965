// File: internal/engage/engager.go

// Package engage produces synthetic engagement content (comments and post
// ideas) for media files using Google's generative API. The media file is
// uploaded, the model prompted for strict JSON, and the upload removed
// again afterwards on a best-effort basis.
package engage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xkilldash9x/mediaforge/internal/config"
	"github.com/xkilldash9x/mediaforge/internal/metadata"
)

// ErrMissingAPIKey is returned when the service is constructed without
// credentials. Callers must treat this as fatal; there is no degraded mode.
var ErrMissingAPIKey = errors.New("engage: gemini api key is not configured")

// Comment is one synthetic comment attributed to an invented username.
type Comment struct {
	Username string `json:"username"`
	Comment  string `json:"comment"`
}

// PostIdea is a suggested topic with a short description, derived from the
// content of an uploaded media file.
type PostIdea struct {
	Topic string `json:"topic"`
	Desc  string `json:"desc"`
}

// Engager talks to the generative backend. All requests pass through a
// shared rate limiter so bursts from the web layer cannot exhaust the
// API quota.
type Engager struct {
	cfg     config.GeminiConfig
	client  *genai.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewEngager builds the service. It fails immediately when no API key is
// configured rather than deferring the error to the first request.
func NewEngager(ctx context.Context, cfg config.GeminiConfig, logger *zap.Logger) (*Engager, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("engage: failed to initialize genai client: %w", err)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 10
	}

	return &Engager{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		logger:  logger.Named("engage"),
	}, nil
}

// GenerateComments produces up to count synthetic comments for the media
// file at mediaPath, using desc as additional post context. A response the
// model mangles yields an empty slice, not an error.
func (e *Engager) GenerateComments(ctx context.Context, mediaPath, desc string, count int) ([]Comment, error) {
	if count <= 0 {
		count = 3
	}
	prompt := fmt.Sprintf(`Look at this media and the post description %q.
Write %d short, casual social-media comments reacting to it, each from a different invented user.
Respond with ONLY a JSON array, no prose and no markdown, where each element is an object with exactly two string fields: "username" and "comment".`,
		desc, count)

	raw, err := e.describeMedia(ctx, mediaPath, prompt)
	if err != nil {
		return nil, err
	}

	comments := parseList[Comment](raw, e.logger)
	if len(comments) > count {
		comments = comments[:count]
	}
	return comments, nil
}

// SuggestPostIdeas asks the model for post topics inspired by the media
// file at mediaPath.
func (e *Engager) SuggestPostIdeas(ctx context.Context, mediaPath string, count int) ([]PostIdea, error) {
	if count <= 0 {
		count = 3
	}
	prompt := fmt.Sprintf(`Look at this media file.
Suggest %d social-media post ideas inspired by it.
Respond with ONLY a JSON array, no prose and no markdown, where each element is an object with exactly two string fields: "topic" and "desc".`,
		count)

	raw, err := e.describeMedia(ctx, mediaPath, prompt)
	if err != nil {
		return nil, err
	}

	ideas := parseList[PostIdea](raw, e.logger)
	if len(ideas) > count {
		ideas = ideas[:count]
	}
	return ideas, nil
}

// describeMedia uploads the media file, runs one generation against it and
// deletes the upload again. Returns the raw model text.
func (e *Engager) describeMedia(ctx context.Context, mediaPath, prompt string) (string, error) {
	if metadata.Classify(mediaPath) == metadata.KindUnknown {
		return "", fmt.Errorf("engage: unsupported media type for %q", mediaPath)
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	file, err := e.uploadAndAwait(ctx, mediaPath)
	if err != nil {
		return "", err
	}
	defer e.deleteUpload(file.Name)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromURI(file.URI, file.MIMEType),
			genai.NewPartFromText(prompt),
		}, genai.RoleUser),
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.cfg.Model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("engage: generation failed: %w", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					out.WriteString(part.Text)
				}
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("engage: model returned no text")
	}
	return out.String(), nil
}

// uploadAndAwait pushes the file to the API and polls until it leaves the
// PROCESSING state. A FAILED terminal state is an error.
func (e *Engager) uploadAndAwait(ctx context.Context, mediaPath string) (*genai.File, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return nil, fmt.Errorf("engage: failed to open media %q: %w", mediaPath, err)
	}
	defer f.Close()

	file, err := e.client.Files.Upload(ctx, f, &genai.UploadFileConfig{
		MIMEType: mimeTypeFor(mediaPath),
	})
	if err != nil {
		return nil, fmt.Errorf("engage: upload failed for %q: %w", mediaPath, err)
	}
	e.logger.Debug("Media uploaded.", zap.String("file", file.Name), zap.String("state", string(file.State)))

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			e.deleteUpload(file.Name)
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
		file, err = e.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("engage: failed to poll upload state: %w", err)
		}
	}

	if file.State == genai.FileStateFailed {
		e.deleteUpload(file.Name)
		return nil, fmt.Errorf("engage: upload processing failed for %q", mediaPath)
	}
	return file, nil
}

// deleteUpload removes a remote file. The API garbage-collects uploads
// after 48 hours anyway, so failures are only logged.
func (e *Engager) deleteUpload(name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := e.client.Files.Delete(ctx, name, nil); err != nil {
		e.logger.Debug("Failed to delete upload.", zap.String("file", name), zap.Error(err))
	}
}

// mimeTypeFor guesses a MIME type from the file extension, falling back to
// a generic binary type the upload API accepts.
func mimeTypeFor(path string) string {
	if mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
