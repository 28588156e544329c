// Package client is a typed client for the ContentBuddy HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/contentbuddy/contentbuddy/internal/api"
	"github.com/contentbuddy/contentbuddy/internal/audio"
	"github.com/contentbuddy/contentbuddy/internal/batch"
	"github.com/contentbuddy/contentbuddy/internal/dictionary"
	"github.com/contentbuddy/contentbuddy/internal/export"
	"github.com/contentbuddy/contentbuddy/internal/llm"
	"github.com/contentbuddy/contentbuddy/internal/pronunciation"
	"github.com/contentbuddy/contentbuddy/internal/segment"
)

// APIError is a non-2xx reply.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("api %d: %s: %s", e.StatusCode, e.Message, e.Details)
	}
	if e.Message != "" {
		return fmt.Sprintf("api %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api %d", e.StatusCode)
}

// IsStatus reports whether err is an *APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

type Client struct {
	baseURL string
	http    *http.Client

	mu        sync.Mutex
	sessionID string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

// WithSessionID tags every request with a project session id.
func WithSessionID(id string) Option { return func(c *Client) { c.sessionID = id } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/"), http: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ batch.Generator = (*Client)(nil)

// SessionID returns the configured session, or the one the server assigned
// on the first reply.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if id := c.SessionID(); id != "" {
		req.Header.Set(api.SessionHeader, id)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	c.mu.Lock()
	if c.sessionID == "" {
		c.sessionID = resp.Header.Get(api.SessionHeader)
	}
	c.mu.Unlock()
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: data}
	var body api.ErrorResponse
	if json.Unmarshal(data, &body) == nil {
		apiErr.Message = body.Error
		apiErr.Details = body.Details
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// Slice asks the service to cut a script into segments.
func (c *Client) Slice(ctx context.Context, script string) ([]segment.Segment, error) {
	var out api.SliceResponse
	if err := c.call(ctx, http.MethodPost, "/api/slice", api.SliceRequest{Script: script}, &out); err != nil {
		return nil, err
	}
	return out.Segments, nil
}

func (c *Client) Prompt(ctx context.Context, segmentID, text, style string) (string, error) {
	var out api.PromptResponse
	err := c.call(ctx, http.MethodPost, "/api/generate/prompt", api.PromptRequest{SegmentID: segmentID, Text: text, Style: style}, &out)
	return out.Prompt, err
}

func (c *Client) Image(ctx context.Context, segmentID, prompt string) (string, error) {
	var out api.ImageResponse
	err := c.call(ctx, http.MethodPost, "/api/generate/image", api.ImageRequest{SegmentID: segmentID, Prompt: prompt}, &out)
	return out.ImageURL, err
}

func (c *Client) Audio(ctx context.Context, req batch.AudioRequest) (batch.AudioResult, error) {
	in := api.AudioRequest{
		SegmentID:         req.SegmentID,
		Text:              req.Text,
		VoiceID:           req.VoiceID,
		PronunciationDict: req.Pronunciations,
		Emotion:           req.Emotion,
	}
	if req.Speed > 0 {
		speed := req.Speed
		in.Speed = &speed
	}
	var out api.AudioResponse
	if err := c.call(ctx, http.MethodPost, "/api/generate/audio", in, &out); err != nil {
		return batch.AudioResult{}, err
	}
	return batch.AudioResult{URL: out.AudioURL, Duration: out.Duration}, nil
}

func (c *Client) Dictionary(ctx context.Context) ([]pronunciation.Item, error) {
	var out api.DictionaryResponse
	if err := c.call(ctx, http.MethodGet, "/api/dictionary/all", nil, &out); err != nil {
		return nil, err
	}
	return out.PronunciationDict, nil
}

func (c *Client) CheckWord(ctx context.Context, word string) (dictionary.Entry, bool, error) {
	var out api.CheckResponse
	if err := c.call(ctx, http.MethodPost, "/api/dictionary/check", api.WordRequest{Word: word}, &out); err != nil {
		return dictionary.Entry{}, false, err
	}
	if !out.Exists || out.Entry == nil {
		return dictionary.Entry{}, false, nil
	}
	return *out.Entry, true, nil
}

// SaveWord updates entry.RowIndex when set, otherwise appends.
func (c *Client) SaveWord(ctx context.Context, entry dictionary.Entry) error {
	in := api.SaveRequest{Word: entry.Word, Pinyin: entry.Pinyin}
	if entry.RowIndex > 0 {
		row := entry.RowIndex
		in.RowIndex = &row
	}
	return c.call(ctx, http.MethodPost, "/api/dictionary/save", in, &api.SaveResponse{})
}

func (c *Client) SaveWords(ctx context.Context, entries []api.SaveEntry) error {
	return c.call(ctx, http.MethodPost, "/api/dictionary/save", api.SaveRequest{Entries: entries}, &api.SaveResponse{})
}

func (c *Client) GeneratePinyin(ctx context.Context, word string) (string, error) {
	var out api.PinyinResponse
	err := c.call(ctx, http.MethodPost, "/api/dictionary/generate-pinyin", api.WordRequest{Word: word}, &out)
	return out.Pinyin, err
}

func (c *Client) Styles(ctx context.Context) ([]llm.Style, error) {
	var out api.StylesResponse
	if err := c.call(ctx, http.MethodGet, "/api/styles", nil, &out); err != nil {
		return nil, err
	}
	return out.Styles, nil
}

func (c *Client) MergeAudio(ctx context.Context, clips []audio.Clip) (api.MergeResponse, error) {
	var out api.MergeResponse
	err := c.call(ctx, http.MethodPost, "/api/audio/merge", api.ClipsRequest{Segments: clips}, &out)
	return out, err
}

// ZipAudio returns the ZIP archive bytes.
func (c *Client) ZipAudio(ctx context.Context, clips []audio.Clip) ([]byte, error) {
	data, err := json.Marshal(api.ClipsRequest{Segments: clips})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/audio/zip", bytes.NewReader(data), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// ExportUpload is the multipart export submission.
type ExportUpload struct {
	Script       string
	Segments     []export.SegmentAsset
	AvatarName   string
	Avatar       io.Reader
	SkipSubtitle bool
}

func (c *Client) Export(ctx context.Context, up ExportUpload) (api.ExportResponse, error) {
	segments, err := json.Marshal(up.Segments)
	if err != nil {
		return api.ExportResponse{}, err
	}
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeExportForm(form, up, segments))
	}()
	resp, err := c.do(ctx, http.MethodPost, "/api/export", pr, form.FormDataContentType())
	if err != nil {
		pr.Close()
		return api.ExportResponse{}, err
	}
	defer resp.Body.Close()
	var out api.ExportResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return api.ExportResponse{}, fmt.Errorf("decode export response: %w", err)
	}
	return out, nil
}

func writeExportForm(form *multipart.Writer, up ExportUpload, segments []byte) error {
	if up.Avatar != nil {
		name := up.AvatarName
		if name == "" {
			name = "avatar.mp4"
		}
		part, err := form.CreateFormFile("avatarVideo", name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, up.Avatar); err != nil {
			return err
		}
	}
	if err := form.WriteField("script", up.Script); err != nil {
		return err
	}
	if err := form.WriteField("segments", string(segments)); err != nil {
		return err
	}
	if err := form.WriteField("skipSubtitle", strconv.FormatBool(up.SkipSubtitle)); err != nil {
		return err
	}
	return form.Close()
}

func (c *Client) ExportStatus(ctx context.Context, jobID string) (api.ExportStatusResponse, error) {
	var out api.ExportStatusResponse
	err := c.call(ctx, http.MethodGet, "/api/export?jobId="+url.QueryEscape(jobID), nil, &out)
	return out, err
}

// DefaultPollInterval matches the export page's polling cadence.
const DefaultPollInterval = 3 * time.Second

// WaitExport polls a job until it completes or fails. Poll errors other than
// 404 are retried until ctx ends.
func (c *Client) WaitExport(ctx context.Context, jobID string, interval time.Duration, onUpdate func(api.ExportStatusResponse)) (api.ExportStatusResponse, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return api.ExportStatusResponse{}, fmt.Errorf("%w (last poll error: %v)", ctx.Err(), lastErr)
			}
			return api.ExportStatusResponse{}, ctx.Err()
		case <-ticker.C:
		}
		status, err := c.ExportStatus(ctx, jobID)
		if err != nil {
			if IsStatus(err, http.StatusNotFound) {
				return api.ExportStatusResponse{}, err
			}
			lastErr = err
			continue
		}
		if onUpdate != nil {
			onUpdate(status)
		}
		if status.Status == export.StatusCompleted || status.Status == export.StatusFailed {
			return status, nil
		}
	}
}

// Download streams an exported video to w.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/export/download?path="+url.QueryEscape(path), nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return io.Copy(w, resp.Body)
}
