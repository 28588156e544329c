package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Job statuses reported by AutoVideoMaker.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var ErrJobNotFound = errors.New("export job not found")

// AVMClient talks to the AutoVideoMaker job API.
type AVMClient struct {
	baseURL string
	http    *http.Client
}

type submitResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	FolderPath string `json:"folder_path"`
}

// RemoteStatus is the AutoVideoMaker view of a job.
type RemoteStatus struct {
	Status         string `json:"status"`
	OutputFilePath string `json:"output_file_path,omitempty"`
	Error          string `json:"error,omitempty"`
	Message        string `json:"message,omitempty"`
}

// Terminal reports whether the job will not change again.
func (s RemoteStatus) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

func NewAVMClient(baseURL string, timeout time.Duration) *AVMClient {
	return &AVMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Submit starts an assembly job for a written export folder. The avatar
// video is streamed as the avatar_video form file.
func (c *AVMClient) Submit(ctx context.Context, folder Folder, script string, skipSubtitle bool) (string, string, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeSubmitForm(form, folder, script, skipSubtitle))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/jobs", pr)
	if err != nil {
		pr.Close()
		return "", "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		pr.Close()
		return "", "", fmt.Errorf("submit export job: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", "", statusError("submit export job", resp)
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("decode submit response: %w", err)
	}
	if out.JobID == "" {
		return "", "", fmt.Errorf("submit export job: missing job id")
	}
	if out.Status == "" {
		out.Status = StatusPending
	}
	return out.JobID, out.Status, nil
}

func writeSubmitForm(form *multipart.Writer, folder Folder, script string, skipSubtitle bool) error {
	fields := map[string]string{
		"script":        script,
		"folder_path":   folder.Path,
		"skip_subtitle": strconv.FormatBool(skipSubtitle),
	}
	for _, name := range []string{"script", "folder_path", "skip_subtitle"} {
		if err := form.WriteField(name, fields[name]); err != nil {
			return err
		}
	}
	if folder.AvatarPath != "" {
		f, err := os.Open(folder.AvatarPath)
		if err != nil {
			return err
		}
		defer f.Close()
		part, err := form.CreateFormFile("avatar_video", filepath.Base(folder.AvatarPath))
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, f); err != nil {
			return err
		}
	}
	return form.Close()
}

// Status fetches the current state of a job.
func (c *AVMClient) Status(ctx context.Context, jobID string) (RemoteStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return RemoteStatus{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return RemoteStatus{}, fmt.Errorf("fetch export job: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return RemoteStatus{}, ErrJobNotFound
	}
	if resp.StatusCode/100 != 2 {
		return RemoteStatus{}, statusError("fetch export job", resp)
	}
	var out RemoteStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RemoteStatus{}, fmt.Errorf("decode job status: %w", err)
	}
	return out, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}
