package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aulagpt/aulagpt-backend/internal/logger"
)

// File is one entry of a course file listing.
type File struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	UpdatedAt string `json:"updated_at"`
}

// RemoteID renders the listing id in the string form the store keys on.
func (f File) RemoteID() string {
	return fmt.Sprintf("%d", f.ID)
}

// Client is the LMS course-file API: paginated listings plus authenticated
// downloads.
type Client interface {
	ListCourseFiles(ctx context.Context, courseID string) ([]File, error)
	// DownloadFile fetches the file body and writes it under destDir,
	// returning the local path.
	DownloadFile(ctx context.Context, file File, destDir string) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	token := strings.TrimSpace(os.Getenv("CANVAS_TOKEN"))
	if token == "" {
		return nil, fmt.Errorf("missing CANVAS_TOKEN")
	}

	baseURL := strings.TrimSpace(os.Getenv("CANVAS_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://canvas.instructure.com/api/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return &client{
		log:        log.With("service", "CanvasClient"),
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *client) ListCourseFiles(ctx context.Context, courseID string) ([]File, error) {
	if strings.TrimSpace(courseID) == "" {
		return nil, fmt.Errorf("course id required")
	}

	pageURL := fmt.Sprintf("%s/courses/%s/files?per_page=100", c.baseURL, url.PathEscape(courseID))
	var all []File

	for pageURL != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list course files: %w", err)
		}
		raw, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("list course files: canvas http %d: %s", resp.StatusCode, string(raw))
		}

		var page []File
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("list course files decode: %w", err)
		}
		all = append(all, page...)

		pageURL = nextPageURL(resp.Header.Get("Link"))
	}

	return all, nil
}

// nextPageURL extracts the rel="next" target from a Link header, or "" when
// the listing is exhausted.
func nextPageURL(linkHeader string) string {
	for _, link := range strings.Split(linkHeader, ",") {
		if !strings.Contains(link, `rel="next"`) {
			continue
		}
		start := strings.Index(link, "<")
		end := strings.Index(link, ">")
		if start >= 0 && end > start {
			return link[start+1 : end]
		}
	}
	return ""
}

func (c *client) DownloadFile(ctx context.Context, file File, destDir string) (string, error) {
	if file.URL == "" {
		return "", fmt.Errorf("file %s has no download url", file.RemoteID())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", file.Filename, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download %s: canvas http %d", file.Filename, resp.StatusCode)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	localName := strings.ReplaceAll(file.Filename, " ", "_")
	localPath := filepath.Join(destDir, localName)

	out, err := os.Create(localPath)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(localPath)
		return "", fmt.Errorf("write %s: %w", localPath, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	return localPath, nil
}
