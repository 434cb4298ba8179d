package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// maxDownloadBytes caps a single transcript download
const maxDownloadBytes = 20 << 20

// queryEscaper quotes a value for a single-quoted Drive search string
var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// DriveFile is the subset of Drive metadata the importer needs
type DriveFile struct {
	ID           string
	Name         string
	MimeType     string
	CreatedTime  time.Time
	ModifiedTime time.Time
}

// DriveClient reads transcript files from a Drive folder
type DriveClient struct {
	service  *drive.Service
	maxBytes int64
}

// NewDriveClient creates a Drive client over an authorized HTTP client
func NewDriveClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*DriveClient, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive client: %w", err)
	}
	return &DriveClient{service: srv, maxBytes: maxDownloadBytes}, nil
}

// ListFiles returns every non-trashed transcript file directly inside folderID
func (c *DriveClient) ListFiles(ctx context.Context, folderID string) ([]DriveFile, error) {
	if folderID == "" {
		return nil, fmt.Errorf("drive folder ID is required")
	}

	var files []DriveFile
	query := fmt.Sprintf("'%s' in parents and trashed = false", queryEscaper.Replace(folderID))
	pageToken := ""

	for {
		call := c.service.Files.List().
			Q(query).
			Fields("nextPageToken, files(id, name, mimeType, createdTime, modifiedTime)").
			PageSize(100).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list drive folder: %w", err)
		}

		for _, f := range resp.Files {
			if !IsTranscriptFile(f.Name, f.MimeType) {
				continue
			}
			files = append(files, DriveFile{
				ID:           f.Id,
				Name:         f.Name,
				MimeType:     f.MimeType,
				CreatedTime:  parseDriveTime(f.CreatedTime),
				ModifiedTime: parseDriveTime(f.ModifiedTime),
			})
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	return files, nil
}

// FetchText downloads a file and extracts its text. Google Docs are
// exported as plain text, everything else is downloaded as-is.
func (c *DriveClient) FetchText(ctx context.Context, file DriveFile) (string, error) {
	var (
		resp *http.Response
		err  error
	)
	if file.MimeType == MimeGoogleDoc {
		resp, err = c.service.Files.Export(file.ID, MimePlainText).Context(ctx).Download()
	} else {
		resp, err = c.service.Files.Get(file.ID).SupportsAllDrives(true).Context(ctx).Download()
	}
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", file.Name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", file.Name, err)
	}
	if int64(len(data)) > c.maxBytes {
		return "", fmt.Errorf("%s exceeds the %d byte download limit", file.Name, c.maxBytes)
	}

	return ExtractText(file.Name, file.MimeType, data)
}

func parseDriveTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
