package notebook

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/daylog/internal/apperr"
	"github.com/starford/daylog/internal/notes"
)

// MaxAttachmentSize bounds a single attachment.
const MaxAttachmentSize = 50 << 20 // 50 MB

var (
	mimeToExt = map[string]string{
		"image/png":       ".png",
		"image/jpeg":      ".jpg",
		"image/gif":       ".gif",
		"image/webp":      ".webp",
		"image/svg+xml":   ".svg",
		"application/pdf": ".pdf",
	}

	unsafeNameRe = regexp.MustCompile(`[^\p{L}\p{N}._-]`)
)

// Attachment is a stored attachment.
type Attachment struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Ref      string `json:"ref"`
	Size     int    `json:"size"`
	Markdown string `json:"markdown"`
}

// UploadAttachment stores data as YEAR/MM/assets/<filename> and commits it.
// An existing file with the same name is replaced.
func (s *Service) UploadAttachment(ctx context.Context, year, month, filename string, data []byte) (*Attachment, error) {
	if err := validMonth(year, month); err != nil {
		return nil, err
	}
	if len(data) > MaxAttachmentSize {
		return nil, fmt.Errorf("notebook: attachment of %d bytes exceeds %d: %w", len(data), MaxAttachmentSize, apperr.ErrMalformedInput)
	}
	name := sanitizeFilename(filename)
	rel := notes.AttachmentPath(year, month, name)
	if err := s.store.WriteFile(ctx, rel, data, "upload attachment "+name); err != nil {
		return nil, err
	}
	ref := notes.AttachmentRef(name)
	return &Attachment{
		Name:     name,
		Path:     rel,
		Ref:      ref,
		Size:     len(data),
		Markdown: fmt.Sprintf("![%s](%s)", name, ref),
	}, nil
}

// FetchAttachment stores the content of a data: URI or an http(s) URL as an
// attachment. Fetched content must be an image or PDF matching its extension.
func (s *Service) FetchAttachment(ctx context.Context, year, month, rawURL, filename string) (*Attachment, error) {
	var (
		data []byte
		ext  string
		err  error
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, ext, err = decodeDataURI(rawURL)
	} else {
		data, ext, err = fetchHTTP(ctx, rawURL)
	}
	if err != nil {
		return nil, fmt.Errorf("notebook: %v: %w", err, apperr.ErrMalformedInput)
	}
	if filename == "" {
		filename = filenameFromURL(rawURL, ext)
	}
	filename = sanitizeFilename(filename)
	if err := validateMagicBytes(data, strings.ToLower(filepath.Ext(filename))); err != nil {
		return nil, fmt.Errorf("notebook: %v: %w", err, apperr.ErrMalformedInput)
	}
	return s.UploadAttachment(ctx, year, month, filename, data)
}

// DeleteAttachment removes an attachment and commits the removal.
func (s *Service) DeleteAttachment(ctx context.Context, rel string) error {
	if !IsAttachmentPath(rel) {
		return fmt.Errorf("notebook: %q is not an attachment: %w", rel, apperr.ErrMalformedInput)
	}
	return s.store.RemoveFile(ctx, rel, "delete attachment "+rel)
}

// AttachmentFile resolves rel to an absolute path for serving.
func (s *Service) AttachmentFile(rel string) (string, error) {
	if !IsAttachmentPath(rel) {
		return "", fmt.Errorf("notebook: %q is not an attachment: %w", rel, apperr.ErrMalformedInput)
	}
	return s.store.Abs(rel)
}

// IsAttachmentPath reports whether rel has the YEAR/MM/assets/name shape.
func IsAttachmentPath(rel string) bool {
	parts := strings.Split(rel, "/")
	if len(parts) != 4 || parts[2] != "assets" {
		return false
	}
	if validMonth(parts[0], parts[1]) != nil {
		return false
	}
	return parts[3] != "" && parts[3] == sanitizeFilename(parts[3])
}

func validMonth(year, month string) error {
	y, yErr := strconv.Atoi(year)
	m, mErr := strconv.Atoi(month)
	if yErr != nil || mErr != nil || len(year) != 4 || len(month) != 2 || m < 1 || m > 12 || y < 1 {
		return fmt.Errorf("notebook: invalid month %q/%q: %w", year, month, apperr.ErrMalformedInput)
	}
	return nil
}

// sanitizeFilename strips path components and unsafe characters.
func sanitizeFilename(name string) string {
	name = path.Base(filepath.ToSlash(name))
	name = unsafeNameRe.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = uuid.New().String()
	}
	return name
}

// decodeDataURI parses a data:[<mediatype>];base64,<data> URI.
func decodeDataURI(uri string) ([]byte, string, error) {
	meta, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
	}
	if !strings.Contains(meta, ";base64") {
		return nil, "", fmt.Errorf("only base64 data URIs are supported")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	if len(data) > MaxAttachmentSize {
		return nil, "", fmt.Errorf("file too large: %d bytes", len(data))
	}
	mime := strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
	ext := mimeToExt[mime]
	if ext == "" {
		return nil, "", fmt.Errorf("unsupported MIME type in data URI: %s", mime)
	}
	return data, ext, nil
}

// fetchHTTP downloads url, refusing loopback and metadata hosts.
func fetchHTTP(ctx context.Context, rawURL string) ([]byte, string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, "", fmt.Errorf("unsupported scheme: %s (only http/https)", parsed.Scheme)
	}
	if err := checkBlockedHost(parsed.Hostname()); err != nil {
		return nil, "", err
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects (max 5)")
			}
			return checkBlockedHost(req.URL.Hostname())
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxAttachmentSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body failed: %w", err)
	}
	if len(data) > MaxAttachmentSize {
		return nil, "", fmt.Errorf("file too large: exceeds %d bytes", MaxAttachmentSize)
	}
	ext := mimeToExt[strings.Split(resp.Header.Get("Content-Type"), ";")[0]]
	return data, ext, nil
}

func checkBlockedHost(host string) error {
	if host == "metadata.google.internal" {
		return fmt.Errorf("blocked host: %s", host)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		ips, lookupErr := net.LookupIP(host)
		if lookupErr != nil || len(ips) == 0 {
			return nil //nolint:nilerr // let http.Client handle DNS failures
		}
		ip = ips[0]
	}
	if ip.IsLoopback() {
		return fmt.Errorf("blocked host: loopback address %s", host)
	}
	if ip.Equal(net.ParseIP("169.254.169.254")) {
		return fmt.Errorf("blocked host: cloud metadata address %s", host)
	}
	return nil
}

// filenameFromURL takes the last URL path segment, or a UUID with ext.
func filenameFromURL(rawURL, ext string) string {
	if ext == "" {
		ext = ".bin"
	}
	if strings.HasPrefix(rawURL, "data:") {
		return uuid.New().String() + ext
	}
	if parsed, err := url.Parse(rawURL); err == nil {
		base := path.Base(parsed.Path)
		if base != "." && base != "/" && strings.Contains(base, ".") {
			return base
		}
	}
	return uuid.New().String() + ext
}

// validateMagicBytes checks that content matches the extension.
func validateMagicBytes(data []byte, ext string) error {
	if ext == ".svg" {
		prefix := data[:min(len(data), 1024)]
		if !bytes.Contains(prefix, []byte("<svg")) {
			return fmt.Errorf("content does not appear to be a valid SVG")
		}
		return nil
	}
	detected := http.DetectContentType(data)
	got := mimeToExt[strings.Split(detected, ";")[0]]
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	if got == "" || got != ext {
		return fmt.Errorf("content does not match extension %s (detected: %s)", ext, detected)
	}
	return nil
}
