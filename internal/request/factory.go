// Package request builds the outbound requests sent to VAT registries.
package request

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/JakeFAU/vies-crawler/internal/crawler"
)

// Factory turns paths and payloads into crawler requests against BaseURL.
// When Username is set every request carries HTTP Basic credentials.
type Factory struct {
	BaseURL   string
	Username  string
	Password  string
	UserAgent string
}

// URL joins BaseURL and path with exactly one slash.
func (f Factory) URL(path string) string {
	return strings.TrimRight(f.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// JSON builds a request accepting JSON. A non-nil body is encoded as the
// request payload with a JSON content type.
func (f Factory) JSON(method, path string, body any) (crawler.Request, error) {
	req := f.base(method, path)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return crawler.Request{}, fmt.Errorf("encode %s body: %w", path, err)
		}
		req.Body = data
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Get builds a bodiless JSON GET.
func (f Factory) Get(path string) crawler.Request {
	req, _ := f.JSON(http.MethodGet, path, nil) //nolint:errcheck // nil body cannot fail
	return req
}

// Multipart builds a POST uploading data as a single file part.
func (f Factory) Multipart(path, field, filename, contentType string, data []byte) (crawler.Request, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return crawler.Request{}, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return crawler.Request{}, fmt.Errorf("write multipart part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return crawler.Request{}, fmt.Errorf("close multipart writer: %w", err)
	}
	req := f.base(http.MethodPost, path)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Body = buf.Bytes()
	return req, nil
}

// SOAP builds a SOAP 1.1 POST carrying envelope.
func (f Factory) SOAP(path string, envelope []byte) crawler.Request {
	req := f.base(http.MethodPost, path)
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("Accept", "text/xml")
	req.Header.Set("SOAPAction", `""`)
	req.Body = envelope
	return req
}

func (f Factory) base(method, path string) crawler.Request {
	hdr := make(http.Header)
	if f.Username != "" {
		hdr.Set("Authorization", BasicAuth(f.Username, f.Password))
	}
	if f.UserAgent != "" {
		hdr.Set("User-Agent", f.UserAgent)
	}
	return crawler.Request{Method: method, URL: f.URL(path), Header: hdr}
}

// BasicAuth renders an Authorization header value for user and pass.
func BasicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}
