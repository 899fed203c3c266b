package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"

	goerrors "github.com/goliatone/go-errors"
)

// File is one file part of a multipart request.
type File struct {
	Field       string
	Name        string
	ContentType string
	Content     io.Reader
}

// SendMultipart posts form fields and files, as the profile form does when
// an avatar is attached.
func SendMultipart[T any](ctx context.Context, c *Client, method, path string, fields map[string]string, files []File) (Envelope[T], error) {
	var env Envelope[T]

	body, contentType, err := encodeMultipart(fields, files)
	if err != nil {
		return env, goerrors.Wrap(err, goerrors.CategoryBadInput, "encode multipart body")
	}

	err = c.Do(ctx, method, path, nil, body, contentType, &env)
	return env, err
}

func encodeMultipart(fields map[string]string, files []File) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, fields[name]); err != nil {
			return nil, "", err
		}
	}

	for _, f := range files {
		if f.Content == nil {
			continue
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Name))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
