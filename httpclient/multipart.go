package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// FileUpload is one file part of a MultipartForm.
type FileUpload struct {
	// FieldName is the form field name, e.g. "file" or "avatar".
	FieldName string

	// FileName is the filename sent in the part header.
	FileName string

	// Path is the file on disk to read. It is opened when the form is
	// encoded, immediately before sending. Ignored when Reader is set.
	Path string

	// Reader provides in-memory content. It is consumed by the first send.
	Reader io.Reader
}

type formField struct {
	name  string
	value string
}

// MultipartForm is a multipart/form-data payload. A request whose body is a
// *MultipartForm sends it as-is: no JSON encoding is applied.
//
// The form is buffered on send so the total size is known and upload
// progress can report percentages.
//
// Example:
//
//	form := httpclient.NewMultipartForm().
//	    Field("name", "Jean Dupont").
//	    Field("email", "jean.dupont@example.com").
//	    File("file", "/tmp/report.pdf")
//
//	call, err := client.Request().
//	    Body(form).
//	    Progress(httpclient.ProgressFunc(func(p httpclient.Progress) {
//	        fmt.Println(p)
//	    })).
//	    Post(ctx, "/api/data")
type MultipartForm struct {
	fields []formField
	files  []FileUpload
}

// NewMultipartForm returns an empty form.
func NewMultipartForm() *MultipartForm {
	return &MultipartForm{}
}

// Field appends a plain form field. Fields are written in insertion order.
func (f *MultipartForm) Field(name, value string) *MultipartForm {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// File appends a file part read from path when the form is sent.
func (f *MultipartForm) File(fieldName, path string) *MultipartForm {
	f.files = append(f.files, FileUpload{
		FieldName: fieldName,
		FileName:  filepath.Base(path),
		Path:      path,
	})
	return f
}

// FileReader appends a file part read from r.
func (f *MultipartForm) FileReader(fieldName, fileName string, r io.Reader) *MultipartForm {
	f.files = append(f.files, FileUpload{
		FieldName: fieldName,
		FileName:  fileName,
		Reader:    r,
	})
	return f
}

// Len returns the number of fields and files in the form.
func (f *MultipartForm) Len() int {
	return len(f.fields) + len(f.files)
}

// encode writes the form into a buffer and returns it with its content type.
func (f *MultipartForm) encode() (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, field := range f.fields {
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, "", err
		}
	}

	for _, file := range f.files {
		if err := writeFilePart(writer, file); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

func writeFilePart(writer *multipart.Writer, file FileUpload) error {
	reader := file.Reader
	if reader == nil {
		if file.Path == "" {
			return fmt.Errorf("file part %q has neither a path nor a reader", file.FieldName)
		}
		fh, err := os.Open(file.Path)
		if err != nil {
			return err
		}
		defer fh.Close()
		reader = fh
	}

	part, err := writer.CreateFormFile(file.FieldName, file.FileName)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, reader)
	return err
}
