package httputil

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
)

// maxFieldBytes caps a single non-file multipart field.
const maxFieldBytes = 64 << 10

// SpooledFile is a multipart file part written to a local temp file.
type SpooledFile struct {
	Name        string
	Path        string
	Size        int64
	ContentType string
}

// Form is a multipart body whose files were spooled to disk. Close removes
// the temp files.
type Form struct {
	Values map[string][]string
	Files  map[string]*SpooledFile
}

// Value returns the first value of a field, or "".
func (f *Form) Value(name string) string {
	if vs := f.Values[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Has reports whether the field was sent at all.
func (f *Form) Has(name string) bool {
	_, ok := f.Values[name]
	return ok
}

func (f *Form) Close() {
	for _, sf := range f.Files {
		os.Remove(sf.Path)
	}
}

// ErrNotMultipart is returned by SpoolMultipart for other content types.
var ErrNotMultipart = errors.New("expected multipart/form-data")

// IsMultipart reports whether r carries a multipart/form-data body.
func IsMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// SpoolMultipart streams a multipart body, writing file parts into dir (the
// OS temp dir when empty). Empty file parts are skipped. The caller must
// Close the form.
func SpoolMultipart(w http.ResponseWriter, r *http.Request, limit int64, dir string) (*Form, error) {
	if !IsMultipart(r) {
		return nil, ErrNotMultipart
	}
	MaxBody(w, r, limit)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	form := &Form{Values: map[string][]string{}, Files: map[string]*SpooledFile{}}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return form, nil
		}
		if err != nil {
			form.Close()
			return nil, err
		}
		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}
		if part.FileName() == "" {
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			part.Close()
			if err != nil {
				form.Close()
				return nil, err
			}
			if len(b) > maxFieldBytes {
				form.Close()
				return nil, fmt.Errorf("field %s too large", name)
			}
			form.Values[name] = append(form.Values[name], string(b))
			continue
		}

		sf, err := spoolPart(part, dir)
		part.Close()
		if err != nil {
			form.Close()
			return nil, err
		}
		if sf == nil {
			continue
		}
		if old, ok := form.Files[name]; ok {
			os.Remove(old.Path)
		}
		form.Files[name] = sf
	}
}

func spoolPart(part *multipart.Part, dir string) (*SpooledFile, error) {
	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, part)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil || n == 0 {
		os.Remove(tmp.Name())
		return nil, err
	}
	return &SpooledFile{
		Name:        part.FileName(),
		Path:        tmp.Name(),
		Size:        n,
		ContentType: part.Header.Get("Content-Type"),
	}, nil
}
