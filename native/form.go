package native

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// FormOption tags one entry of a FormAdd call.
type FormOption int

const (
	FormNothing       FormOption = 0
	FormCopyName      FormOption = 1
	FormPtrName       FormOption = 2
	FormCopyContents  FormOption = 4
	FormPtrContents   FormOption = 5
	FormFileContent   FormOption = 7
	FormArray         FormOption = 8
	FormFile          FormOption = 10
	FormBuffer        FormOption = 11
	FormBufferPtr     FormOption = 12
	FormContentType   FormOption = 14
	FormContentHeader FormOption = 15
	FormFilename      FormOption = 16
	FormEnd           FormOption = 17
)

// Forms is one option/value pair. FormArray takes a []Forms value.
type Forms struct {
	Option FormOption
	Value  any
}

// HTTPPost is one section of a multipart form. Sections form a doubly
// linked chain.
type HTTPPost struct {
	Name        string
	Contents    []byte
	FileContent string
	Files       []string
	Filename    string
	Buffer      string
	BufferData  []byte
	ContentType string
	Headers     *SList

	Next *HTTPPost
	Prev *HTTPPost

	freed bool
}

// FormAdd parses one section from forms and links it after *last. A nil
// *first starts a new chain.
func FormAdd(first, last **HTTPPost, forms ...Forms) FormCode {
	if first == nil || last == nil {
		return FormAddNull
	}

	post := &HTTPPost{}
	var (
		named, contents, ctype, fname, buffer bool
	)

	entries, code := flattenForms(forms)
	if code != FormAddOK {
		return code
	}

	for _, f := range entries {
		switch f.Option {
		case FormCopyName, FormPtrName:
			s, ok := f.Value.(string)
			if !ok {
				return FormAddNull
			}
			if named {
				return FormAddOptionTwice
			}
			named = true
			post.Name = s

		case FormCopyContents, FormPtrContents:
			b, ok := formBytes(f.Value)
			if !ok {
				return FormAddNull
			}
			if contents {
				return FormAddOptionTwice
			}
			contents = true
			post.Contents = b

		case FormFileContent:
			s, ok := f.Value.(string)
			if !ok || s == "" {
				return FormAddNull
			}
			if contents {
				return FormAddOptionTwice
			}
			contents = true
			post.FileContent = s

		case FormFile:
			s, ok := f.Value.(string)
			if !ok || s == "" {
				return FormAddNull
			}
			if contents && len(post.Files) == 0 {
				return FormAddOptionTwice
			}
			contents = true
			post.Files = append(post.Files, s)

		case FormBuffer:
			s, ok := f.Value.(string)
			if !ok {
				return FormAddNull
			}
			if buffer {
				return FormAddOptionTwice
			}
			buffer = true
			post.Buffer = s

		case FormBufferPtr:
			b, ok := formBytes(f.Value)
			if !ok {
				return FormAddNull
			}
			if contents {
				return FormAddOptionTwice
			}
			contents = true
			post.BufferData = b

		case FormContentType:
			s, ok := f.Value.(string)
			if !ok {
				return FormAddNull
			}
			if ctype {
				return FormAddOptionTwice
			}
			ctype = true
			post.ContentType = s

		case FormContentHeader:
			l, ok := f.Value.(*SList)
			if !ok {
				return FormAddNull
			}
			post.Headers = l

		case FormFilename:
			s, ok := f.Value.(string)
			if !ok {
				return FormAddNull
			}
			if fname {
				return FormAddOptionTwice
			}
			fname = true
			post.Filename = s

		default:
			return FormAddUnknownOption
		}
	}

	if !named || !contents {
		return FormAddIncomplete
	}
	if buffer != (post.BufferData != nil) {
		return FormAddIncomplete
	}

	if *first == nil {
		*first = post
	} else {
		tail := *last
		if tail == nil {
			tail = *first
			for tail.Next != nil {
				tail = tail.Next
			}
		}
		tail.Next = post
		post.Prev = tail
	}
	*last = post

	return FormAddOK
}

// flattenForms expands a single level of FormArray and stops at FormEnd.
func flattenForms(forms []Forms) ([]Forms, FormCode) {
	var out []Forms
	for _, f := range forms {
		if f.Option == FormEnd {
			break
		}
		if f.Option != FormArray {
			out = append(out, f)
			continue
		}

		arr, ok := f.Value.([]Forms)
		if !ok {
			return nil, FormAddNull
		}
		for _, a := range arr {
			if a.Option == FormEnd {
				break
			}
			if a.Option == FormArray {
				return nil, FormAddIllegalArray
			}
			out = append(out, a)
		}
	}

	return out, FormAddOK
}

func formBytes(v any) ([]byte, bool) {
	switch t := v.(type) {
	case string:
		return []byte(t), true
	case []byte:
		if t == nil {
			return nil, false
		}
		return t, true
	}
	return nil, false
}

// FormFree releases every section of the chain starting at form. Freeing a
// chain twice panics.
func FormFree(form *HTTPPost) {
	for p := form; p != nil; {
		if p.freed {
			panic("native: double free of form section " + p.Name)
		}
		p.freed = true
		next := p.Next
		p.Next, p.Prev = nil, nil
		p = next
	}
}

// FormGet serializes form as multipart/form-data and hands the bytes to fn.
// It returns 0 on success and non-zero if fn did not accept every byte or a
// section could not be read.
func FormGet(form *HTTPPost, arg any, fn FormGetFunc) int {
	if fn == nil {
		return 1
	}

	var buf bytes.Buffer
	if _, err := writeForm(form, &buf, formBoundary); err != nil {
		return 1
	}

	data := buf.Bytes()
	for len(data) > 0 {
		n := min(len(data), 16<<10)
		if fn(arg, data[:n]) != n {
			return 1
		}
		data = data[n:]
	}

	return 0
}

const formBoundary = "------------------------xferformboundary7MA4YWxkTrZu0gW"

// writeForm writes the multipart encoding of form to w and returns the
// request Content-Type.
func writeForm(form *HTTPPost, w io.Writer, boundary string) (string, error) {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		return "", err
	}

	for p := form; p != nil; p = p.Next {
		if err := writeSection(mw, p); err != nil {
			return "", fmt.Errorf("form section %q: %w", p.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return "", err
	}

	return mw.FormDataContentType(), nil
}

func writeSection(mw *multipart.Writer, p *HTTPPost) error {
	switch {
	case len(p.Files) > 0:
		for _, path := range p.Files {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			name := p.Filename
			if name == "" {
				name = filepath.Base(path)
			}
			ctype := p.ContentType
			if ctype == "" {
				ctype = mimetype.Detect(data).String()
			}
			if err := writePart(mw, p, name, ctype, data); err != nil {
				return err
			}
		}
		return nil

	case p.BufferData != nil:
		ctype := p.ContentType
		if ctype == "" {
			ctype = mimetype.Detect(p.BufferData).String()
		}
		return writePart(mw, p, p.Buffer, ctype, p.BufferData)

	case p.FileContent != "":
		data, err := os.ReadFile(p.FileContent)
		if err != nil {
			return err
		}
		return writePart(mw, p, p.Filename, p.ContentType, data)
	}

	return writePart(mw, p, p.Filename, p.ContentType, p.Contents)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writePart(mw *multipart.Writer, p *HTTPPost, filename, ctype string, data []byte) error {
	disp := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(p.Name))
	if filename != "" {
		disp += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(filename))
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", disp)
	if ctype != "" {
		h.Set("Content-Type", ctype)
	}
	for _, line := range p.Headers.Strings() {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		h.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	_, err = part.Write(data)
	return err
}
