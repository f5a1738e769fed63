package easy

import (
	"fmt"
	"io"

	"github.com/adamwoolhether/xfer/native"
)

// Form owns a multipart form chain for native.OptHTTPPost. The form must
// outlive every handle it is set on.
type Form struct {
	first, last *native.HTTPPost
}

// NewForm builds a form whose first section is described by fields, added
// in a single FormAdd call. Without fields the form starts empty.
func NewForm(fields ...native.Forms) (*Form, error) {
	f := &Form{}
	if len(fields) == 0 {
		return f, nil
	}
	if err := f.Add(fields...); err != nil {
		return nil, err
	}
	return f, nil
}

// Add appends one section described by fields.
func (f *Form) Add(fields ...native.Forms) error {
	array := make([]native.Forms, 0, len(fields)+1)
	array = append(array, fields...)
	array = append(array, native.Forms{Option: native.FormEnd})

	code := native.FormAdd(&f.first, &f.last,
		native.Forms{Option: native.FormArray, Value: array},
		native.Forms{Option: native.FormEnd},
	)
	if code != native.FormAddOK {
		return fmt.Errorf("adding form section: %w", code)
	}
	return nil
}

// Field describes a plain name=value section.
func Field(name, value string) []native.Forms {
	return []native.Forms{
		{Option: native.FormCopyName, Value: name},
		{Option: native.FormCopyContents, Value: value},
	}
}

// File describes a section uploading the file at path.
func File(name, path string) []native.Forms {
	return []native.Forms{
		{Option: native.FormCopyName, Value: name},
		{Option: native.FormFile, Value: path},
	}
}

// Get returns the first section, nil when empty.
func (f *Form) Get() *native.HTTPPost {
	if f == nil {
		return nil
	}
	return f.first
}

// Release gives up ownership of the chain; the caller must free first.
func (f *Form) Release() (first, last *native.HTTPPost) {
	first, last = f.first, f.last
	f.first, f.last = nil, nil
	return first, last
}

// Move transfers the chain to a new owner, leaving f empty.
func (f *Form) Move() *Form {
	first, last := f.Release()
	return &Form{first: first, last: last}
}

// MoveFrom frees f's chain and takes over src's.
func (f *Form) MoveFrom(src *Form) {
	if src == f {
		return
	}
	_ = f.Close()
	f.first, f.last = src.Release()
}

// Close frees the chain. Closing an empty form does nothing.
func (f *Form) Close() error {
	if f.first != nil {
		native.FormFree(f.first)
		f.first, f.last = nil, nil
	}
	return nil
}

// WriteTo serializes the form as multipart/form-data.
func (f *Form) WriteTo(w io.Writer) (int64, error) {
	var n int64
	var werr error
	rc := native.FormGet(f.first, w, func(arg any, buf []byte) int {
		m, err := arg.(io.Writer).Write(buf)
		n += int64(m)
		if err != nil {
			werr = err
		}
		return m
	})

	switch {
	case werr != nil:
		return n, fmt.Errorf("writing form: %w", werr)
	case rc != 0:
		return n, fmt.Errorf("serializing form: %w", native.SendError)
	}
	return n, nil
}
