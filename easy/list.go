package easy

import "github.com/adamwoolhether/xfer/native"

// List owns a native string list, such as the one set on
// native.OptHTTPHeader. The list must outlive every handle it is set on.
type List struct {
	head *native.SList
}

// NewList returns a list holding values.
func NewList(values ...string) *List {
	l := &List{}
	l.Append(values...)
	return l
}

// AdoptList takes ownership of an existing native list.
func AdoptList(head *native.SList) *List {
	return &List{head: head}
}

// Append adds values to the end of the list.
func (l *List) Append(values ...string) {
	for _, v := range values {
		l.head = native.SlistAppend(l.head, v)
	}
}

// Get returns the head of the list, nil when empty.
func (l *List) Get() *native.SList {
	if l == nil {
		return nil
	}
	return l.head
}

// Strings returns the list's values.
func (l *List) Strings() []string { return l.Get().Strings() }

// Release gives up ownership; the caller must free the returned list.
func (l *List) Release() *native.SList {
	head := l.head
	l.head = nil
	return head
}

// Move transfers the list to a new owner, leaving l empty.
func (l *List) Move() *List {
	return &List{head: l.Release()}
}

// MoveFrom frees l's list and takes over src's.
func (l *List) MoveFrom(src *List) {
	if src == l {
		return
	}
	_ = l.Close()
	l.head = src.Release()
}

// Close frees the list. Closing an empty list does nothing.
func (l *List) Close() error {
	if l.head != nil {
		native.SlistFreeAll(l.head)
		l.head = nil
	}
	return nil
}
