package native

// SList is a singly linked list of strings, used for header lists and
// other multi valued options.
type SList struct {
	Data string
	Next *SList

	freed bool
}

// SlistAppend appends s to list and returns the head of the resulting list,
// which is a new node when list is nil.
func SlistAppend(list *SList, s string) *SList {
	node := &SList{Data: s}
	if list == nil {
		return node
	}

	last := list
	for last.Next != nil {
		last = last.Next
	}
	last.Next = node

	return list
}

// SlistFreeAll releases every node of list. Freeing a list twice panics.
func SlistFreeAll(list *SList) {
	for n := list; n != nil; {
		if n.freed {
			panic("native: double free of slist node " + n.Data)
		}
		n.freed = true
		next := n.Next
		n.Next = nil
		n = next
	}
}

// Strings flattens list into a slice.
func (l *SList) Strings() []string {
	var out []string
	for n := l; n != nil; n = n.Next {
		out = append(out, n.Data)
	}
	return out
}

func slistFrom(values []string) *SList {
	var head *SList
	for _, v := range values {
		head = SlistAppend(head, v)
	}
	return head
}
