package models

// ClipboardMode distinguishes cut from copy.
type ClipboardMode string

const (
	ClipboardCut  ClipboardMode = "cut"
	ClipboardCopy ClipboardMode = "copy"
)

// Clipboard holds ids captured by a cut or copy together with the folder
// they were captured in.
type Clipboard struct {
	IDs            []string
	Mode           ClipboardMode
	SourceFolderID string
}

// IsEmpty reports whether there is nothing to paste.
func (c Clipboard) IsEmpty() bool {
	return len(c.IDs) == 0
}

// Clone returns a copy that does not share the id slice.
func (c Clipboard) Clone() Clipboard {
	out := c
	out.IDs = append([]string(nil), c.IDs...)
	return out
}
