package handler

import "strings"

// issueForm holds the validated parts of a certificate upload.
type issueForm struct {
	ExpectedName string `validate:"required,notblank,max=200"`
	Filename     string `validate:"max=255"`
	ContentType  string `validate:"required,certtype"`
	Size         int64  `validate:"min=1"`
}

// Normalize trims user-supplied text.
func (f *issueForm) Normalize() {
	f.ExpectedName = strings.TrimSpace(f.ExpectedName)
	f.Filename = strings.TrimSpace(f.Filename)
}
