package store

import (
	"errors"
)

// Category names the operation a Failure was recorded for.
type Category string

const (
	CategoryLoadList    Category = "load_list"
	CategoryLoad        Category = "load"
	CategoryNotFound    Category = "not_found"
	CategoryCreate      Category = "create"
	CategoryUpdate      Category = "update"
	CategoryDelete      Category = "delete"
	CategoryRunAnalysis Category = "run_analysis"
	CategoryUpload      Category = "upload"
	CategoryDownload    Category = "download"
	CategoryCollect     Category = "collect"
)

// Failure is the translated form of a failed operation. Message is the
// short text shown to users; Err is the original cause.
type Failure struct {
	Op      Category
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}

	return f.Message + ": " + f.Err.Error()
}

// Unwrap returns the original cause.
func (f *Failure) Unwrap() error { return f.Err }

// AsFailure returns the *Failure in err's chain, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}

	return nil, false
}

// Names holds the nouns used in failure messages.
type Names struct {
	Singular string
	Plural   string
}

// message returns the user-facing text for a failure of category c.
func (n Names) message(c Category) string {
	switch c {
	case CategoryLoadList:
		return "failed to load " + n.Plural
	case CategoryLoad:
		return "failed to load " + n.Singular
	case CategoryNotFound:
		return n.Singular + " not found"
	case CategoryCreate:
		return "failed to create " + n.Singular
	case CategoryUpdate:
		return "failed to update " + n.Singular
	case CategoryDelete:
		return "failed to delete " + n.Singular
	case CategoryRunAnalysis:
		return "failed to run analysis"
	case CategoryUpload:
		return "failed to upload " + n.Singular
	case CategoryDownload:
		return "failed to download " + n.Plural
	case CategoryCollect:
		return "failed to collect " + n.Plural
	default:
		return "operation failed"
	}
}
