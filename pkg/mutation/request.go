// Package mutation coordinates create, update and delete submissions:
// validation before dispatch, wire encoding, narrow cache invalidation and
// error classification.
package mutation

import (
	"github.com/nimburion/providerdesk/pkg/dataservice"
	"github.com/nimburion/providerdesk/pkg/query"
)

// Operation names a mutation kind.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// AttachmentChange says what an update does to a stored file.
type AttachmentChange int

const (
	// AttachmentKeep leaves the stored file alone; nothing is sent.
	AttachmentKeep AttachmentChange = iota
	// AttachmentReplace uploads File in place of the stored one.
	AttachmentReplace
	// AttachmentRemove clears the stored file.
	AttachmentRemove
)

func (c AttachmentChange) String() string {
	switch c {
	case AttachmentReplace:
		return "replace"
	case AttachmentRemove:
		return "remove"
	default:
		return "keep"
	}
}

// File is an uploaded attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Attachment binds a file change to a form field such as "thumbnail".
type Attachment struct {
	Field  string
	Change AttachmentChange
	File   File
}

// Replace returns an attachment that uploads f into field.
func Replace(field string, f File) Attachment {
	return Attachment{Field: field, Change: AttachmentReplace, File: f}
}

// Remove returns an attachment that clears field.
func Remove(field string) Attachment {
	return Attachment{Field: field, Change: AttachmentRemove}
}

// Route is where a request is sent and which cache keys it touches.
type Route struct {
	Resource   dataservice.Resource
	Collection query.Key
	// Parent is invalidated alongside Collection when set.
	Parent query.Key
}

// Keys returns the cache keys a successful mutation on r invalidates.
func (r Route) Keys() []query.Key {
	keys := []query.Key{r.Collection}
	if r.Parent != "" && r.Parent != r.Collection {
		keys = append(keys, r.Parent)
	}
	return keys
}

// Request is one submission. It is built when the user submits and is not
// retained once the coordinator returns.
type Request struct {
	// Entity is the human label used in notifications, e.g. "Room".
	Entity string
	Route  Route
	Fields map[string]any

	Attachments []Attachment
	// Confirmed must be set for deletes.
	Confirmed bool

	operation Operation
	targetID  string
}

// Operation reports the operation the coordinator dispatched the request as.
func (r Request) Operation() Operation { return r.operation }

// TargetID reports the record id of an update or delete.
func (r Request) TargetID() string { return r.targetID }

func (r Request) hasUploads() bool {
	for _, a := range r.Attachments {
		if a.Change == AttachmentReplace {
			return true
		}
	}
	return false
}
