package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// FlagStatus is the single-character state of a tracker flag.
type FlagStatus string

const (
	FlagRequested FlagStatus = "?"
	FlagGranted   FlagStatus = "+"
	FlagDenied    FlagStatus = "-"
)

// Flag is a request/grant marker attached to a bug or an attachment.
type Flag struct {
	Name      string     `json:"name"`
	Status    FlagStatus `json:"status"`
	Requestee string     `json:"requestee,omitempty"`
}

// Comment is one entry of a bug's discussion thread. Count 0 is the
// description comment written at filing time.
type Comment struct {
	ID           int64     `json:"id"`
	Count        int       `json:"count"`
	Text         string    `json:"text"`
	Creator      string    `json:"creator"`
	CreationTime time.Time `json:"creation_time"`
}

// Attachment is a file attached to a bug, with its own flags.
type Attachment struct {
	ID           int64     `json:"id"`
	CreationTime time.Time `json:"creation_time"`
	ContentType  string    `json:"content_type,omitempty"`
	FileName     string    `json:"file_name,omitempty"`
	IsPatch      int       `json:"is_patch,omitempty"`
	Flags        []Flag    `json:"flags"`
}

// Change is one field's before/after delta inside a history entry.
// Added and Removed are the tracker's comma-joined string encodings,
// even for list-valued fields. AttachmentID, CommentID and CommentCount
// are set only for changes scoped to a sub-entity.
type Change struct {
	FieldName    string `json:"field_name"`
	Added        string `json:"added"`
	Removed      string `json:"removed"`
	AttachmentID int64  `json:"attachment_id,omitempty"`
	CommentID    int64  `json:"comment_id,omitempty"`
	CommentCount *int   `json:"comment_count,omitempty"`
}

// HistoryEntry is one timestamped batch of field changes. The tracker
// records history oldest-first and never rewrites it.
type HistoryEntry struct {
	When    time.Time `json:"when"`
	Who     string    `json:"who"`
	Changes []Change  `json:"changes"`
}

// BugRecord is the full structured record for one tracked bug. The
// tracker's wire shape is a flat object; fields the engine treats
// structurally (id, flags, comments, attachments, history) are typed,
// everything else lands in Fields as decoded JSON values.
type BugRecord struct {
	ID          int64
	Fields      map[string]any
	Flags       []Flag
	Comments    []Comment
	Attachments []Attachment
	History     []HistoryEntry
}

// structuralKeys are lifted out of the flat wire object into typed fields.
var structuralKeys = map[string]struct{}{
	"id":          {},
	"flags":       {},
	"comments":    {},
	"attachments": {},
	"history":     {},
}

// UnmarshalJSON decodes the tracker's flat record object.
func (b *BugRecord) UnmarshalJSON(data []byte) error {
	var typed struct {
		ID          int64          `json:"id"`
		Flags       []Flag         `json:"flags"`
		Comments    []Comment      `json:"comments"`
		Attachments []Attachment   `json:"attachments"`
		History     []HistoryEntry `json:"history"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := make(map[string]any, len(raw))
	for key, val := range raw {
		if _, ok := structuralKeys[key]; ok {
			continue
		}
		var decoded any
		if err := json.Unmarshal(val, &decoded); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		fields[key] = decoded
	}

	b.ID = typed.ID
	b.Fields = fields
	b.Flags = typed.Flags
	b.Comments = typed.Comments
	b.Attachments = typed.Attachments
	b.History = typed.History
	return nil
}

// MarshalJSON reassembles the flat wire object.
func (b *BugRecord) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(b.Fields)+len(structuralKeys))
	for key, val := range b.Fields {
		flat[key] = val
	}
	flat["id"] = b.ID
	flat["flags"] = emptyIfNilFlags(b.Flags)
	flat["comments"] = emptyIfNil(b.Comments)
	flat["attachments"] = emptyIfNil(b.Attachments)
	flat["history"] = emptyIfNil(b.History)
	return json.Marshal(flat)
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func emptyIfNilFlags(s []Flag) []Flag {
	return emptyIfNil(s)
}

// StringField returns the named field when present and string-valued.
func (b *BugRecord) StringField(name string) (string, bool) {
	val, ok := b.Fields[name]
	if !ok {
		return "", false
	}
	s, ok := val.(string)
	return s, ok
}

// Product returns the bug's current product name.
func (b *BugRecord) Product() string {
	product, _ := b.StringField("product")
	return product
}

// Creator returns the account that filed the bug.
func (b *BugRecord) Creator() string {
	creator, _ := b.StringField("creator")
	return creator
}

// CreationTime parses the bug's creation timestamp.
func (b *BugRecord) CreationTime() (time.Time, error) {
	raw, ok := b.StringField("creation_time")
	if !ok {
		return time.Time{}, fmt.Errorf("bug %d: missing creation_time", b.ID)
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("bug %d: bad creation_time %q: %w", b.ID, raw, err)
	}
	return ts, nil
}

// Clone deep-copies the record so a rollback can mutate the copy while
// the caller keeps the original.
func (b *BugRecord) Clone() *BugRecord {
	clone := &BugRecord{
		ID:     b.ID,
		Fields: make(map[string]any, len(b.Fields)),
	}
	for key, val := range b.Fields {
		clone.Fields[key] = cloneValue(val)
	}
	clone.Flags = append([]Flag(nil), b.Flags...)
	clone.Comments = append([]Comment(nil), b.Comments...)
	if b.Attachments != nil {
		clone.Attachments = make([]Attachment, len(b.Attachments))
		for i, att := range b.Attachments {
			att.Flags = append([]Flag(nil), att.Flags...)
			clone.Attachments[i] = att
		}
	}
	if b.History != nil {
		clone.History = make([]HistoryEntry, len(b.History))
		for i, entry := range b.History {
			entry.Changes = append([]Change(nil), entry.Changes...)
			clone.History[i] = entry
		}
	}
	return clone
}

func cloneValue(val any) any {
	switch typed := val.(type) {
	case []any:
		copied := make([]any, len(typed))
		for i, item := range typed {
			copied[i] = cloneValue(item)
		}
		return copied
	case map[string]any:
		copied := make(map[string]any, len(typed))
		for key, item := range typed {
			copied[key] = cloneValue(item)
		}
		return copied
	default:
		return typed
	}
}
