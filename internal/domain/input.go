package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// JobInput is the typed payload of a job. Exactly one variant exists per
// JobType; the persisted form is plain JSON and DecodeInput turns it back
// into the matching variant.
type JobInput interface {
	Type() JobType
	Validate() error
}

// TextInput carries raw text submitted directly by the user.
type TextInput struct {
	Text string `json:"text"`
}

// FileInput references an uploaded document in file storage.
type FileInput struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name,omitempty"`
	MimeType   string `json:"mime_type"`
}

// VideoInput references an uploaded video or audio file awaiting
// transcription.
type VideoInput struct {
	StorageKey string `json:"storage_key"`
	MimeType   string `json:"mime_type"`
	Language   string `json:"language,omitempty"`
}

// Platform names accepted by PlatformLinkInput.
const (
	PlatformYouTube = "youtube"
	PlatformWeb     = "web"
)

// PlatformLinkInput identifies content hosted on an external platform.
type PlatformLinkInput struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
	Language string `json:"language,omitempty"`
}

func (TextInput) Type() JobType         { return JobTypeText }
func (FileInput) Type() JobType         { return JobTypeFile }
func (VideoInput) Type() JobType        { return JobTypeVideo }
func (PlatformLinkInput) Type() JobType { return JobTypePlatformLink }

// Validate rejects blank text.
func (in TextInput) Validate() error {
	if strings.TrimSpace(in.Text) == "" {
		return ErrEmptyContent
	}
	return nil
}

func (in FileInput) Validate() error {
	if in.StorageKey == "" {
		return fmt.Errorf("%w: file storage key is required", ErrInvalidInput)
	}
	if in.MimeType == "" {
		return fmt.Errorf("%w: file mime type is required", ErrInvalidInput)
	}
	return validStorageKey(in.StorageKey)
}

func (in VideoInput) Validate() error {
	if in.StorageKey == "" {
		return fmt.Errorf("%w: video storage key is required", ErrInvalidInput)
	}
	return validStorageKey(in.StorageKey)
}

func (in PlatformLinkInput) Validate() error {
	switch in.Platform {
	case PlatformYouTube, PlatformWeb:
	default:
		return fmt.Errorf("%w: unsupported platform %q", ErrInvalidInput, in.Platform)
	}
	u, err := url.Parse(in.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: platform link must be an absolute http(s) URL", ErrInvalidInput)
	}
	return nil
}

// validStorageKey keeps storage keys relative to the storage root.
func validStorageKey(key string) error {
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: storage key must be a relative path", ErrInvalidInput)
	}
	return nil
}

// EncodeInput returns the persisted JSON form of in.
func EncodeInput(in JobInput) (json.RawMessage, error) {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return raw, nil
}

// DecodeInput decodes raw into the variant selected by jobType. Unknown
// fields are rejected so a payload written for one type cannot be read as
// another.
func DecodeInput(jobType JobType, raw json.RawMessage) (JobInput, error) {
	var in JobInput
	switch jobType {
	case JobTypeText:
		var v TextInput
		if err := decodeStrict(raw, &v); err != nil {
			return nil, err
		}
		in = v
	case JobTypeFile:
		var v FileInput
		if err := decodeStrict(raw, &v); err != nil {
			return nil, err
		}
		in = v
	case JobTypeVideo:
		var v VideoInput
		if err := decodeStrict(raw, &v); err != nil {
			return nil, err
		}
		in = v
	case JobTypePlatformLink:
		var v PlatformLinkInput
		if err := decodeStrict(raw, &v); err != nil {
			return nil, err
		}
		in = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobType, jobType)
	}

	if err := in.Validate(); err != nil {
		return nil, err
	}
	return in, nil
}

func decodeStrict(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
