package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		jobType JobType
		raw     string
		want    JobInput
		wantErr error
	}{
		{
			name:    "text",
			jobType: JobTypeText,
			raw:     `{"text":"hello world"}`,
			want:    TextInput{Text: "hello world"},
		},
		{
			name:    "blank text",
			jobType: JobTypeText,
			raw:     `{"text":"  \n\t "}`,
			wantErr: ErrEmptyContent,
		},
		{
			name:    "file",
			jobType: JobTypeFile,
			raw:     `{"storage_key":"u1/doc.md","mime_type":"text/markdown","file_name":"doc.md"}`,
			want:    FileInput{StorageKey: "u1/doc.md", MimeType: "text/markdown", FileName: "doc.md"},
		},
		{
			name:    "file escaping storage root",
			jobType: JobTypeFile,
			raw:     `{"storage_key":"../etc/passwd","mime_type":"text/plain"}`,
			wantErr: ErrInvalidInput,
		},
		{
			name:    "video",
			jobType: JobTypeVideo,
			raw:     `{"storage_key":"u1/lecture.mp4","mime_type":"video/mp4"}`,
			want:    VideoInput{StorageKey: "u1/lecture.mp4", MimeType: "video/mp4"},
		},
		{
			name:    "platform link",
			jobType: JobTypePlatformLink,
			raw:     `{"platform":"youtube","url":"https://www.youtube.com/watch?v=abc"}`,
			want:    PlatformLinkInput{Platform: PlatformYouTube, URL: "https://www.youtube.com/watch?v=abc"},
		},
		{
			name:    "platform link with relative url",
			jobType: JobTypePlatformLink,
			raw:     `{"platform":"web","url":"/notes"}`,
			wantErr: ErrInvalidInput,
		},
		{
			name:    "payload of another type",
			jobType: JobTypeText,
			raw:     `{"storage_key":"u1/doc.md","mime_type":"text/plain"}`,
			wantErr: ErrInvalidInput,
		},
		{
			name:    "empty payload",
			jobType: JobTypeVideo,
			raw:     ``,
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown type",
			jobType: JobType("audio"),
			raw:     `{}`,
			wantErr: ErrInvalidJobType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeInput(tt.jobType, json.RawMessage(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.jobType, got.Type())
		})
	}
}

func TestEncodeDecodeRoundTripKeepsVariant(t *testing.T) {
	t.Parallel()

	in := PlatformLinkInput{Platform: PlatformWeb, URL: "https://example.com/article", Language: "en"}
	raw, err := EncodeInput(in)
	require.NoError(t, err)

	out, err := DecodeInput(in.Type(), raw)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
