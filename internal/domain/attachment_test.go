package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLinksTrimsAndDropsEmpty(t *testing.T) {
	got := ParseLinks("a.com, ,b.com,")

	require.Len(t, got, 2)
	assert.Equal(t, Attachment{Kind: AttachmentLink, URL: "a.com"}, got[0])
	assert.Equal(t, Attachment{Kind: AttachmentLink, URL: "b.com"}, got[1])
}

func TestParseLinksEmptyInput(t *testing.T) {
	assert.Nil(t, ParseLinks(""))
	assert.Nil(t, ParseLinks(" , ,"))
}

func TestBuildAttachmentsOrdersLinksBeforeFiles(t *testing.T) {
	uploads := []Upload{
		{Filename: "brief.pdf", MimeType: "application/pdf", Payload: []byte("%PDF")},
		{Filename: "  ", MimeType: "image/png", Payload: []byte{1}},
		{Filename: "logo.png", MimeType: "image/png", Payload: []byte{2}},
	}

	got := BuildAttachments("https://x.test", uploads)

	require.Len(t, got, 3)
	assert.Equal(t, AttachmentLink, got[0].Kind)
	assert.Equal(t, "https://x.test", got[0].URL)
	assert.Equal(t, "brief.pdf", got[1].Filename)
	assert.Equal(t, "application/pdf", got[1].MimeType)
	assert.Equal(t, []byte("%PDF"), got[1].Payload)
	assert.Equal(t, "logo.png", got[2].Filename)
	for _, a := range got {
		assert.Nil(t, a.AddedAt)
	}
}

func TestBuildAttachmentsNothingIsNil(t *testing.T) {
	assert.Nil(t, BuildAttachments("", nil))
	assert.Nil(t, BuildAttachments(",", []Upload{{Filename: ""}}))
}

func TestNewFileAttachmentRequiresFilename(t *testing.T) {
	_, err := NewFileAttachment("", "image/png", []byte{1})
	assert.ErrorIs(t, err, ErrValidation)

	a, err := NewFileAttachment("empty.txt", "text/plain", nil)
	require.NoError(t, err)
	assert.NotNil(t, a.Payload)
}

func TestNewLinkAttachmentRequiresURL(t *testing.T) {
	_, err := NewLinkAttachment("   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStampAddedUsesOneInstant(t *testing.T) {
	items := ParseLinks("a,b")
	at := time.Date(2025, 10, 3, 12, 0, 0, 0, time.UTC)

	StampAdded(items, at)

	require.NotNil(t, items[0].AddedAt)
	require.NotNil(t, items[1].AddedAt)
	assert.True(t, items[0].AddedAt.Equal(at))
	assert.True(t, items[1].AddedAt.Equal(at))
	assert.NotSame(t, items[0].AddedAt, items[1].AddedAt)
}

func TestAttachmentUnmarshalRejectsInvalidVariant(t *testing.T) {
	var a Attachment
	assert.Error(t, json.Unmarshal([]byte(`{"type":"video","url":"x"}`), &a))
	assert.Error(t, json.Unmarshal([]byte(`{"type":"file","mime_type":"image/png"}`), &a))

	require.NoError(t, json.Unmarshal([]byte(`{"type":"file","filename":"a.png","mime_type":"image/png","file_data":"AQI="}`), &a))
	assert.Equal(t, []byte{1, 2}, a.Payload)
	assert.True(t, a.IsImage())
}

func TestAttachmentLabel(t *testing.T) {
	assert.Equal(t, "Link: https://x.test", Attachment{Kind: AttachmentLink, URL: "https://x.test"}.Label())
	assert.Equal(t, "Arquivo: arte.png", Attachment{Kind: AttachmentFile, Filename: "arte.png"}.Label())
}

func TestCloneAttachmentsCopiesPayload(t *testing.T) {
	orig := []Attachment{{Kind: AttachmentFile, Filename: "a", Payload: []byte{1}}}

	clone := CloneAttachments(orig)
	clone[0].Payload[0] = 9

	assert.Equal(t, byte(1), orig[0].Payload[0])
	assert.Nil(t, CloneAttachments([]Attachment{}))
}
