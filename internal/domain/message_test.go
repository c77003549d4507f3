package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		wantErr bool
	}{
		{"text ok", Draft{SenderID: "a1", RecipientID: "b1", Body: "hello"}, false},
		{"image with attachment", Draft{SenderID: "a1", RecipientID: "b1", Body: "pic", Type: TypeImage, Attachment: "u/1.png"}, false},
		{"empty body", Draft{SenderID: "a1", RecipientID: "b1", Body: ""}, true},
		{"whitespace body", Draft{SenderID: "a1", RecipientID: "b1", Body: "   "}, true},
		{"oversized body", Draft{SenderID: "a1", RecipientID: "b1", Body: strings.Repeat("x", MaxBodyLen+1)}, true},
		{"sender equals recipient", Draft{SenderID: "a1", RecipientID: "a1", Body: "hi"}, true},
		{"unknown type", Draft{SenderID: "a1", RecipientID: "b1", Body: "hi", Type: "sticker"}, true},
		{"image without attachment", Draft{SenderID: "a1", RecipientID: "b1", Body: "pic", Type: TypeImage}, true},
		{"text with attachment", Draft{SenderID: "a1", RecipientID: "b1", Body: "hi", Attachment: "u/1.png"}, true},
		{"missing sender", Draft{RecipientID: "b1", Body: "hi"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDraftValidateBoundaryLength(t *testing.T) {
	d := Draft{SenderID: "a1", RecipientID: "b1", Body: strings.Repeat("x", MaxBodyLen)}
	require.NoError(t, d.Validate())
}

func TestDraftValidateDefaultsToText(t *testing.T) {
	d := Draft{SenderID: "a1", RecipientID: "b1", Body: "hi"}
	require.NoError(t, d.Validate())
	assert.Equal(t, TypeText, d.Type)
}

func TestOtherParticipant(t *testing.T) {
	m := Message{SenderID: "a1", RecipientID: "b1"}
	assert.Equal(t, "b1", m.OtherParticipant("a1"))
	assert.Equal(t, "a1", m.OtherParticipant("b1"))
}
