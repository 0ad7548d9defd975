package worker

import (
	"bytes"
	"io"
	"log"
	"testing"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
)

func testReplyWorker() *ReplyWorker {
	return NewReplyWorker(nil, log.New(io.Discard, "", 0), 0)
}

func TestSenderAddressesPrefersEnvelope(t *testing.T) {
	msg := &imap.Message{
		Envelope: &imap.Envelope{
			From: []*imap.Address{{MailboxName: "ahmed", HostName: "example.ae"}},
		},
	}

	got := testReplyWorker().senderAddresses(msg)
	assert.Equal(t, []string{"ahmed@example.ae"}, got)
}

func TestSenderAddressesFallsBackToHeaders(t *testing.T) {
	raw := "From: Ahmed <ahmed@example.ae>\r\n" +
		"To: collections@alnoor.ae\r\n" +
		"Subject: Re: Reminder: invoice INV-1\r\n" +
		"\r\n" +
		"Payment was sent yesterday.\r\n"

	// The fetch keyed the body with its own *BodySectionName; lookup must
	// match by section value, not pointer identity.
	section := &imap.BodySectionName{}
	msg := &imap.Message{
		SeqNum: 1,
		Body: map[*imap.BodySectionName]imap.Literal{
			section: bytes.NewBufferString(raw),
		},
	}

	got := testReplyWorker().senderAddresses(msg)
	assert.Equal(t, []string{"ahmed@example.ae"}, got)
}

func TestSenderAddressesEmptyMessage(t *testing.T) {
	assert.Empty(t, testReplyWorker().senderAddresses(&imap.Message{}))
}
