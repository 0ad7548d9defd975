package worker

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"gorm.io/gorm"

	"tahseel/models"
	"tahseel/utils"
)

// ReplyWorker polls each company's collection mailbox and stamps customers
// that wrote back. The customer_responded stop condition reads the stamp, so
// this worker is what makes stop-on-reply observable.
type ReplyWorker struct {
	DB     *gorm.DB
	Logger *log.Logger

	PollInterval time.Duration
}

func NewReplyWorker(db *gorm.DB, logger *log.Logger, pollInterval time.Duration) *ReplyWorker {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Minute
	}
	return &ReplyWorker{DB: db, Logger: logger, PollInterval: pollInterval}
}

func (rw *ReplyWorker) Start(ctx context.Context) {
	rw.Logger.Println("Reply worker started")

	ticker := time.NewTicker(rw.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Println("Reply worker shutting down...")
			return
		case <-ticker.C:
			rw.pollAllMailboxes()
		}
	}
}

func (rw *ReplyWorker) pollAllMailboxes() {
	var companies []models.Company
	if err := rw.DB.Where("imap_host IS NOT NULL AND imap_host != ''").Find(&companies).Error; err != nil {
		rw.Logger.Printf("Failed to fetch companies: %v", err)
		return
	}

	for _, company := range companies {
		if err := rw.pollCompanyMailbox(&company); err != nil {
			rw.Logger.Printf("Failed to poll mailbox for company %d: %v", company.ID, err)
		}
	}
}

// pollCompanyMailbox reads unseen messages and stamps LastRepliedAt on every
// customer whose address appears as a sender.
func (rw *ReplyWorker) pollCompanyMailbox(company *models.Company) error {
	password, err := utils.Decrypt(company.IMAPPassword)
	if err != nil {
		return fmt.Errorf("failed to decrypt IMAP password: %v", err)
	}

	imapAddr := fmt.Sprintf("%s:%d", company.IMAPHost, company.IMAPPort)
	imapClient, err := client.DialTLS(imapAddr, &tls.Config{ServerName: company.IMAPHost})
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %v", err)
	}
	defer imapClient.Logout()

	if err := imapClient.Login(company.IMAPUsername, password); err != nil {
		return fmt.Errorf("failed to login to IMAP server: %v", err)
	}

	mailbox := "INBOX"
	if company.IMAPMailbox != "" {
		mailbox = company.IMAPMailbox
	}
	if _, err := imapClient.Select(mailbox, false); err != nil {
		return fmt.Errorf("failed to select mailbox: %v", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{"\\Seen"}
	ids, err := imapClient.Search(criteria)
	if err != nil {
		return fmt.Errorf("failed to search messages: %v", err)
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- imapClient.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, imap.FetchItem("BODY.PEEK[]")}, messages)
	}()

	for msg := range messages {
		if err := rw.processReply(msg, company.ID); err != nil {
			rw.Logger.Printf("Failed to process message %d: %v", msg.SeqNum, err)
		}
	}
	if err := <-done; err != nil {
		return fmt.Errorf("error during fetch: %v", err)
	}

	// Mark processed messages seen so the next poll skips them
	flags := []interface{}{imap.SeenFlag}
	if err := imapClient.Store(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
		rw.Logger.Printf("Failed to flag messages as seen: %v", err)
	}
	return nil
}

func (rw *ReplyWorker) processReply(msg *imap.Message, companyID uint) error {
	from := rw.senderAddresses(msg)
	if len(from) == 0 {
		return nil
	}

	receivedAt := time.Now()
	if msg.Envelope != nil && !msg.Envelope.Date.IsZero() {
		receivedAt = msg.Envelope.Date
	}

	for _, address := range from {
		var customer models.Customer
		err := rw.DB.Where("company_id = ? AND LOWER(email) = ?", companyID, strings.ToLower(address)).
			First(&customer).Error
		if err != nil {
			continue // not a known customer, probably unrelated mail
		}

		if customer.LastRepliedAt == nil || receivedAt.After(*customer.LastRepliedAt) {
			if err := rw.DB.Model(&customer).Update("last_replied_at", receivedAt).Error; err != nil {
				return fmt.Errorf("failed to stamp reply for customer %d: %v", customer.ID, err)
			}
			rw.Logger.Printf("Customer %d replied at %s", customer.ID, receivedAt.Format(time.RFC3339))
		}
	}
	return nil
}

// senderAddresses extracts sender addresses, preferring the envelope and
// falling back to parsing the message headers.
func (rw *ReplyWorker) senderAddresses(msg *imap.Message) []string {
	var addresses []string
	if msg.Envelope != nil {
		for _, addr := range msg.Envelope.From {
			addresses = append(addresses, addr.Address())
		}
	}
	if len(addresses) > 0 {
		return addresses
	}

	// Body is keyed by pointer; GetBody matches by section value.
	section := imap.BodySectionName{}
	literal := msg.GetBody(&section)
	if literal == nil {
		return nil
	}
	mr, err := mail.CreateReader(literal)
	if err != nil {
		return nil
	}
	defer consume(mr)

	if from, err := mr.Header.AddressList("From"); err == nil {
		for _, addr := range from {
			addresses = append(addresses, addr.Address)
		}
	}
	return addresses
}

// consume drains remaining parts so the connection stays in sync.
func consume(mr *mail.Reader) {
	for {
		if _, err := mr.NextPart(); err == io.EOF || err != nil {
			return
		}
	}
}
