package inbox

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"PulseMail/internal/models"
)

// RawMessage is a fetched message in RFC 5322 form.
type RawMessage struct {
	UID  uint32
	Data []byte
}

// IMAPClient talks to the INBOX of an account over implicit TLS.
type IMAPClient struct{}

func (IMAPClient) connect(account models.Account) (*imapclient.Client, error) {
	if account.IMAPHost == "" {
		return nil, fmt.Errorf("account %s has no IMAP server", account.Email)
	}
	port := account.IMAPPort
	if port == 0 {
		port = 993
	}
	addr := net.JoinHostPort(account.IMAPHost, strconv.Itoa(port))

	client, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	if err := client.Login(account.Email, account.Password).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("imap login for %s: %w", account.Email, err)
	}
	return client, nil
}

// Ping logs in and out.
func (c IMAPClient) Ping(_ context.Context, account models.Account) error {
	client, err := c.connect(account)
	if err != nil {
		return err
	}
	return client.Logout().Wait()
}

// FetchUnseen returns unseen INBOX messages received on or after since's
// date. Fetching the body marks them seen.
func (c IMAPClient) FetchUnseen(ctx context.Context, account models.Account, since time.Time) ([]RawMessage, error) {
	client, err := c.connect(account)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{
		Since:   since,
		NotFlag: []imap.Flag{imap.FlagSeen},
	}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	section := &imap.FetchItemBodySection{}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	var out []RawMessage
	for {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		if raw := buf.FindBodySection(section); raw != nil {
			out = append(out, RawMessage{UID: uint32(buf.UID), Data: raw})
		}
	}

	if err := fetchCmd.Close(); err != nil {
		return out, fmt.Errorf("fetching messages: %w", err)
	}
	return out, nil
}

// FetchRecent lists the newest limit messages of INBOX, newest first,
// without marking them seen.
func (c IMAPClient) FetchRecent(ctx context.Context, account models.Account, limit int) ([]models.InboxMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	client, err := c.connect(account)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	var out []models.InboxMessage
	for {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		m := models.InboxMessage{UID: uint32(buf.UID)}
		if env := buf.Envelope; env != nil {
			m.Subject = env.Subject
			m.Date = env.Date
			if len(env.From) > 0 {
				m.From = env.From[0].Addr()
			}
		}
		if raw := buf.FindBodySection(section); raw != nil {
			if parsed, err := Parse(raw); err == nil {
				m.Preview = preview(parsed.Text, 200)
			}
		}
		out = append(out, m)
	}

	if err := fetchCmd.Close(); err != nil {
		return out, fmt.Errorf("fetching messages: %w", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
