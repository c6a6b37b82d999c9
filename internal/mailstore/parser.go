package mailstore

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// messageNamespace scopes deterministic message ids.
var messageNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/fyrsmithlabs/threadscan/message"))

var (
	// blockSplitRe finds a blank line followed by a From/Subject/Date
	// header. The second group marks where the next message starts.
	blockSplitRe = regexp.MustCompile(`\n\s*\n((?:From|Subject|Date)\s*[:(])`)
	headerRe     = regexp.MustCompile(`(?i)^(From|To|Cc|Date|Subject)\s*[:(]\s*(.*)`)
	senderRe     = regexp.MustCompile(`^(.+?)\s*[<(]([^>)]+)[>)]`)
	addressRe    = regexp.MustCompile(`[\p{L}\p{N}_.]+@[\p{L}\p{N}_.]+`)
	recipientRe  = regexp.MustCompile(`[,;]`)
)

// dateLayouts are tried in order; the first that parses wins.
var dateLayouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006.1.2 15:04",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2 Jan 2006 15:04:05 -0700",
	"2/1/2006 15:04",
	"1/2/2006 15:04",
	"Jan 2, 2006 15:04:05",
}

// ParseDate parses a Date header value. It returns nil when no known
// layout matches.
func ParseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// ParseThread splits raw into messages, sorts them chronologically with
// unknown dates last, and numbers them 0..n-1. Blocks without any header
// are dropped. maxBody <= 0 means DefaultMaxBodyLength.
func ParseThread(raw, thread string, maxBody int) []Message {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyLength
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	var msgs []Message
	for _, block := range splitBlocks(raw) {
		if m, ok := parseBlock(block, thread, maxBody); ok {
			msgs = append(msgs, m)
		}
	}

	sortByDate(msgs)
	for i := range msgs {
		msgs[i].Index = i
	}
	return msgs
}

func splitBlocks(raw string) []string {
	var blocks []string
	prev := 0
	for _, loc := range blockSplitRe.FindAllStringSubmatchIndex(raw, -1) {
		blocks = append(blocks, raw[prev:loc[0]])
		prev = loc[2]
	}
	return append(blocks, raw[prev:])
}

func parseBlock(block, thread string, maxBody int) (Message, bool) {
	headers := make(map[string]string)
	var body []string
	inBody := false

	for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
		if inBody {
			body = append(body, line)
			continue
		}
		if m := headerRe.FindStringSubmatch(line); m != nil {
			headers[strings.ToLower(m[1])] = strings.TrimSpace(m[2])
			continue
		}
		if len(headers) > 0 && strings.TrimSpace(line) == "" {
			inBody = true
			continue
		}
		body = append(body, line)
	}
	if len(headers) == 0 {
		return Message{}, false
	}

	name, addr := parseSender(headers["from"])
	dateRaw := headers["date"]
	subject := headers["subject"]

	return Message{
		ID:          uuid.NewSHA1(messageNamespace, []byte(addr+"|"+dateRaw+"|"+subject)).String(),
		Thread:      thread,
		Date:        ParseDate(dateRaw),
		SenderName:  name,
		SenderEmail: addr,
		To:          splitRecipients(headers["to"]),
		Cc:          splitRecipients(headers["cc"]),
		Subject:     subject,
		Body:        capRunes(strings.TrimSpace(strings.Join(body, "\n")), maxBody),
	}, true
}

// parseSender extracts the display name and address from a From value:
// "Name <addr>", "Name (addr)" or a bare address.
func parseSender(from string) (name, addr string) {
	if m := senderRe.FindStringSubmatch(from); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	addr = addressRe.FindString(from)
	name, _, _ = strings.Cut(from, "<")
	return strings.TrimSpace(name), addr
}

func splitRecipients(v string) []string {
	var out []string
	for _, r := range recipientRe.Split(v, -1) {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func capRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for ; n > 0; n-- {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i]
}

// sortByDate orders messages chronologically, unknown dates last, keeping
// the original order among equal keys.
func sortByDate(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i].Date, msgs[j].Date
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
