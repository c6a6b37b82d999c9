package mailstore

import (
	"errors"
	"time"

	"github.com/fyrsmithlabs/threadscan/internal/detection"
)

// ErrDirNotFound is returned by Load when the input directory is missing.
var ErrDirNotFound = errors.New("email directory not found")

// Defaults.
const (
	DefaultMaxBodyLength = 5000
	DefaultMaxFileBytes  = 10 * 1024 * 1024
	ColleaguesFile       = "Colleagues.txt"
	UnclassifiedProject  = "Unclassified"
)

// Message is a single parsed email. It is never modified after the store
// builds it.
type Message struct {
	ID          string     `json:"id"`
	Project     string     `json:"project,omitempty"`
	Thread      string     `json:"thread"`
	Index       int        `json:"index"`
	Date        *time.Time `json:"date,omitempty"`
	SenderName  string     `json:"sender_name,omitempty"`
	SenderEmail string     `json:"sender_email,omitempty"`
	To          []string   `json:"to,omitempty"`
	Cc          []string   `json:"cc,omitempty"`
	Subject     string     `json:"subject,omitempty"`
	Body        string     `json:"body"`
}

// Sender returns the sender address, or the display name when the address
// is unknown.
func (m Message) Sender() string {
	if m.SenderEmail != "" {
		return m.SenderEmail
	}
	return m.SenderName
}

// Detection returns the read-only view the detection engine works on.
func (m Message) Detection() detection.Message {
	return detection.Message{
		Thread: m.Thread,
		Index:  m.Index,
		Date:   m.Date,
		Body:   m.Body,
		Sender: m.Sender(),
	}
}

// Project is a named group of messages, ordered by date.
type Project struct {
	Name     string
	Messages []Message
}

// Detection converts the project's messages for the detection engine.
func (p Project) Detection() []detection.Message {
	out := make([]detection.Message, len(p.Messages))
	for i, m := range p.Messages {
		out[i] = m.Detection()
	}
	return out
}

// Options configures Load.
type Options struct {
	// MaxBodyLength caps each message body, in characters. Zero means
	// DefaultMaxBodyLength.
	MaxBodyLength int

	// MaxFileBytes skips thread files larger than this. Zero means
	// DefaultMaxFileBytes.
	MaxFileBytes int64
}

func (o Options) withDefaults() Options {
	if o.MaxBodyLength <= 0 {
		o.MaxBodyLength = DefaultMaxBodyLength
	}
	if o.MaxFileBytes <= 0 {
		o.MaxFileBytes = DefaultMaxFileBytes
	}
	return o
}

// FileError records a thread file that could not be read.
type FileError struct {
	File string `json:"file"`
	Err  string `json:"error"`
}

// LoadResult is the outcome of loading a directory. Per-file problems are
// collected rather than aborting the load.
type LoadResult struct {
	Dir      string
	Files    int
	Messages []Message
	Errors   []FileError
	Blocked  []string
}
