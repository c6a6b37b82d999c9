package mailstore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"
)

var colleagueRe = regexp.MustCompile(`^(.+?)\s*:\s*(.+?)\s*[<(]([\p{L}\p{N}_.]+@[\p{L}\p{N}_.]+)[>)]`)

// Colleague is one entry of the team directory.
type Colleague struct {
	Name  string `json:"name"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

// Directory maps lower-cased addresses to colleagues.
type Directory map[string]Colleague

// Lookup finds a colleague by address, case-insensitively.
func (d Directory) Lookup(email string) (Colleague, bool) {
	c, ok := d[strings.ToLower(strings.TrimSpace(email))]
	return c, ok
}

// Mentioned returns the colleagues whose name appears in text, ordered by
// name.
func (d Directory) Mentioned(text string) []Colleague {
	lower := strings.ToLower(text)
	var out []Colleague
	for _, c := range d {
		if c.Name != "" && strings.Contains(lower, strings.ToLower(c.Name)) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadColleagues reads a directory file of "Role: Name <email>" lines. A
// missing file yields an empty directory and no error.
func LoadColleagues(path string) (Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Directory{}, nil
		}
		return nil, fmt.Errorf("opening colleagues file: %w", err)
	}
	defer f.Close()

	dir, err := ParseColleagues(f)
	if err != nil {
		return nil, fmt.Errorf("reading colleagues file: %w", err)
	}
	return dir, nil
}

// ParseColleagues parses directory lines from r. Blank lines, # comments
// and lines that do not match are ignored.
func ParseColleagues(r io.Reader) (Directory, error) {
	dir := Directory{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m := colleagueRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		email := strings.ToLower(strings.TrimSpace(m[3]))
		dir[email] = Colleague{
			Role:  strings.TrimSpace(m[1]),
			Name:  strings.TrimSpace(m[2]),
			Email: email,
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return dir, nil
}
