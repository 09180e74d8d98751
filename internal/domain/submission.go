package domain

import (
	"regexp"
	"strings"
)

// Submission is a pasted sender block: the email, its password, optional
// numeric backup codes, and optional take/keep amounts.
type Submission struct {
	Email       string
	Password    string
	BackupCodes string
	AmountTake  string
	AmountKeep  string
}

func (s Submission) Valid() bool {
	return s.Email != "" && s.Password != ""
}

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	codePattern  = regexp.MustCompile(`^[\d.]+$`)
	// The sender form uses Arabic markers for the take ("اسحب") and keep
	// ("يسيب") amounts.
	takePattern = regexp.MustCompile(`اسحب\s*(\d+)`)
	keepPattern = regexp.MustCompile(`يسيب\s*(\d+)`)
)

// ParseSubmission interprets a freeform submission block line by line. The
// first email-looking line is the email, the first non-matching line after it
// is the password, numeric lines are backup codes (numbered lists like
// "1.12345678" keep only the code part).
func ParseSubmission(text string) Submission {
	var sub Submission
	var codes []string

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case emailPattern.MatchString(line):
			sub.Email = strings.ToLower(line)
		case takePattern.MatchString(line):
			sub.AmountTake = takePattern.FindStringSubmatch(line)[1]
		case keepPattern.MatchString(line):
			sub.AmountKeep = keepPattern.FindStringSubmatch(line)[1]
		case codePattern.MatchString(line):
			code := line
			if idx := strings.LastIndex(line, "."); idx >= 0 {
				code = line[idx+1:]
			}
			codes = append(codes, code)
		case sub.Email != "" && sub.Password == "":
			sub.Password = line
		}
	}

	sub.BackupCodes = strings.Join(codes, ",")
	return sub
}
