package recipientsvc

import (
	"fmt"
	"strings"

	"github.com/yusufsyaifudin/emailer/pkg/validator"
)

const (
	columnEmail = "email"
	delimiters  = ",;\t"
	bom         = "\uFEFF"
)

// parsed is the intermediate table before records get their identity.
type parsed struct {
	Headers []string
	Rows    []map[string]string
}

// parseTable accepts bare email list or delimited text with header row.
// Splitting is naive: quoted cell containing the delimiter is split too.
func parseTable(raw string) (out parsed, err error) {
	lines := splitLines(strings.TrimPrefix(raw, bom))
	if len(lines) == 0 {
		err = fmt.Errorf("%w: input is empty", ErrIngest)
		return
	}

	firstLine := strings.TrimSpace(lines[0])
	if !strings.ContainsAny(firstLine, delimiters) && validator.IsEmail(firstLine) {
		out = parseBareList(lines)
	} else {
		out = parseDelimited(lines)
	}

	if !hasColumn(out.Headers, columnEmail) {
		err = fmt.Errorf("%w: header row has no '%s' column", ErrIngest, columnEmail)
		return
	}

	if len(out.Rows) == 0 {
		err = fmt.Errorf("%w: no records found", ErrIngest)
		return
	}

	return
}

func parseBareList(lines []string) parsed {
	out := parsed{
		Headers: []string{columnEmail},
		Rows:    make([]map[string]string, 0, len(lines)),
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !validator.IsEmail(line) {
			continue
		}

		out.Rows = append(out.Rows, map[string]string{columnEmail: line})
	}

	return out
}

func parseDelimited(lines []string) parsed {
	delimiter := detectDelimiter(lines[0])

	headerCells := strings.Split(lines[0], delimiter)
	headers := make([]string, 0, len(headerCells))
	for _, cell := range headerCells {
		headers = append(headers, strings.ToLower(cleanValue(cell)))
	}

	rows := make([]map[string]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		cells := strings.Split(line, delimiter)
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			value := ""
			if i < len(cells) {
				value = cleanValue(cells[i])
			}

			row[header] = value
		}

		rows = append(rows, row)
	}

	return parsed{Headers: headers, Rows: rows}
}

// detectDelimiter prefers semicolon, then tab, then comma.
func detectDelimiter(headerLine string) string {
	switch {
	case strings.Contains(headerLine, ";"):
		return ";"
	case strings.Contains(headerLine, "\t"):
		return "\t"
	default:
		return ","
	}
}

// cleanValue trims and strips one layer of surrounding double quote.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	return strings.TrimSpace(s)
}

// splitLines normalizes CRLF and CR into LF and drops blank lines.
func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := make([]string, 0)
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		lines = append(lines, line)
	}

	return lines
}

// parseEmailList keeps only lines that are valid email, used for checker list and queue text.
func parseEmailList(raw string) []string {
	emails := make([]string, 0)
	for _, line := range splitLines(raw) {
		line = strings.TrimSpace(line)
		if !validator.IsEmail(line) {
			continue
		}

		emails = append(emails, line)
	}

	return emails
}

func hasColumn(headers []string, column string) bool {
	for _, h := range headers {
		if h == column {
			return true
		}
	}

	return false
}
