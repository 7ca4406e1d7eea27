package tagsvc

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	TagEmail    = "#EMAIL#"
	TagDate     = "#DATE#"
	TagDate1    = "#DATE1#"
	TagDateTime = "#DATETIME#"

	TagName     = "#NAME#"
	TagFName    = "#FNAME#"
	TagUName    = "#UNAME#"
	TagInv      = "#INV#"
	TagSNum     = "#SNUM#"
	TagLNum     = "#LNUM#"
	TagSmLett   = "#SMLETT#"
	TagLmLett   = "#LMLETT#"
	TagUKey     = "#UKEY#"
	TagTRX      = "#TRX#"
	TagAddress  = "#ADDRESS#"
	TagAddress1 = "#ADDRESS1#"

	layoutDate     = "January 2, 2006"
	layoutDate1    = "1/2/2006"
	layoutDateTime = "January 2, 2006 at 3:04:05 PM"
)

// SystemTags lists every tag the engine fills without recipient data, in display order.
var SystemTags = []string{
	TagEmail, TagDate, TagDate1, TagDateTime,
	TagName, TagFName, TagUName, TagInv, TagSNum, TagLNum, TagSmLett, TagLmLett, TagUKey, TagTRX,
	TagAddress, TagAddress1,
}

type NameKind string

const (
	KindName  NameKind = "NAME"
	KindFName NameKind = "FNAME"
	KindUName NameKind = "UNAME"
)

type Config struct {
	Generator Generator
	Now       func() time.Time
}

// Engine builds per-recipient tag map and substitute it into templates.
type Engine struct {
	gen Generator
	now func() time.Time
}

func New(cfg Config) *Engine {
	if cfg.Generator == nil {
		cfg.Generator = NewTimeSeededGenerator()
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Engine{
		gen: cfg.Generator,
		now: cfg.Now,
	}
}

// Tag turns column name into its placeholder, "first name" -> "#FIRST NAME#".
func Tag(key string) string {
	return "#" + strings.ToUpper(key) + "#"
}

// BuildTagMap never memoize: synthetic values are drawn again on each call.
func (e *Engine) BuildTagMap(attrs map[string]string, email string) map[string]string {
	tags := make(map[string]string, len(attrs)+len(SystemTags))
	for k, v := range attrs {
		tags[Tag(k)] = v
	}

	tags[TagEmail] = email

	now := e.now()
	tags[TagDate] = now.Format(layoutDate)
	tags[TagDate1] = now.Format(layoutDate1)
	tags[TagDateTime] = now.Format(layoutDateTime)

	// one person and one address per call so name-shaped tags agree with each other
	name := e.gen.NextName()
	addr := e.gen.NextAddress()

	fallbacks := []struct {
		tag   string
		value func() string
	}{
		{tag: TagName, value: func() string { return name.First }},
		{tag: TagFName, value: name.Full},
		{tag: TagUName, value: name.Initials},
		{tag: TagInv, value: func() string { return e.gen.NextToken(TokenInvoice) }},
		{tag: TagSNum, value: func() string { return e.gen.NextToken(TokenShortNumber) }},
		{tag: TagLNum, value: func() string { return e.gen.NextToken(TokenLongAlnum) }},
		{tag: TagSmLett, value: func() string { return e.gen.NextToken(TokenShortUpper) }},
		{tag: TagLmLett, value: func() string { return e.gen.NextToken(TokenLongLower) }},
		{tag: TagUKey, value: func() string { return e.gen.NextToken(TokenUUID) }},
		{tag: TagTRX, value: func() string { return e.gen.NextToken(TokenTRX) }},
		{tag: TagAddress, value: addr.StreetLine},
		{tag: TagAddress1, value: addr.Full},
	}

	for _, fb := range fallbacks {
		if tags[fb.tag] != "" {
			continue
		}

		tags[fb.tag] = fb.value()
	}

	return tags
}

// GenerateRandomDisplayName is the on-demand sender name, unknown kind falls back to FNAME.
func (e *Engine) GenerateRandomDisplayName(kind NameKind) string {
	name := e.gen.NextName()
	switch NameKind(strings.ToUpper(string(kind))) {
	case KindName:
		return name.First
	case KindUName:
		return name.Initials()
	default:
		return name.Full()
	}
}

// RenderTemplate replaces every tag case-insensitively in one scan,
// so replacement value is never scanned again. Unknown #...# is kept verbatim.
func RenderTemplate(text string, tags map[string]string) string {
	if text == "" || len(tags) == 0 {
		return text
	}

	keys := make([]string, 0, len(tags))
	lookup := make(map[string]string, len(tags))
	for _, k := range sortedKeys(tags) {
		upper := strings.ToUpper(k)
		if _, exist := lookup[upper]; exist {
			continue
		}

		lookup[upper] = tags[k]
		keys = append(keys, k)
	}

	re := tagMatcher(keys)
	return re.ReplaceAllStringFunc(text, func(match string) string {
		if v, ok := lookup[strings.ToUpper(match)]; ok {
			return v
		}

		// the matcher folds cases ToUpper does not, i.e. Kelvin sign
		for _, k := range keys {
			if strings.EqualFold(k, match) {
				return lookup[strings.ToUpper(k)]
			}
		}

		return match
	})
}

// sortedKeys ordered by length descending, then lexical, so the longest tag wins at the same position.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k == "" {
			continue
		}

		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}

		return keys[i] < keys[j]
	})

	return keys
}

var matcherCache sync.Map

func tagMatcher(keys []string) *regexp.Regexp {
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}

	pattern := "(?i)" + strings.Join(quoted, "|")
	if re, ok := matcherCache.Load(pattern); ok {
		return re.(*regexp.Regexp)
	}

	re := regexp.MustCompile(pattern)
	matcherCache.Store(pattern, re)
	return re
}
