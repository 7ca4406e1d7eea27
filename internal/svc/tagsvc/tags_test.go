package tagsvc

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedGenerator struct {
	name Name
	addr Address
}

func (f fixedGenerator) NextName() Name       { return f.name }
func (f fixedGenerator) NextAddress() Address { return f.addr }
func (f fixedGenerator) NextToken(kind TokenKind) string {
	return "tok-" + string(kind)
}

func newFixedEngine() *Engine {
	return New(Config{
		Generator: fixedGenerator{
			name: Name{First: "Kim", Middle: "Q", Last: "Lee"},
			addr: Address{Number: 12, Street: "Oak Ave", City: "Madison", State: "WI", Zip: 53703},
		},
		Now: func() time.Time {
			return time.Date(2024, time.March, 5, 14, 7, 9, 0, time.UTC)
		},
	})
}

func TestEngine_BuildTagMap(t *testing.T) {
	e := newFixedEngine()

	t.Run("system tags", func(t *testing.T) {
		tags := e.BuildTagMap(map[string]string{"email": "a@x.co"}, "a@x.co")
		assert.Equal(t, "a@x.co", tags[TagEmail])
		assert.Equal(t, "March 5, 2024", tags[TagDate])
		assert.Equal(t, "3/5/2024", tags[TagDate1])
		assert.Equal(t, "March 5, 2024 at 2:07:09 PM", tags[TagDateTime])
		assert.Equal(t, "Kim", tags[TagName])
		assert.Equal(t, "Kim Lee", tags[TagFName])
		assert.Equal(t, "K. Q Lee", tags[TagUName])
		assert.Equal(t, "12 Oak Ave", tags[TagAddress])
		assert.Equal(t, "12 Oak Ave, Madison, WI 53703", tags[TagAddress1])
		assert.Equal(t, "tok-INV", tags[TagInv])
		assert.Equal(t, "tok-TRX", tags[TagTRX])

		for _, tag := range SystemTags {
			assert.NotEmpty(t, tags[tag], tag)
		}
	})

	t.Run("email argument is authoritative", func(t *testing.T) {
		tags := e.BuildTagMap(map[string]string{"email": "other@x.co"}, "a@x.co")
		assert.Equal(t, "a@x.co", tags[TagEmail])
	})

	t.Run("attributes upper cased", func(t *testing.T) {
		tags := e.BuildTagMap(map[string]string{"city": "Oslo", "first name": "Ann"}, "a@x.co")
		assert.Equal(t, "Oslo", tags["#CITY#"])
		assert.Equal(t, "Ann", tags["#FIRST NAME#"])
	})

	t.Run("fresh synthetic values per call", func(t *testing.T) {
		random := New(Config{Generator: NewRandomGenerator(7)})
		attrs := map[string]string{"email": "a@x.co", "city": "Oslo", "name": "Bob"}

		first := random.BuildTagMap(attrs, "a@x.co")
		second := random.BuildTagMap(attrs, "a@x.co")

		assert.Equal(t, first[TagEmail], second[TagEmail])
		assert.Equal(t, "Oslo", first["#CITY#"])
		assert.Equal(t, first["#CITY#"], second["#CITY#"])
		assert.Equal(t, "Bob", second[TagName])

		assert.NotEqual(t, first[TagUKey], second[TagUKey])
		assert.NotEqual(t, first[TagLNum], second[TagLNum])
		assert.NotEqual(t, first[TagInv], second[TagInv])
	})

	t.Run("fallback only when empty", func(t *testing.T) {
		tags := e.BuildTagMap(map[string]string{"name": "Bob", "inv": ""}, "a@x.co")
		assert.Equal(t, "Bob", tags[TagName])
		assert.Equal(t, "tok-INV", tags[TagInv])
	})
}

func TestRenderTemplate(t *testing.T) {
	e := newFixedEngine()
	tags := e.BuildTagMap(map[string]string{"email": "a@x.co"}, "a@x.co")

	t.Run("case insensitive", func(t *testing.T) {
		assert.Equal(t, "Hi Kim, Kim", RenderTemplate("Hi #NAME#, #name#", tags))
	})

	t.Run("unknown tag untouched", func(t *testing.T) {
		assert.Equal(t, "Hi #NOPE# a@x.co", RenderTemplate("Hi #NOPE# #Email#", tags))
	})

	t.Run("value not rescanned", func(t *testing.T) {
		out := RenderTemplate("#A# #B#", map[string]string{"#A#": "#B#", "#B#": "x"})
		assert.Equal(t, "#B# x", out)
	})

	t.Run("longest tag wins", func(t *testing.T) {
		out := RenderTemplate("#DATE1#|#DATE#", tags)
		assert.Equal(t, "3/5/2024|March 5, 2024", out)
	})

	t.Run("kelvin sign folds to k", func(t *testing.T) {
		out := RenderTemplate("Hi #\u212Aey#", map[string]string{"#KEY#": "v"})
		assert.Equal(t, "Hi v", out)
	})

	t.Run("regex meta in key", func(t *testing.T) {
		out := RenderTemplate("price #A.B+#", map[string]string{"#A.B+#": "$1"})
		assert.Equal(t, "price $1", out)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "", RenderTemplate("", tags))
		assert.Equal(t, "keep", RenderTemplate("keep", nil))
	})
}

func TestEngine_GenerateRandomDisplayName(t *testing.T) {
	e := newFixedEngine()
	assert.Equal(t, "Kim", e.GenerateRandomDisplayName(KindName))
	assert.Equal(t, "Kim Lee", e.GenerateRandomDisplayName(KindFName))
	assert.Equal(t, "K. Q Lee", e.GenerateRandomDisplayName("uname"))
	assert.Equal(t, "Kim Lee", e.GenerateRandomDisplayName("whatever"))
}

func TestRandomGenerator(t *testing.T) {
	t.Run("seeded is deterministic", func(t *testing.T) {
		a, b := NewRandomGenerator(42), NewRandomGenerator(42)
		assert.Equal(t, a.NextName(), b.NextName())
		assert.Equal(t, a.NextAddress(), b.NextAddress())
		assert.Equal(t, a.NextToken(TokenUUID), b.NextToken(TokenUUID))
	})

	t.Run("token shapes", func(t *testing.T) {
		g := NewRandomGenerator(7)
		shapes := map[TokenKind]string{
			TokenInvoice:     `^INV-[A-Z0-9]{12}-[1-9][0-9]{3}$`,
			TokenShortNumber: `^[1-9][0-9]{5}$`,
			TokenLongAlnum:   `^[a-zA-Z0-9]{32}$`,
			TokenShortUpper:  `^[A-Z]{8}$`,
			TokenLongLower:   `^[a-z]{20}$`,
			TokenUUID:        `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`,
			TokenTRX:         `^bc1q[023456789acdefghjklmnpqrstuvwxyz]{38}$`,
		}

		for kind, shape := range shapes {
			for i := 0; i < 20; i++ {
				assert.Regexp(t, regexp.MustCompile(shape), g.NextToken(kind), string(kind))
			}
		}

		assert.Empty(t, g.NextToken("UNKNOWN"))
	})

	t.Run("name and address ranges", func(t *testing.T) {
		g := NewRandomGenerator(1)
		for i := 0; i < 50; i++ {
			n := g.NextName()
			require.Contains(t, firstNames, n.First)
			require.Contains(t, lastNames, n.Last)
			require.Regexp(t, `^[A-Z]$`, n.Middle)

			a := g.NextAddress()
			require.True(t, a.Number >= 1 && a.Number <= 2000)
			require.True(t, a.Zip >= 10000 && a.Zip <= 99999)
			require.Contains(t, states, a.State)
		}
	})
}
