package tagsvc

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/satori/uuid"
)

var (
	firstNames = []string{
		"James", "Robert", "John", "Michael", "David", "William", "Richard", "Joseph", "Thomas", "Charles",
		"Mary", "Patricia", "Jennifer", "Linda", "Elizabeth", "Barbara", "Susan", "Jessica", "Sarah", "Karen",
	}

	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez",
		"Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
	}

	streetNames = []string{
		"Main St", "Oak Ave", "Pine Ln", "Maple Dr", "Cedar Blvd", "Elm St", "Washington Ave", "Lake Rd", "Hillcrest Dr",
	}

	cities = []string{"Springfield", "Fairview", "Riverside", "Madison", "Georgetown", "Franklin", "Clinton"}

	states = []string{
		"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA", "HI", "ID", "IL", "IN", "IA", "KS", "KY",
		"LA", "ME", "MD", "MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ", "NM", "NY", "NC", "ND",
		"OH", "OK", "OR", "PA", "RI", "SC", "SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
	}
)

const (
	charsUpper      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsLower      = "abcdefghijklmnopqrstuvwxyz"
	charsDigit      = "0123456789"
	charsUpperDigit = charsUpper + charsDigit
	charsAlnum      = charsLower + charsUpper + charsDigit
	charsBech32     = "023456789acdefghjklmnpqrstuvwxyz"
)

type TokenKind string

const (
	TokenInvoice     TokenKind = "INV"
	TokenShortNumber TokenKind = "SNUM"
	TokenLongAlnum   TokenKind = "LNUM"
	TokenShortUpper  TokenKind = "SMLETT"
	TokenLongLower   TokenKind = "LMLETT"
	TokenUUID        TokenKind = "UKEY"
	TokenTRX         TokenKind = "TRX"
)

// Name is one generated person. Middle is a single upper case letter.
type Name struct {
	First  string
	Middle string
	Last   string
}

func (n Name) Full() string {
	return n.First + " " + n.Last
}

// Initials return "F. M Last".
func (n Name) Initials() string {
	return fmt.Sprintf("%s. %s %s", n.First[:1], n.Middle, n.Last)
}

type Address struct {
	Number int
	Street string
	City   string
	State  string
	Zip    int
}

// StreetLine return "123 Main St".
func (a Address) StreetLine() string {
	return strconv.Itoa(a.Number) + " " + a.Street
}

// Full return "123 Main St, Springfield, CA 90210".
func (a Address) Full() string {
	return fmt.Sprintf("%s, %s, %s %d", a.StreetLine(), a.City, a.State, a.Zip)
}

// Generator is the source of every synthetic value.
// Swap it with seeded instance to get deterministic output.
type Generator interface {
	NextName() Name
	NextAddress() Address
	NextToken(kind TokenKind) string
}

type RandomGenerator struct {
	lock sync.Mutex
	rnd  *rand.Rand
}

var _ Generator = (*RandomGenerator)(nil)

// NewRandomGenerator with the same seed always yields the same sequence.
func NewRandomGenerator(seed int64) *RandomGenerator {
	return &RandomGenerator{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

// NewTimeSeededGenerator is used in production.
func NewTimeSeededGenerator() *RandomGenerator {
	return NewRandomGenerator(time.Now().UnixNano())
}

func (g *RandomGenerator) NextName() Name {
	g.lock.Lock()
	defer g.lock.Unlock()

	return Name{
		First:  g.pick(firstNames),
		Middle: g.str(1, charsUpper),
		Last:   g.pick(lastNames),
	}
}

func (g *RandomGenerator) NextAddress() Address {
	g.lock.Lock()
	defer g.lock.Unlock()

	return Address{
		Number: g.between(1, 2000),
		Street: g.pick(streetNames),
		City:   g.pick(cities),
		State:  g.pick(states),
		Zip:    g.between(10000, 99999),
	}
}

func (g *RandomGenerator) NextToken(kind TokenKind) string {
	g.lock.Lock()
	defer g.lock.Unlock()

	switch kind {
	case TokenInvoice:
		return fmt.Sprintf("INV-%s-%d", g.str(12, charsUpperDigit), g.between(1000, 9999))
	case TokenShortNumber:
		return strconv.Itoa(g.between(100000, 999999))
	case TokenLongAlnum:
		return g.str(32, charsAlnum)
	case TokenShortUpper:
		return g.str(8, charsUpper)
	case TokenLongLower:
		return g.str(20, charsLower)
	case TokenUUID:
		var b [16]byte
		_, _ = g.rnd.Read(b[:])
		u := uuid.FromBytesOrNil(b[:])
		u.SetVersion(uuid.V4)
		u.SetVariant(uuid.VariantRFC4122)
		return u.String()
	case TokenTRX:
		return "bc1q" + g.str(38, charsBech32)
	}

	return ""
}

func (g *RandomGenerator) pick(list []string) string {
	return list[g.rnd.Intn(len(list))]
}

// between is inclusive on both ends.
func (g *RandomGenerator) between(min, max int) int {
	return g.rnd.Intn(max-min+1) + min
}

func (g *RandomGenerator) str(length int, chars string) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = chars[g.rnd.Intn(len(chars))]
	}

	return string(b)
}
