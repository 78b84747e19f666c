// Package kana converts romaji keystrokes into hiragana.
package kana

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

const katakanaShift = 0x60

type Options struct {
	// IMEMode holds back a trailing "n" and reads "nn" as a single ん so the
	// conversion can run after every keystroke.
	IMEMode bool
}

// Normalize is the as-you-type conversion. With transliterate unset the input
// comes back untouched.
func Normalize(raw string, transliterate bool) string {
	if !transliterate {
		return raw
	}
	return ToHiragana(raw, Options{IMEMode: true})
}

// ToHiragana converts romaji runs and katakana to hiragana. Fullwidth latin
// letters and halfwidth katakana are folded first. Kanji, hiragana, digits and
// punctuation pass through, except a "-" inside a romaji run, which becomes
// the long vowel mark. In IME mode a trailing "-" right after kana converts
// too.
func ToHiragana(s string, opts Options) string {
	if s == "" {
		return s
	}
	src := []rune(s)
	for i, r := range src {
		src[i] = foldRune(r)
	}
	var b strings.Builder
	b.Grow(len(s) * 2)
	inRun := false
	for i := 0; i < len(src); {
		r := src[i]
		switch {
		case isLatin(r):
			i += convertRomaji(&b, src, i, opts)
			inRun = true
		case r == '-' && (inRun || (opts.IMEMode && i == len(src)-1 && i > 0 && isKanaRune(src[i-1]))):
			b.WriteRune('ー')
			inRun = true
			i++
		case isKatakana(r):
			b.WriteRune(r - katakanaShift)
			inRun = false
			i++
		default:
			b.WriteRune(r)
			inRun = false
			i++
		}
	}
	return b.String()
}

// foldRune narrows fullwidth latin letters and widens halfwidth katakana.
// Every other rune, fullwidth punctuation and digits included, is kept.
func foldRune(r rune) rune {
	switch {
	case isFullwidthLatin(r):
		if n := width.LookupRune(r).Narrow(); n != 0 {
			return n
		}
	case isHalfwidthKatakana(r):
		if w := width.LookupRune(r).Wide(); w != 0 {
			return w
		}
	}
	return r
}

func convertRomaji(b *strings.Builder, src []rune, i int, opts Options) int {
	c := toLower(src[i])
	var next rune
	if i+1 < len(src) {
		next = toLower(src[i+1])
	}

	if c == 'n' {
		switch {
		case next == '\'':
			b.WriteString("ん")
			return 2
		case next == 'n':
			b.WriteString("ん")
			if opts.IMEMode {
				return 2
			}
			return 1
		case next == 0:
			if opts.IMEMode {
				b.WriteRune(src[i])
			} else {
				b.WriteString("ん")
			}
			return 1
		case isVowel(next) || next == 'y':
			if n := lookup(b, src, i); n > 0 {
				return n
			}
			if opts.IMEMode {
				b.WriteRune(src[i])
			} else {
				b.WriteString("ん")
			}
			return 1
		default:
			b.WriteString("ん")
			return 1
		}
	}

	if next == c && isConsonant(c) {
		b.WriteString("っ")
		return 1
	}
	if c == 't' && next == 'c' && i+2 < len(src) && toLower(src[i+2]) == 'h' {
		b.WriteString("っ")
		return 1
	}
	if n := lookup(b, src, i); n > 0 {
		return n
	}
	b.WriteRune(src[i])
	return 1
}

// lookup writes the longest table match starting at i and returns the number
// of runes it consumed, or 0.
func lookup(b *strings.Builder, src []rune, i int) int {
	for l := min(maxKeyLen, len(src)-i); l > 0; l-- {
		key, ok := lowerKey(src[i : i+l])
		if !ok {
			continue
		}
		if out, found := romajiTable[key]; found {
			b.WriteString(out)
			return l
		}
	}
	return 0
}

func lowerKey(rs []rune) (string, bool) {
	buf := make([]rune, len(rs))
	for i, r := range rs {
		if !isLatin(r) {
			return "", false
		}
		buf[i] = toLower(r)
	}
	return string(buf), true
}

// IsKana reports whether s is non-empty and made only of hiragana, katakana
// and the long vowel mark.
func IsKana(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isHiragana(r) && !isKatakana(r) && r != 'ー' && !isHalfwidthKatakana(r) {
			return false
		}
	}
	return true
}

// HasLatin reports whether s contains any ASCII letter.
func HasLatin(s string) bool {
	for _, r := range s {
		if isLatin(r) {
			return true
		}
	}
	return false
}

// HasKana reports whether s contains any hiragana or katakana.
func HasKana(s string) bool {
	for _, r := range s {
		if isHiragana(r) || isKatakana(r) || isHalfwidthKatakana(r) {
			return true
		}
	}
	return false
}

// HasKanji reports whether s contains a CJK ideograph.
func HasKanji(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func isLatin(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'i', 'u', 'e', 'o':
		return true
	}
	return false
}

func isConsonant(r rune) bool {
	return r >= 'a' && r <= 'z' && !isVowel(r) && r != 'n'
}

func isHiragana(r rune) bool { return r >= 0x3041 && r <= 0x309F }

func isKatakana(r rune) bool { return r >= 0x30A1 && r <= 0x30F6 }

func isHalfwidthKatakana(r rune) bool { return r >= 0xFF66 && r <= 0xFF9F }

func isFullwidthLatin(r rune) bool {
	return (r >= 'Ａ' && r <= 'Ｚ') || (r >= 'ａ' && r <= 'ｚ')
}

func isKanaRune(r rune) bool { return isHiragana(r) || isKatakana(r) || r == 'ー' }

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
