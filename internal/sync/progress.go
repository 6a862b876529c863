package sync

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var (
	foreignStartRe = regexp.MustCompile(`^( *|\t*)<!-- @ENGLISH \{\{\{`)
	foreignEndRe   = regexp.MustCompile(`@ *ENGLISH \}\}\} -->$`)
	paraOpenRe     = regexp.MustCompile(`^ *<para>`)
	paraLineRe     = regexp.MustCompile(`^ *<para>.*</para>$`)
	paraCloseRe    = regexp.MustCompile(`</para>$`)
)

// TranslationRatio counts paragraph lines inside foreign-language blocks
// against paragraph lines outside them and returns foreign/other*100.
// The denominator starts at 0.001 so a file without paragraphs yields 0.
func TranslationRatio(r io.Reader) (float64, error) {
	foreign := 0.0
	other := 0.001
	inForeign, inPara := false, false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if foreignStartRe.MatchString(line) {
			inForeign = true
		}
		if paraOpenRe.MatchString(line) {
			inPara = true
		}
		if inPara || paraLineRe.MatchString(line) {
			if inForeign {
				foreign++
			} else {
				other++
			}
		}
		if paraCloseRe.MatchString(line) {
			inPara = false
		}
		if foreignEndRe.MatchString(line) {
			inForeign = false
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}

	return foreign / other * 100, nil
}

// FileTranslationRatio is TranslationRatio over a file
func FileTranslationRatio(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = f.Close()
	}()
	return TranslationRatio(f)
}

// FormatPercent renders a ratio the way the status report prints it
func FormatPercent(p float64) string {
	return fmt.Sprintf("(%3.2f%%)", p)
}
