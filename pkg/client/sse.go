package client

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// errDone stops readSSE at the [DONE] frame.
var errDone = errors.New("done")

// readSSE calls onData for each event's data payload until the body ends
// or the [DONE] frame arrives. It reports whether [DONE] was seen, which
// distinguishes a finished stream from a dropped connection.
func readSSE(r io.Reader, onData func(data string) error) (bool, error) {
	br := bufio.NewReader(r)
	var dataLines []string

	flush := func() error {
		if len(dataLines) == 0 {
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		if strings.TrimSpace(data) == "[DONE]" {
			return errDone
		}
		return onData(data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			// a cut chunked body surfaces as ErrUnexpectedEOF
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				if ferr := flush(); errors.Is(ferr, errDone) {
					return true, nil
				} else if ferr != nil {
					return false, ferr
				}
				return false, nil
			}
			return false, err
		}
		line = strings.TrimRight(line, "\r\n")

		// blank line ends an event
		if line == "" {
			if ferr := flush(); errors.Is(ferr, errDone) {
				return true, nil
			} else if ferr != nil {
				return false, ferr
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "data:"); ok {
			dataLines = append(dataLines, strings.TrimPrefix(rest, " "))
		}
	}
}
