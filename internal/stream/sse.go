package stream

import (
	"bufio"
	"io"
	"strings"
)

// sseEvent is one dispatched server-sent event frame.
type sseEvent struct {
	name string
	data string
}

// readEvents parses a text/event-stream body and invokes handle for every
// dispatched frame. Comment lines, id: and retry: fields are ignored; named
// "notification" events and unnamed default messages both come through.
// Returns the transport error that ended the stream (io.EOF on clean close).
func readEvents(r io.Reader, handle func(sseEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)

	var name string
	var data []string

	dispatch := func() {
		if len(data) == 0 {
			name = ""
			return
		}
		handle(sseEvent{name: name, data: strings.Join(data, "\n")})
		name = ""
		data = nil
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")

		if line == "" {
			dispatch()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := line, ""
		if idx := strings.Index(line, ":"); idx >= 0 {
			field = line[:idx]
			value = strings.TrimPrefix(line[idx+1:], " ")
		}

		switch field {
		case "event":
			name = value
		case "data":
			data = append(data, value)
		}
	}

	dispatch()

	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}
