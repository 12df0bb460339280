package server

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/conneroisu/unchained/internal/errors"
	"github.com/conneroisu/unchained/internal/router"
)

// ReadRequest parses one request: a "VERB PATH VERSION" line, "Key: Value"
// headers up to a blank line, then exactly Content-Length bytes of UTF-8
// body. The version is accepted but ignored.
func ReadRequest(r *bufio.Reader) (*router.Request, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return nil, errors.WrapConnection(err, errors.ErrCodeReadFailed, "could not read request line")
	}
	line = strings.TrimRight(line, "\r\n")

	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return nil, errors.NewConnectionError(errors.ErrCodeMalformedRequest,
			fmt.Sprintf("unimplemented request handle for: %q", line), nil)
	}

	headers, err := readHeaders(r)
	if err != nil {
		return nil, err
	}

	body, err := readBody(r, contentLength(headers))
	if err != nil {
		return nil, err
	}

	return &router.Request{
		Verb:    router.Verb(parts[0]),
		Path:    parts[1],
		Headers: headers,
		Body:    body,
	}, nil
}

func readHeaders(r *bufio.Reader) (map[string]string, error) {
	headers := map[string]string{}
	for {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.WrapConnection(err, errors.ErrCodeReadFailed, "could not read headers")
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return headers, nil
		}
		if key, value, ok := strings.Cut(trimmed, ": "); ok {
			headers[key] = value
		}
		if err == io.EOF {
			return headers, nil
		}
	}
}

// contentLength returns the declared body length, or zero when the header
// is absent or unparseable.
func contentLength(headers map[string]string) int {
	for key, value := range headers {
		if !strings.EqualFold(key, "Content-Length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return 0
		}
		return n
	}

	return 0
}

func readBody(r *bufio.Reader, n int) (string, error) {
	if n == 0 {
		return "", nil
	}

	// The buffer grows with the bytes that arrive, not the declared length.
	var body bytes.Buffer
	if _, err := io.CopyN(&body, r, int64(n)); err != nil {
		return "", errors.WrapConnection(err, errors.ErrCodeBodyLength,
			fmt.Sprintf("body shorter than Content-Length %d", n))
	}
	buf := body.Bytes()
	if !utf8.Valid(buf) {
		return "", errors.NewConnectionError(errors.ErrCodeBodyEncoding, "request body is not valid UTF-8", nil)
	}

	return string(buf), nil
}

// WriteResponse writes the status line, the headers and the body. Response
// headers override defaults; Content-Length and Connection are always set
// by the server.
func WriteResponse(w io.Writer, resp *router.Response, defaults map[string]string) error {
	headers := make(map[string]string, len(defaults)+len(resp.Headers)+2)
	for k, v := range defaults {
		headers[k] = v
	}
	for k, v := range resp.Headers {
		headers[k] = v
	}
	headers["Content-Length"] = strconv.Itoa(len(resp.Body))
	headers["Connection"] = "close"

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "HTTP/1.1 %s\r\n", statusLine(resp.StatusCode))
	for _, k := range keys {
		fmt.Fprintf(bw, "%s: %s\r\n", k, headers[k])
	}
	bw.WriteString("\r\n")
	bw.Write(resp.Body)

	if err := bw.Flush(); err != nil {
		return errors.WrapConnection(err, errors.ErrCodeWriteFailed, "could not write to stream")
	}

	return nil
}

func statusLine(code int) string {
	if text := http.StatusText(code); text != "" {
		return strconv.Itoa(code) + " " + text
	}

	return strconv.Itoa(code)
}
