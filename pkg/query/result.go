package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
)

// Kind tells which of the Result fields are set.
type Kind int

const (
	// Decoded results carry the JSON value the service replied with.
	Decoded Kind = iota + 1

	// Undecodable results carry the raw body of a reply that is not JSON.
	Undecodable

	// TransportFailure results carry the reason no reply was received,
	// including requests that could not be encoded in the first place.
	TransportFailure
)

func (k Kind) String() string {
	switch k {
	case Decoded:
		return "decoded"
	case Undecodable:
		return "undecodable"
	case TransportFailure:
		return "transport failure"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Result is the outcome of a single request to the service. Non-2xx
// statuses are not failures: the service reports query errors in the body.
type Result struct {
	Kind Kind

	// StatusCode is the HTTP status. Zero for TransportFailure.
	StatusCode int

	// Body is the decoded JSON value for Decoded results. Numbers are
	// json.Number so no precision is lost.
	Body interface{}

	// Text is the raw response body. Set for Decoded and Undecodable.
	Text string

	// Cause is set for TransportFailure.
	Cause error
}

// Err returns the cause of a TransportFailure and nil otherwise.
func (r Result) Err() error {
	if r.Kind == TransportFailure {
		return r.Cause
	}
	return nil
}

func failure(err error) Result {
	return Result{Kind: TransportFailure, Cause: err}
}

// decode builds the Result for a received response.
func decode(status int, body []byte) Result {
	var v interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	err := dec.Decode(&v)
	if err == nil {
		// trailing garbage makes the whole body invalid
		if _, terr := dec.Token(); terr != io.EOF {
			err = errors.New("trailing data after JSON value")
		}
	}
	if err != nil {
		return Result{Kind: Undecodable, StatusCode: status, Text: string(body)}
	}
	return Result{Kind: Decoded, StatusCode: status, Body: v, Text: string(body)}
}

// Print writes r to w: the JSON value on a single line for Decoded results,
// and the status code followed by the raw body for Undecodable ones. It
// returns the cause of a TransportFailure without writing anything.
func Print(w io.Writer, r Result) error {
	switch r.Kind {
	case Decoded:
		out, err := json.Marshal(r.Body)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", out)
		return err
	case Undecodable:
		_, err := fmt.Fprintf(w, "%d\n%s\n", r.StatusCode, r.Text)
		return err
	case TransportFailure:
		return r.Cause
	}
	return fmt.Errorf("unknown result kind %s", r.Kind)
}

// IsTimeout reports whether err is a client timeout.
func IsTimeout(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}
